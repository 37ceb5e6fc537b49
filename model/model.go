package model

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/Laisky/errors/v2"
	"gorm.io/gorm"
)

// Adapter type identifiers. Each maps to one wire protocol implementation
// under relay/adaptor.
const (
	AdapterOpenAI           = "openai"
	AdapterAzureOpenAI      = "azure-openai"
	AdapterAnthropic        = "anthropic-native"
	AdapterBedrockAnthropic = "bedrock-anthropic"
	AdapterVertexAnthropic  = "vertex-anthropic"
)

// Model is one (model_id, provider) registry row: which backend serves a model
// under which name, what it can do, and what it costs.
type Model struct {
	Id       int    `json:"id" gorm:"primaryKey;autoIncrement"`
	ModelId  string `json:"model_id" gorm:"index;uniqueIndex:idx_model_provider;size:128;not null"`
	Provider string `json:"provider" gorm:"uniqueIndex:idx_model_provider;size:64;not null"`
	// AdapterType selects the wire protocol; one of the Adapter* constants.
	AdapterType string `json:"adapter_type" gorm:"size:32;not null"`
	// ProviderModelId is the name the backend itself uses, e.g. an Azure
	// deployment or a Bedrock model ARN.
	ProviderModelId    string `json:"provider_model_id" gorm:"index;size:256"`
	ContextWindow      int    `json:"context_window"`
	SupportToolCalling bool   `json:"support_tool_calling"`
	SupportVision      bool   `json:"support_vision"`
	// Prices are USD per token.
	PricePerInputToken  float64  `json:"price_per_input_token"`
	PricePerOutputToken float64  `json:"price_per_output_token"`
	PricePerCachedToken *float64 `json:"price_per_cached_token,omitempty"`
	// ExtraParam is a JSON object of adapter-specific settings (endpoint,
	// deployment, api version, region). Values may reference environment
	// variables as "env:NAME".
	ExtraParam string `json:"extra_param" gorm:"type:text"`
	Active     bool   `json:"active" gorm:"index"`
}

func (Model) TableName() string {
	return "models"
}

// GetExtraParams decodes the extra_param column and resolves env: references.
// A reference to an unset variable resolves to the empty string; adapters
// treat missing required values as configuration errors.
func (m *Model) GetExtraParams() (map[string]string, error) {
	params := map[string]string{}
	if m.ExtraParam != "" {
		if err := json.Unmarshal([]byte(m.ExtraParam), &params); err != nil {
			return nil, errors.Wrapf(err, "decode extra_param of %s/%s", m.ModelId, m.Provider)
		}
	}
	for k, v := range params {
		if name, ok := strings.CutPrefix(v, "env:"); ok {
			params[k] = os.Getenv(name)
		}
	}
	return params, nil
}

// GetActiveModels returns all active registry rows in stable id order. The
// stable order keeps selector results deterministic on score ties.
func GetActiveModels() ([]*Model, error) {
	var models []*Model
	err := DB.Where("active = ?", true).Order("id").Find(&models).Error
	if err != nil {
		return nil, errors.Wrap(err, "load active models")
	}
	return models, nil
}

// GetModelByProvider fetches one (model_id, provider) row regardless of the
// active flag.
func GetModelByProvider(modelId, provider string) (*Model, error) {
	var m Model
	err := DB.Where("model_id = ? AND provider = ?", modelId, provider).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Errorf("model %s/%s not found", modelId, provider)
		}
		return nil, errors.Wrap(err, "query model")
	}
	return &m, nil
}
