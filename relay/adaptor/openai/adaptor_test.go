package openai

import (
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makehub/llm-gateway/common/config"
	"github.com/makehub/llm-gateway/model"
	"github.com/makehub/llm-gateway/relay/meta"
	relaymodel "github.com/makehub/llm-gateway/relay/model"
)

func openaiMeta() *meta.Meta {
	return &meta.Meta{
		Model: &model.Model{
			ModelId:         "gpt-4o",
			Provider:        "openai",
			AdapterType:     model.AdapterOpenAI,
			ProviderModelId: "gpt-4o-2024-08-06",
		},
		ExtraParams: map[string]string{"api_key": "sk_test"},
	}
}

func azureMeta() *meta.Meta {
	return &meta.Meta{
		Model: &model.Model{
			ModelId:         "gpt-4o",
			Provider:        "azure",
			AdapterType:     model.AdapterAzureOpenAI,
			ProviderModelId: "gpt4o-prod",
		},
		ExtraParams: map[string]string{
			"endpoint": "https://example.openai.azure.com/",
			"api_key":  "azure-key",
		},
	}
}

func TestInitOpenAIDefaults(t *testing.T) {
	a := &Adaptor{}
	require.NoError(t, a.Init(openaiMeta()))
	assert.True(t, a.IsConfigured())

	url, err := a.GetRequestURL(openaiMeta())
	require.NoError(t, err)
	assert.Equal(t, "https://api.openai.com/v1/chat/completions", url)
	assert.Equal(t, model.AdapterOpenAI, a.GetAdapterName())
}

func TestInitOpenAICustomBaseURL(t *testing.T) {
	m := openaiMeta()
	m.ExtraParams["base_url"] = "https://proxy.internal/v1/"

	a := &Adaptor{}
	require.NoError(t, a.Init(m))
	url, err := a.GetRequestURL(m)
	require.NoError(t, err)
	assert.Equal(t, "https://proxy.internal/v1/chat/completions", url)
}

func TestInitOpenAIMissingKey(t *testing.T) {
	prev := config.APIKeyOpenAI
	config.APIKeyOpenAI = ""
	t.Cleanup(func() { config.APIKeyOpenAI = prev })

	m := openaiMeta()
	delete(m.ExtraParams, "api_key")

	a := &Adaptor{}
	assert.Error(t, a.Init(m))
}

func TestInitAzure(t *testing.T) {
	a := &Adaptor{}
	require.NoError(t, a.Init(azureMeta()))

	// Deployment defaults to the provider model id, api version to the
	// package default, and the trailing endpoint slash is trimmed.
	url, err := a.GetRequestURL(azureMeta())
	require.NoError(t, err)
	assert.Equal(t,
		"https://example.openai.azure.com/openai/deployments/gpt4o-prod/chat/completions?api-version=2024-06-01",
		url)
	assert.Equal(t, model.AdapterAzureOpenAI, a.GetAdapterName())
}

func TestInitAzureExplicitDeployment(t *testing.T) {
	m := azureMeta()
	m.ExtraParams["deployment"] = "gpt4o-eu"
	m.ExtraParams["api_version"] = "2024-10-21"

	a := &Adaptor{}
	require.NoError(t, a.Init(m))
	url, err := a.GetRequestURL(m)
	require.NoError(t, err)
	assert.Contains(t, url, "/deployments/gpt4o-eu/")
	assert.Contains(t, url, "api-version=2024-10-21")
}

func TestInitAzureMissingEndpoint(t *testing.T) {
	m := azureMeta()
	delete(m.ExtraParams, "endpoint")

	a := &Adaptor{}
	assert.Error(t, a.Init(m))
}

func TestConvertRequestStripsRoutingKnobs(t *testing.T) {
	speed := 80
	maxCost := 0.0001
	req := &relaymodel.StandardRequest{
		Model:           relaymodel.ModelRef{Alias: "gpt-4o"},
		Messages:        []relaymodel.Message{{Role: "user", Content: "hi"}},
		MaxTokens:       256,
		SpeedVsPrice:    &speed,
		Providers:       []string{"openai"},
		MaxCostPerToken: &maxCost,
	}

	a := &Adaptor{}
	m := openaiMeta()
	require.NoError(t, a.Init(m))
	converted, err := a.ConvertRequest(&gin.Context{}, m, req)
	require.NoError(t, err)

	wire, ok := converted.(*Request)
	require.True(t, ok)
	// The upstream sees the provider's own model name, never the alias.
	assert.Equal(t, "gpt-4o-2024-08-06", wire.Model)
	assert.Equal(t, 256, wire.MaxTokens)
	assert.Nil(t, wire.StreamOptions)
}

func TestConvertRequestStreamUsageOption(t *testing.T) {
	req := &relaymodel.StandardRequest{
		Model:    relaymodel.ModelRef{Alias: "gpt-4o"},
		Messages: []relaymodel.Message{{Role: "user", Content: "hi"}},
		Stream:   true,
	}

	a := &Adaptor{}
	m := openaiMeta()
	require.NoError(t, a.Init(m))
	converted, err := a.ConvertRequest(&gin.Context{}, m, req)
	require.NoError(t, err)

	wire := converted.(*Request)
	require.NotNil(t, wire.StreamOptions)
	assert.True(t, wire.StreamOptions.IncludeUsage)
}

func TestValidate(t *testing.T) {
	a := &Adaptor{}

	assert.Error(t, a.Validate(&relaymodel.StandardRequest{}))

	assert.Error(t, a.Validate(&relaymodel.StandardRequest{
		Messages: []relaymodel.Message{{Role: "narrator", Content: "hi"}},
	}))

	assert.Error(t, a.Validate(&relaymodel.StandardRequest{
		Messages: []relaymodel.Message{{Role: "user", Content: "hi"}},
		Tools:    []relaymodel.Tool{{Type: "function"}},
	}), "tool without function definition")

	assert.NoError(t, a.Validate(&relaymodel.StandardRequest{
		Messages: []relaymodel.Message{
			{Role: "system", Content: "be brief"},
			{Role: "user", Content: "hi"},
		},
	}))
}
