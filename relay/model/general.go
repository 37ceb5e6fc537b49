package model

import (
	"encoding/json"
	"strings"

	"github.com/Laisky/errors/v2"
)

// ModelRef is the "model" field of a chat completion request. Callers usually
// send a plain string alias, but the field also accepts an object form that
// pins a concrete provider model and carries extra adapter parameters.
type ModelRef struct {
	// Alias is the string form: a model id, optionally a family alias
	// such as "makehub-sota/family".
	Alias string
	// Object form fields, set only when the caller sent an object.
	ModelID         string
	ProviderModelID string
	ExtraParam      map[string]string
}

// IsFamily reports whether the reference is a family alias.
func (m ModelRef) IsFamily() bool {
	return strings.HasSuffix(m.Requested(), "/family")
}

// Requested returns the model id the caller asked for, regardless of form.
func (m ModelRef) Requested() string {
	if m.Alias != "" {
		return m.Alias
	}
	return m.ModelID
}

func (m ModelRef) MarshalJSON() ([]byte, error) {
	if m.Alias != "" {
		return json.Marshal(m.Alias)
	}
	return json.Marshal(map[string]any{
		"model_id":          m.ModelID,
		"provider_model_id": m.ProviderModelID,
		"extra_param":       m.ExtraParam,
	})
}

func (m *ModelRef) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return errors.Wrap(json.Unmarshal(data, &m.Alias), "unmarshal model alias")
	}
	var obj struct {
		ModelID         string            `json:"model_id"`
		ProviderModelID string            `json:"provider_model_id"`
		ExtraParam      map[string]string `json:"extra_param"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return errors.Wrap(err, "unmarshal model object")
	}
	m.Alias = ""
	m.ModelID = obj.ModelID
	m.ProviderModelID = obj.ProviderModelID
	m.ExtraParam = obj.ExtraParam
	return nil
}

// StandardRequest is the canonical internal request shape, isomorphic to an
// OpenAI chat completion request plus gateway routing knobs.
type StandardRequest struct {
	Model            ModelRef       `json:"model"`
	Messages         []Message      `json:"messages"`
	Stream           bool           `json:"stream,omitempty"`
	StreamOptions    *StreamOptions `json:"stream_options,omitempty"`
	MaxTokens        int            `json:"max_tokens,omitempty"`
	Temperature      *float64       `json:"temperature,omitempty"`
	TopP             *float64       `json:"top_p,omitempty"`
	FrequencyPenalty *float64       `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64       `json:"presence_penalty,omitempty"`
	// Stop accepts a string or a list of strings.
	Stop       any    `json:"stop,omitempty"`
	User       string `json:"user,omitempty"`
	Tools      []Tool `json:"tools,omitempty"`
	ToolChoice any    `json:"tool_choice,omitempty"`

	// Routing knobs, stripped before the request reaches any upstream.
	SpeedVsPrice    *int     `json:"speed_vs_price,omitempty"`
	Providers       []string `json:"providers,omitempty"`
	MaxCostPerToken *float64 `json:"max_cost_per_token,omitempty"`
}

type StreamOptions struct {
	IncludeUsage bool `json:"include_usage,omitempty"`
}

// StopSequences normalizes the stop field into a string slice.
func (r *StandardRequest) StopSequences() []string {
	switch v := r.Stop.(type) {
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// HasTools reports whether the caller supplied any tool definitions.
func (r *StandardRequest) HasTools() bool {
	return len(r.Tools) > 0
}

// HasImages reports whether any message carries image content.
func (r *StandardRequest) HasImages() bool {
	for i := range r.Messages {
		for _, part := range r.Messages[i].ParseContent() {
			if part.Type == ContentTypeImageURL {
				return true
			}
		}
	}
	return false
}
