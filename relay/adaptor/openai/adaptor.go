// Package openai implements the pass-through protocol for OpenAI-compatible
// backends, including Azure deployments which differ only in addressing and
// auth header.
package openai

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Laisky/errors/v2"
	"github.com/gin-gonic/gin"

	"github.com/makehub/llm-gateway/common/config"
	"github.com/makehub/llm-gateway/model"
	"github.com/makehub/llm-gateway/relay/adaptor"
	"github.com/makehub/llm-gateway/relay/meta"
	relaymodel "github.com/makehub/llm-gateway/relay/model"
)

const defaultBaseURL = "https://api.openai.com/v1"
const defaultAzureAPIVersion = "2024-06-01"

type Adaptor struct {
	isAzure bool
	apiKey  string

	// openai
	baseURL string

	// azure
	endpoint   string
	deployment string
	apiVersion string
}

var _ adaptor.Adaptor = (*Adaptor)(nil)

func (a *Adaptor) Init(m *meta.Meta) error {
	a.isAzure = m.Model.AdapterType == model.AdapterAzureOpenAI

	if a.isAzure {
		a.endpoint = strings.TrimSuffix(m.ExtraParams["endpoint"], "/")
		a.deployment = m.ExtraParams["deployment"]
		if a.deployment == "" {
			a.deployment = m.Model.ProviderModelId
		}
		a.apiVersion = m.ExtraParams["api_version"]
		if a.apiVersion == "" {
			a.apiVersion = defaultAzureAPIVersion
		}
		a.apiKey = m.ExtraParams["api_key"]
		if a.endpoint == "" || a.deployment == "" || a.apiKey == "" {
			return errors.Errorf("azure deployment %s/%s missing endpoint, deployment or api_key",
				m.Model.ModelId, m.Model.Provider)
		}
		return nil
	}

	a.baseURL = strings.TrimSuffix(m.ExtraParams["base_url"], "/")
	if a.baseURL == "" {
		a.baseURL = defaultBaseURL
	}
	a.apiKey = m.ExtraParams["api_key"]
	if a.apiKey == "" {
		a.apiKey = config.APIKeyOpenAI
	}
	if a.apiKey == "" {
		return errors.Errorf("no api key for %s/%s", m.Model.ModelId, m.Model.Provider)
	}
	return nil
}

func (a *Adaptor) IsConfigured() bool {
	return a.apiKey != ""
}

func (a *Adaptor) Validate(request *relaymodel.StandardRequest) error {
	if len(request.Messages) == 0 {
		return errors.New("messages must not be empty")
	}
	for i := range request.Messages {
		switch request.Messages[i].Role {
		case "system", "user", "assistant", "tool":
		default:
			return errors.Errorf("invalid role %q at messages[%d]", request.Messages[i].Role, i)
		}
	}
	for i := range request.Tools {
		if err := request.Tools[i].Validate(); err != nil {
			return errors.Wrapf(err, "tools[%d]", i)
		}
	}
	return nil
}

func (a *Adaptor) GetRequestURL(m *meta.Meta) (string, error) {
	if a.isAzure {
		return fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
			a.endpoint, a.deployment, a.apiVersion), nil
	}
	return a.baseURL + "/chat/completions", nil
}

func (a *Adaptor) SetupRequestHeader(c *gin.Context, req *http.Request, m *meta.Meta) error {
	adaptor.SetupCommonRequestHeader(c, req, m)
	if a.isAzure {
		req.Header.Set("api-key", a.apiKey)
	} else {
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
	}
	return nil
}

// Request is the OpenAI wire shape: the canonical request with routing knobs
// stripped and the model name replaced by the provider's own.
type Request struct {
	Model            string                     `json:"model"`
	Messages         []relaymodel.Message       `json:"messages"`
	Stream           bool                       `json:"stream,omitempty"`
	StreamOptions    *relaymodel.StreamOptions  `json:"stream_options,omitempty"`
	MaxTokens        int                        `json:"max_tokens,omitempty"`
	Temperature      *float64                   `json:"temperature,omitempty"`
	TopP             *float64                   `json:"top_p,omitempty"`
	FrequencyPenalty *float64                   `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64                   `json:"presence_penalty,omitempty"`
	Stop             any                        `json:"stop,omitempty"`
	User             string                     `json:"user,omitempty"`
	Tools            []relaymodel.Tool          `json:"tools,omitempty"`
	ToolChoice       any                        `json:"tool_choice,omitempty"`
}

func (a *Adaptor) ConvertRequest(c *gin.Context, m *meta.Meta, request *relaymodel.StandardRequest) (any, error) {
	if request == nil {
		return nil, errors.New("request is nil")
	}
	upstreamModel := m.Model.ProviderModelId
	if upstreamModel == "" {
		upstreamModel = m.Model.ModelId
	}
	converted := &Request{
		Model:            upstreamModel,
		Messages:         request.Messages,
		Stream:           request.Stream,
		MaxTokens:        request.MaxTokens,
		Temperature:      request.Temperature,
		TopP:             request.TopP,
		FrequencyPenalty: request.FrequencyPenalty,
		PresencePenalty:  request.PresencePenalty,
		Stop:             request.Stop,
		User:             request.User,
		Tools:            request.Tools,
		ToolChoice:       request.ToolChoice,
	}
	if request.Stream {
		// Usage on the final chunk is required for billing.
		converted.StreamOptions = &relaymodel.StreamOptions{IncludeUsage: true}
	}
	return converted, nil
}

func (a *Adaptor) DoRequest(c *gin.Context, m *meta.Meta, requestBody io.Reader) (*http.Response, error) {
	return adaptor.DoRequestHelper(a, c, m, requestBody)
}

func (a *Adaptor) DoResponse(c *gin.Context, resp *http.Response, m *meta.Meta) (*relaymodel.Usage, *relaymodel.ErrorWithStatusCode) {
	if resp.StatusCode != http.StatusOK {
		return nil, ErrorHandler(resp, m.Model.Provider)
	}
	if m.IsStream {
		return StreamHandler(c, resp, m)
	}
	return Handler(c, resp, m)
}

func (a *Adaptor) GetAdapterName() string {
	if a.isAzure {
		return model.AdapterAzureOpenAI
	}
	return model.AdapterOpenAI
}
