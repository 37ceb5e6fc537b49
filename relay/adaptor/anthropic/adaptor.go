// Package anthropic implements the Anthropic Messages protocol and hosts the
// translation core shared with the bedrock and vertex adapters.
package anthropic

import (
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

const defaultBaseURL = "https://api.anthropic.com"
const apiVersion = "2023-06-01"

type Adaptor struct {
	baseURL string
	apiKey  string
}

var _ adaptor.Adaptor = (*Adaptor)(nil)

func (a *Adaptor) Init(m *meta.Meta) error {
	a.baseURL = strings.TrimSuffix(m.ExtraParams["base_url"], "/")
	if a.baseURL == "" {
		a.baseURL = defaultBaseURL
	}
	a.apiKey = m.ExtraParams["api_key"]
	if a.apiKey == "" {
		a.apiKey = config.APIKeyAnthropic
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
	return ValidateRequest(request)
}

// ValidateRequest holds the shape rules shared by the whole anthropic family.
func ValidateRequest(request *relaymodel.StandardRequest) error {
	if len(request.Messages) == 0 {
		return errors.New("messages must not be empty")
	}
	for i := range request.Messages {
		msg := &request.Messages[i]
		switch msg.Role {
		case "system", "user", "assistant":
		case "tool":
			if msg.ToolCallId == "" {
				return errors.Errorf("tool message at messages[%d] missing tool_call_id", i)
			}
		default:
			return errors.Errorf("invalid role %q at messages[%d]", msg.Role, i)
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
	return a.baseURL + "/v1/messages", nil
}

func (a *Adaptor) SetupRequestHeader(c *gin.Context, req *http.Request, m *meta.Meta) error {
	adaptor.SetupCommonRequestHeader(c, req, m)
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", apiVersion)
	return nil
}

func (a *Adaptor) ConvertRequest(c *gin.Context, m *meta.Meta, request *relaymodel.StandardRequest) (any, error) {
	converted, err := ConvertRequest(m, request)
	if err != nil {
		return nil, err
	}
	converted.Model = m.Model.ProviderModelId
	if converted.Model == "" {
		converted.Model = m.Model.ModelId
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
	defer resp.Body.Close()
	if m.IsStream {
		return StreamHandler(c, resp.Body, m)
	}
	return Handler(c, resp.Body, m)
}

func (a *Adaptor) GetAdapterName() string {
	return model.AdapterAnthropic
}
