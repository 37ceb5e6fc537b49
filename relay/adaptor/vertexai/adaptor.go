// Package vertexai implements the vertex-anthropic adapter: the Anthropic
// Messages protocol served by Vertex AI, addressed per project and region and
// authenticated with Google OAuth2 credentials.
package vertexai

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Laisky/errors/v2"
	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"

	"github.com/makehub/llm-gateway/common/config"
	"github.com/makehub/llm-gateway/model"
	"github.com/makehub/llm-gateway/relay/adaptor"
	"github.com/makehub/llm-gateway/relay/adaptor/anthropic"
	"github.com/makehub/llm-gateway/relay/meta"
	relaymodel "github.com/makehub/llm-gateway/relay/model"
)

const anthropicVersion = "vertex-2023-10-16"
const scope = "https://www.googleapis.com/auth/cloud-platform"

type Adaptor struct {
	projectId   string
	region      string
	tokenSource oauth2.TokenSource
}

var _ adaptor.Adaptor = (*Adaptor)(nil)

func (a *Adaptor) Init(m *meta.Meta) error {
	a.projectId = m.ExtraParams["project_id"]
	if a.projectId == "" {
		a.projectId = config.GCPProjectID
	}
	a.region = m.ExtraParams["region"]
	if a.region == "" {
		a.region = config.GCPRegion
	}
	if a.projectId == "" {
		return errors.Errorf("no gcp project for %s/%s", m.Model.ModelId, m.Model.Provider)
	}

	clientEmail := m.ExtraParams["client_email"]
	privateKey := m.ExtraParams["private_key"]
	if clientEmail == "" {
		clientEmail = config.GCPClientEmail
		privateKey = config.GCPPrivateKey
	}

	if clientEmail != "" && privateKey != "" {
		// Private keys arriving through env vars carry literal \n sequences.
		privateKey = strings.ReplaceAll(privateKey, `\n`, "\n")
		conf := &jwt.Config{
			Email:      clientEmail,
			PrivateKey: []byte(privateKey),
			TokenURL:   google.JWTTokenURL,
			Scopes:     []string{scope},
		}
		a.tokenSource = conf.TokenSource(context.Background())
		return nil
	}

	creds, err := google.FindDefaultCredentials(context.Background(), scope)
	if err != nil {
		return errors.Wrap(err, "discover gcp credentials")
	}
	a.tokenSource = creds.TokenSource
	return nil
}

func (a *Adaptor) IsConfigured() bool {
	return a.tokenSource != nil
}

func (a *Adaptor) Validate(request *relaymodel.StandardRequest) error {
	return anthropic.ValidateRequest(request)
}

func (a *Adaptor) GetRequestURL(m *meta.Meta) (string, error) {
	upstreamModel := m.Model.ProviderModelId
	if upstreamModel == "" {
		upstreamModel = m.Model.ModelId
	}
	method := "rawPredict"
	if m.IsStream {
		method = "streamRawPredict"
	}
	return fmt.Sprintf("https://%s-aiplatform.googleapis.com/v1/projects/%s/locations/%s/publishers/anthropic/models/%s:%s",
		a.region, a.projectId, a.region, upstreamModel, method), nil
}

func (a *Adaptor) SetupRequestHeader(c *gin.Context, req *http.Request, m *meta.Meta) error {
	adaptor.SetupCommonRequestHeader(c, req, m)
	token, err := a.tokenSource.Token()
	if err != nil {
		return errors.Wrap(err, "fetch gcp access token")
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	return nil
}

func (a *Adaptor) ConvertRequest(c *gin.Context, m *meta.Meta, request *relaymodel.StandardRequest) (any, error) {
	converted, err := anthropic.ConvertRequest(m, request)
	if err != nil {
		return nil, err
	}
	converted.AnthropicVersion = anthropicVersion
	// The model is addressed by the URL.
	converted.Model = ""
	// Vertex rejects url image sources.
	if err := anthropic.InlineRemoteImages(converted); err != nil {
		return nil, err
	}
	return converted, nil
}

func (a *Adaptor) DoRequest(c *gin.Context, m *meta.Meta, requestBody io.Reader) (*http.Response, error) {
	return adaptor.DoRequestHelper(a, c, m, requestBody)
}

func (a *Adaptor) DoResponse(c *gin.Context, resp *http.Response, m *meta.Meta) (*relaymodel.Usage, *relaymodel.ErrorWithStatusCode) {
	if resp.StatusCode != http.StatusOK {
		return nil, anthropic.ErrorHandler(resp, m.Model.Provider)
	}
	defer resp.Body.Close()
	if m.IsStream {
		return anthropic.StreamHandler(c, resp.Body, m)
	}
	return anthropic.Handler(c, resp.Body, m)
}

func (a *Adaptor) GetAdapterName() string {
	return model.AdapterVertexAnthropic
}
