// Package aws implements the bedrock-anthropic adapter. The request body is
// the Anthropic Messages shape with the bedrock anthropic_version pin; the
// call itself goes through the Bedrock runtime SDK rather than plain HTTP, so
// DoRequest is a no-op and the invocation happens in DoResponse.
package aws

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/Laisky/errors/v2"
	awslib "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/gin-gonic/gin"

	"github.com/makehub/llm-gateway/common/config"
	"github.com/makehub/llm-gateway/common/ctxkey"
	"github.com/makehub/llm-gateway/model"
	"github.com/makehub/llm-gateway/relay/adaptor"
	"github.com/makehub/llm-gateway/relay/adaptor/anthropic"
	"github.com/makehub/llm-gateway/relay/meta"
	relaymodel "github.com/makehub/llm-gateway/relay/model"
)

const anthropicVersion = "bedrock-2023-05-31"

type Adaptor struct {
	client *bedrockruntime.Client
}

var _ adaptor.Adaptor = (*Adaptor)(nil)

func (a *Adaptor) Init(m *meta.Meta) error {
	region := m.ExtraParams["region"]
	if region == "" {
		region = config.AWSRegion
	}
	accessKey := m.ExtraParams["aws_access_key_id"]
	secretKey := m.ExtraParams["aws_secret_access_key"]
	if accessKey == "" {
		accessKey = config.AWSAccessKeyID
		secretKey = config.AWSSecretAccessKey
	}

	if accessKey != "" {
		a.client = bedrockruntime.New(bedrockruntime.Options{
			Region:      region,
			Credentials: awslib.NewCredentialsCache(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
		})
		return nil
	}

	// No explicit keys; fall back to the default chain (instance profile,
	// shared config).
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		return errors.Wrap(err, "load aws credentials")
	}
	a.client = bedrockruntime.NewFromConfig(cfg)
	return nil
}

func (a *Adaptor) IsConfigured() bool {
	return a.client != nil
}

func (a *Adaptor) Validate(request *relaymodel.StandardRequest) error {
	return anthropic.ValidateRequest(request)
}

func (a *Adaptor) GetRequestURL(m *meta.Meta) (string, error) {
	// The SDK owns endpoint resolution.
	return "", nil
}

func (a *Adaptor) SetupRequestHeader(c *gin.Context, req *http.Request, m *meta.Meta) error {
	return nil
}

func (a *Adaptor) ConvertRequest(c *gin.Context, m *meta.Meta, request *relaymodel.StandardRequest) (any, error) {
	converted, err := anthropic.ConvertRequest(m, request)
	if err != nil {
		return nil, err
	}
	converted.AnthropicVersion = anthropicVersion
	// The model rides in the invocation ARN and streaming is chosen by the
	// SDK operation, not the body.
	converted.Model = ""
	converted.Stream = false
	// Bedrock rejects url image sources.
	if err := anthropic.InlineRemoteImages(converted); err != nil {
		return nil, err
	}
	c.Set(ctxkey.ConvertedRequest, converted)
	return converted, nil
}

func (a *Adaptor) DoRequest(c *gin.Context, m *meta.Meta, requestBody io.Reader) (*http.Response, error) {
	return nil, nil
}

func (a *Adaptor) DoResponse(c *gin.Context, resp *http.Response, m *meta.Meta) (*relaymodel.Usage, *relaymodel.ErrorWithStatusCode) {
	converted, ok := c.Get(ctxkey.ConvertedRequest)
	if !ok {
		return nil, invocationError(errors.New("converted request not found"), m.Model.Provider)
	}
	body, err := json.Marshal(converted)
	if err != nil {
		return nil, invocationError(errors.Wrap(err, "marshal bedrock request"), m.Model.Provider)
	}

	modelId := m.Model.ProviderModelId
	if modelId == "" {
		modelId = m.Model.ModelId
	}

	if m.IsStream {
		return a.streamInvoke(c, m, modelId, body)
	}

	out, err := a.client.InvokeModel(c.Request.Context(), &bedrockruntime.InvokeModelInput{
		ModelId:     awslib.String(modelId),
		Body:        body,
		ContentType: awslib.String("application/json"),
		Accept:      awslib.String("application/json"),
	})
	if err != nil {
		return nil, classifyInvokeError(err, m.Model.Provider)
	}
	return anthropic.Handler(c, bytes.NewReader(out.Body), m)
}

func (a *Adaptor) GetAdapterName() string {
	return model.AdapterBedrockAnthropic
}
