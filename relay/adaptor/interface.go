package adaptor

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/makehub/llm-gateway/relay/meta"
	"github.com/makehub/llm-gateway/relay/model"
)

// Adaptor translates between the canonical request/response shapes and one
// upstream wire protocol. The orchestrator drives the stages in order:
// Init, Validate, ConvertRequest, DoRequest, DoResponse.
//
// Adapters that call a cloud SDK instead of plain HTTP (bedrock) return nil
// from DoRequest and perform the call inside DoResponse.
type Adaptor interface {
	// Init resolves credentials and endpoint settings from the candidate's
	// extra params. Missing required values are a configuration error, which
	// lets the orchestrator fall through to the next provider.
	Init(meta *meta.Meta) error

	// IsConfigured reports whether Init completed with usable credentials.
	IsConfigured() bool

	// Validate checks the request shape against this protocol's constraints.
	Validate(request *model.StandardRequest) error

	// GetRequestURL builds the upstream endpoint URL.
	GetRequestURL(meta *meta.Meta) (string, error)

	// SetupRequestHeader sets protocol auth and content headers.
	SetupRequestHeader(c *gin.Context, req *http.Request, meta *meta.Meta) error

	// ConvertRequest translates the canonical request into the wire shape.
	ConvertRequest(c *gin.Context, meta *meta.Meta, request *model.StandardRequest) (any, error)

	// DoRequest performs the upstream HTTP call.
	DoRequest(c *gin.Context, meta *meta.Meta, requestBody io.Reader) (*http.Response, error)

	// DoResponse translates the upstream response, streaming it to the client
	// when meta.IsStream, and returns the final usage.
	DoResponse(c *gin.Context, resp *http.Response, meta *meta.Meta) (*model.Usage, *model.ErrorWithStatusCode)

	// GetAdapterName returns the adapter type identifier.
	GetAdapterName() string
}
