package adaptor

import (
	"io"
	"net/http"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/gin-gonic/gin"

	"github.com/makehub/llm-gateway/common/config"
	"github.com/makehub/llm-gateway/model"
	"github.com/makehub/llm-gateway/relay/meta"
)

// streamClient carries no client-side timeout: long streams are bounded by the
// request context, not the transport.
var streamClient = &http.Client{}

// timedClient bounds non-streaming upstream calls.
func timedClient(m *meta.Meta) *http.Client {
	seconds := config.RelayTimeout
	if m.Model != nil && m.Model.AdapterType == model.AdapterAzureOpenAI {
		seconds = config.AzureRelayTimeout
	}
	return &http.Client{Timeout: time.Duration(seconds) * time.Second}
}

// SetupCommonRequestHeader copies content negotiation headers from the caller
// onto the upstream request.
func SetupCommonRequestHeader(c *gin.Context, req *http.Request, m *meta.Meta) {
	req.Header.Set("Content-Type", "application/json")
	if accept := c.Request.Header.Get("Accept"); accept != "" {
		req.Header.Set("Accept", accept)
	}
	if m.IsStream {
		req.Header.Set("Accept", "text/event-stream")
	}
}

// DoRequestHelper performs the shared URL build, header setup and HTTP round
// trip for adapters that speak plain HTTP.
func DoRequestHelper(a Adaptor, c *gin.Context, m *meta.Meta, requestBody io.Reader) (*http.Response, error) {
	fullRequestURL, err := a.GetRequestURL(m)
	if err != nil {
		return nil, errors.Wrap(err, "get request url")
	}
	req, err := http.NewRequestWithContext(c.Request.Context(), http.MethodPost, fullRequestURL, requestBody)
	if err != nil {
		return nil, errors.Wrap(err, "new upstream request")
	}
	if err = a.SetupRequestHeader(c, req, m); err != nil {
		return nil, errors.Wrap(err, "setup request header")
	}

	client := streamClient
	if !m.IsStream {
		client = timedClient(m)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "do upstream request")
	}
	return resp, nil
}
