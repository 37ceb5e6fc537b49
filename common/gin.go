package common

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/Laisky/errors/v2"
	"github.com/gin-gonic/gin"

	"github.com/makehub/llm-gateway/common/ctxkey"
)

// GetRequestBody reads the request body once and caches it on the gin context
// so it can be re-read by later stages (auth parses the model field, the
// orchestrator re-binds the full request).
func GetRequestBody(c *gin.Context) ([]byte, error) {
	if body, ok := c.Get(ctxkey.KeyRequestBody); ok {
		return body.([]byte), nil
	}
	requestBody, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read request body")
	}
	_ = c.Request.Body.Close()
	c.Set(ctxkey.KeyRequestBody, requestBody)
	return requestBody, nil
}

// UnmarshalBodyReusable binds the JSON body into v and restores the body so the
// request stays readable for whoever binds next.
func UnmarshalBodyReusable(c *gin.Context, v any) error {
	requestBody, err := GetRequestBody(c)
	if err != nil {
		return err
	}
	if err = json.Unmarshal(requestBody, v); err != nil {
		return errors.Wrap(err, "unmarshal request body")
	}
	c.Request.Body = io.NopCloser(bytes.NewBuffer(requestBody))
	return nil
}
