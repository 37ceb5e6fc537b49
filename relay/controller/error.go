package controller

import (
	"context"
	"net"
	"net/url"

	"github.com/Laisky/errors/v2"
	"github.com/gin-gonic/gin"

	relaymodel "github.com/makehub/llm-gateway/relay/model"
)

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr) && urlErr.Timeout()
}

// WriteError emits the OpenAI-style error envelope for a terminal failure.
func WriteError(c *gin.Context, bizErr *relaymodel.ErrorWithStatusCode) {
	status := bizErr.StatusCode
	if bizErr.Kind != "" {
		status = bizErr.Kind.StatusCode()
	}
	body := bizErr.Error
	if bizErr.Kind != "" {
		body.Code = string(bizErr.Kind)
	}
	c.JSON(status, gin.H{"error": body})
}

// NewTerminalError builds a caller-facing error of the given kind.
func NewTerminalError(kind relaymodel.ErrorKind, message string) *relaymodel.ErrorWithStatusCode {
	return &relaymodel.ErrorWithStatusCode{
		StatusCode: kind.StatusCode(),
		Kind:       kind,
		Error: relaymodel.Error{
			Message: message,
			Type:    "gateway_error",
			Code:    string(kind),
		},
	}
}
