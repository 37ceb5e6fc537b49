package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/makehub/llm-gateway/common/graceful"
)

// TrackRequest counts the request as in-flight for the drain phase of a
// graceful shutdown. Long-running SSE handlers are counted until they return.
func TrackRequest() gin.HandlerFunc {
	return func(c *gin.Context) {
		done := graceful.BeginRequest()
		defer done()
		c.Next()
	}
}
