package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/makehub/llm-gateway/common/ctxkey"
)

// RequestId assigns every request a unique id, echoed in the response header
// and threaded through logs, metrics and the wallet ledger.
func RequestId() func(c *gin.Context) {
	return func(c *gin.Context) {
		id := c.GetHeader(ctxkey.RequestId)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ctxkey.RequestId, id)
		c.Header(ctxkey.RequestId, id)
		c.Next()
	}
}
