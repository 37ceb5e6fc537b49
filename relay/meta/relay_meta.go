package meta

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/makehub/llm-gateway/common/ctxkey"
	"github.com/makehub/llm-gateway/model"
)

// Meta aggregates everything one relay attempt needs: caller identity, the
// resolved model, the candidate being tried and its adapter parameters. It is
// built once per request and updated by the orchestrator between attempts.
type Meta struct {
	RequestId string
	UserId    int

	// RequestModel is the model reference exactly as the caller sent it.
	RequestModel string
	// ResolvedModel is the concrete model id after family routing.
	ResolvedModel string
	// RoutingSource is "explicit" or "family:<name>".
	RoutingSource string

	// Candidate being attempted.
	Model *model.Model
	// ExtraParams is the candidate's extra_param map with env references
	// resolved.
	ExtraParams map[string]string

	AttemptNumber int
	IsStream      bool
	SpeedVsPrice  int

	// PromptTokensEstimate is the tokenizer estimate used by the context
	// window filter; the provider's own count supersedes it for billing.
	PromptTokensEstimate int

	StartTime time.Time
}

// Set2Context stores the meta on the gin context.
func Set2Context(c *gin.Context, m *Meta) {
	c.Set(ctxkey.Meta, m)
}

// GetByContext retrieves the meta stored by the orchestrator. Returns nil when
// no relay is in flight on this context.
func GetByContext(c *gin.Context) *Meta {
	if v, ok := c.Get(ctxkey.Meta); ok {
		return v.(*Meta)
	}
	return nil
}
