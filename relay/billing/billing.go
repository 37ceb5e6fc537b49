// Package billing turns usage blocks into wallet debits.
package billing

import (
	"context"

	gmw "github.com/Laisky/gin-middlewares/v6"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/makehub/llm-gateway/common/graceful"
	"github.com/makehub/llm-gateway/model"
	"github.com/makehub/llm-gateway/relay/meta"
	relaymodel "github.com/makehub/llm-gateway/relay/model"
)

// Cost computes the USD cost of a completion. The cache discount applies only
// when the model prices cached tokens; otherwise cached_tokens is
// informational and the full input price stands.
func Cost(m *model.Model, usage *relaymodel.Usage) float64 {
	if usage == nil {
		return 0
	}
	cost := float64(usage.PromptTokens)*m.PricePerInputToken +
		float64(usage.CompletionTokens)*m.PricePerOutputToken
	if m.PricePerCachedToken != nil && usage.CachedTokens > 0 {
		cost -= float64(usage.CachedTokens) * (m.PricePerInputToken - *m.PricePerCachedToken)
	}
	if cost < 0 {
		cost = 0
	}
	return cost
}

// Debit charges the wallet after the response has been produced. It runs as a
// tracked background task so shutdown drains it, and a failure is logged but
// never propagated: the caller already has their response.
func Debit(c *gin.Context, m *meta.Meta, cost float64) {
	lg := gmw.GetLogger(c)
	userId := m.UserId
	requestId := m.RequestId
	modelId := m.Model.ModelId
	provider := m.Model.Provider

	graceful.GoCritical(context.WithoutCancel(c.Request.Context()), "walletDebit", func(ctx context.Context) {
		if err := model.DebitUser(userId, cost, requestId, modelId, provider); err != nil {
			lg.Error("wallet debit failed",
				zap.Int("user_id", userId),
				zap.String("request_id", requestId),
				zap.Float64("cost", cost),
				zap.Error(err))
		}
	})
}
