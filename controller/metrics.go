package controller

import (
	"context"
	"time"

	gmw "github.com/Laisky/gin-middlewares/v6"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/makehub/llm-gateway/common/graceful"
	dbmodel "github.com/makehub/llm-gateway/model"
	"github.com/makehub/llm-gateway/monitor"
	"github.com/makehub/llm-gateway/relay/meta"
	relaymodel "github.com/makehub/llm-gateway/relay/model"
	"github.com/makehub/llm-gateway/relay/streaming"
)

// emitSample records one attempt outcome for the selector's performance window
// and the Prometheus surface. Persisted as a tracked background task so a
// shutdown drains pending writes; a storage failure is logged and dropped.
func emitSample(c *gin.Context, m *meta.Meta, usage *relaymodel.Usage, cost float64, success, errorKind string) {
	lg := gmw.GetLogger(c)
	totalMs := time.Since(m.StartTime).Milliseconds()

	sample := &dbmodel.MetricsSample{
		RequestId:       m.RequestId,
		UserId:          m.UserId,
		ModelId:         m.ResolvedModel,
		Provider:        m.Model.Provider,
		Adapter:         m.Model.AdapterType,
		Streamed:        m.IsStream,
		Cost:            cost,
		TotalDurationMs: totalMs,
		AttemptNumber:   m.AttemptNumber,
		Success:         success,
		ErrorKind:       errorKind,
		CreatedAt:       time.Now(),
	}
	if usage != nil {
		sample.PromptTokens = usage.PromptTokens
		sample.CompletionTokens = usage.CompletionTokens
		sample.CachedTokens = usage.CachedTokens
	}
	if tracker := streaming.FromContext(c); tracker != nil && m.IsStream {
		sample.TimeToFirstChunkMs = tracker.TimeToFirstChunkMs()
		sample.ThroughputTokensS = tracker.ThroughputTokensPerSecond()
	} else if usage != nil && totalMs > 0 {
		sample.ThroughputTokensS = float64(usage.CompletionTokens) / (float64(totalMs) / 1000)
	}

	monitor.RecordRelaySample(sample)

	graceful.GoCritical(context.WithoutCancel(c.Request.Context()), "recordMetricsSample",
		func(ctx context.Context) {
			if err := dbmodel.RecordMetricsSample(sample); err != nil {
				lg.Error("metrics sample write failed",
					zap.String("request_id", sample.RequestId),
					zap.Error(err))
			}
		})
}
