// Package monitor is the observability surface: Prometheus collectors for the
// relay pipeline and the fire-and-forget webhook notifier.
package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	dbmodel "github.com/makehub/llm-gateway/model"
)

var (
	attemptTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "llm_gateway",
		Name:      "relay_attempts_total",
		Help:      "Relay attempts by provider, model and outcome.",
	}, []string{"provider", "model", "outcome"})

	requestErrorTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "llm_gateway",
		Name:      "request_errors_total",
		Help:      "Terminal request errors by kind.",
	}, []string{"kind"})

	relayDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "llm_gateway",
		Name:      "relay_duration_seconds",
		Help:      "End-to-end attempt duration.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"provider", "model", "streamed"})

	firstChunkLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "llm_gateway",
		Name:      "time_to_first_chunk_seconds",
		Help:      "Latency to the first streamed chunk.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"provider", "model"})

	tokensTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "llm_gateway",
		Name:      "tokens_total",
		Help:      "Tokens relayed by provider, model and direction.",
	}, []string{"provider", "model", "direction"})

	costTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "llm_gateway",
		Name:      "cost_usd_total",
		Help:      "Billed cost in USD by provider and model.",
	}, []string{"provider", "model"})
)

// RecordAttempt counts one attempt outcome.
func RecordAttempt(provider, model string, success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	attemptTotal.WithLabelValues(provider, model, outcome).Inc()
}

// RecordRequestError counts a terminal caller-facing error.
func RecordRequestError(kind string) {
	requestErrorTotal.WithLabelValues(kind).Inc()
}

// RecordRelaySample exports the per-attempt numbers that also land in storage.
func RecordRelaySample(sample *dbmodel.MetricsSample) {
	streamed := "false"
	if sample.Streamed {
		streamed = "true"
	}
	relayDuration.WithLabelValues(sample.Provider, sample.ModelId, streamed).
		Observe(float64(sample.TotalDurationMs) / 1000)
	if sample.TimeToFirstChunkMs > 0 {
		firstChunkLatency.WithLabelValues(sample.Provider, sample.ModelId).
			Observe(float64(sample.TimeToFirstChunkMs) / 1000)
	}
	tokensTotal.WithLabelValues(sample.Provider, sample.ModelId, "prompt").
		Add(float64(sample.PromptTokens))
	tokensTotal.WithLabelValues(sample.Provider, sample.ModelId, "completion").
		Add(float64(sample.CompletionTokens))
	tokensTotal.WithLabelValues(sample.Provider, sample.ModelId, "cached").
		Add(float64(sample.CachedTokens))
	costTotal.WithLabelValues(sample.Provider, sample.ModelId).Add(sample.Cost)
}
