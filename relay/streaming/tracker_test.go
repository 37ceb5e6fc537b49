package streaming

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	relaymodel "github.com/makehub/llm-gateway/relay/model"
)

func TestTrackerFirstChunkLatency(t *testing.T) {
	tracker := NewTracker(time.Now().Add(-50 * time.Millisecond))
	assert.Zero(t, tracker.TimeToFirstChunkMs(), "no chunk yet")

	tracker.OnChunk()
	first := tracker.TimeToFirstChunkMs()
	assert.GreaterOrEqual(t, first, int64(50))

	// Later chunks do not move the first-chunk mark.
	time.Sleep(5 * time.Millisecond)
	tracker.OnChunk()
	assert.Equal(t, first, tracker.TimeToFirstChunkMs())
}

func TestTrackerUsagePreferred(t *testing.T) {
	tracker := NewTracker(time.Now())
	tracker.AddContent("some streamed text that should be ignored")
	assert.False(t, tracker.HasUsage())

	tracker.SetUsage(&relaymodel.Usage{PromptTokens: 10, CompletionTokens: 20})
	require.True(t, tracker.HasUsage())

	usage := tracker.Usage()
	assert.Equal(t, 10, usage.PromptTokens)
	assert.Equal(t, 20, usage.CompletionTokens)
	assert.Equal(t, 30, usage.TotalTokens)
}

func TestTrackerUsageApproximation(t *testing.T) {
	tracker := NewTracker(time.Now())
	// 40 chars of delta text approximate to 10 completion tokens.
	tracker.AddContent("0123456789012345678901234567890123456789")

	usage := tracker.Usage()
	require.NotNil(t, usage)
	assert.Equal(t, 10, usage.CompletionTokens)
	assert.Zero(t, usage.PromptTokens)
	assert.False(t, tracker.HasUsage(), "approximation is not authoritative")
}

func TestTrackerSetUsageNil(t *testing.T) {
	tracker := NewTracker(time.Now())
	tracker.SetUsage(nil)
	assert.False(t, tracker.HasUsage())
}

func TestTrackerThroughput(t *testing.T) {
	tracker := NewTracker(time.Now())
	assert.Zero(t, tracker.ThroughputTokensPerSecond(), "no chunks yet")

	tracker.OnChunk()
	time.Sleep(20 * time.Millisecond)
	tracker.OnChunk()
	tracker.SetUsage(&relaymodel.Usage{CompletionTokens: 100})

	tps := tracker.ThroughputTokensPerSecond()
	assert.Greater(t, tps, 0.0)
	assert.Less(t, tps, 100.0/0.02*2, "bounded by the observed window")
}
