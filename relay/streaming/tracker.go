// Package streaming tracks per-stream observations: first-chunk latency,
// token progress and the final usage block. Adapters feed it while writing
// chunks; the orchestrator reads it for billing and metrics, including the
// partial numbers left behind by a client disconnect.
package streaming

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/makehub/llm-gateway/common/ctxkey"
	relaymodel "github.com/makehub/llm-gateway/relay/model"
)

type Tracker struct {
	mu sync.Mutex

	start        time.Time
	firstChunkAt time.Time
	lastChunkAt  time.Time

	contentChars int
	usage        *relaymodel.Usage
}

func NewTracker(start time.Time) *Tracker {
	return &Tracker{start: start}
}

// OnChunk records chunk timing. Call once per chunk written to the client.
func (t *Tracker) OnChunk() {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	if t.firstChunkAt.IsZero() {
		t.firstChunkAt = now
	}
	t.lastChunkAt = now
}

// AddContent accumulates delta text so token throughput can be approximated
// when the upstream never delivers a usage block.
func (t *Tracker) AddContent(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.contentChars += len(text)
}

// SetUsage stores the authoritative usage from the final chunk.
func (t *Tracker) SetUsage(usage *relaymodel.Usage) {
	if usage == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	usage.Normalize()
	t.usage = usage
}

// Usage returns the upstream usage when present, else an approximation from
// observed content. Used for partial debits after a disconnect.
func (t *Tracker) Usage() *relaymodel.Usage {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.usage != nil {
		return t.usage
	}
	approx := &relaymodel.Usage{CompletionTokens: t.contentChars / 4}
	approx.Normalize()
	return approx
}

// HasUsage reports whether the upstream delivered a usage block.
func (t *Tracker) HasUsage() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.usage != nil
}

// TimeToFirstChunkMs is the latency between request start and the first chunk.
// Zero when no chunk was ever written.
func (t *Tracker) TimeToFirstChunkMs() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.firstChunkAt.IsZero() {
		return 0
	}
	return t.firstChunkAt.Sub(t.start).Milliseconds()
}

// ThroughputTokensPerSecond is completion tokens over the streaming window.
func (t *Tracker) ThroughputTokensPerSecond() float64 {
	usage := t.Usage()

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.firstChunkAt.IsZero() {
		return 0
	}
	window := t.lastChunkAt.Sub(t.firstChunkAt).Seconds()
	if window <= 0 {
		window = t.lastChunkAt.Sub(t.start).Seconds()
	}
	if window <= 0 {
		return 0
	}
	return float64(usage.CompletionTokens) / window
}

// FromContext fetches the tracker installed by the orchestrator, or nil.
func FromContext(c *gin.Context) *Tracker {
	if v, ok := c.Get(ctxkey.StreamingTracker); ok {
		return v.(*Tracker)
	}
	return nil
}

// Install stores the tracker for adapters to find.
func Install(c *gin.Context, t *Tracker) {
	c.Set(ctxkey.StreamingTracker, t)
}
