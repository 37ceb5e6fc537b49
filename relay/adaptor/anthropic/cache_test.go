package anthropic

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bigText(n int) string {
	return strings.Repeat("x", n)
}

func TestPlaceCacheBreakpointsPriorityOrder(t *testing.T) {
	req := &Request{
		Tools: []Tool{
			{Name: "a", InputSchema: map[string]any{"type": "object"}},
			{Name: "b", InputSchema: map[string]any{"type": "object"}},
		},
		System: []ContentBlock{
			{Type: "text", Text: bigText(5000)},
			{Type: "text", Text: bigText(5000)},
		},
		Messages: []Message{
			{Role: "user", Content: []ContentBlock{{Type: "text", Text: bigText(6000)}}},
			{Role: "assistant", Content: []ContentBlock{{Type: "text", Text: bigText(7000)}}},
			{Role: "user", Content: []ContentBlock{{Type: "text", Text: bigText(8000)}}},
		},
	}
	PlaceCacheBreakpoints(req)

	assert.Equal(t, 4, countExistingBreakpoints(req))

	// Markers go on the last element of each span.
	assert.Nil(t, req.Tools[0].CacheControl)
	assert.NotNil(t, req.Tools[1].CacheControl)
	assert.Nil(t, req.System[0].CacheControl)
	assert.NotNil(t, req.System[1].CacheControl)

	// Both user blocks outrank the assistant block; larger user block first.
	assert.NotNil(t, req.Messages[0].Content[0].CacheControl)
	assert.NotNil(t, req.Messages[2].Content[0].CacheControl)
	assert.Nil(t, req.Messages[1].Content[0].CacheControl)
}

func TestPlaceCacheBreakpointsSizeThreshold(t *testing.T) {
	req := &Request{
		Messages: []Message{
			{Role: "user", Content: []ContentBlock{{Type: "text", Text: bigText(minCacheBlockChars - 1)}}},
			{Role: "user", Content: []ContentBlock{{Type: "text", Text: bigText(minCacheBlockChars)}}},
		},
	}
	PlaceCacheBreakpoints(req)

	assert.Nil(t, req.Messages[0].Content[0].CacheControl)
	assert.NotNil(t, req.Messages[1].Content[0].CacheControl)
}

func TestPlaceCacheBreakpointsCallerAnnotationsConsumeBudget(t *testing.T) {
	req := &Request{
		Tools: []Tool{{Name: "a", InputSchema: map[string]any{}}},
		Messages: []Message{
			{Role: "user", Content: []ContentBlock{
				{Type: "text", Text: bigText(5000), CacheControl: ephemeralCacheControl},
				{Type: "text", Text: bigText(5000), CacheControl: ephemeralCacheControl},
				{Type: "text", Text: bigText(5000), CacheControl: ephemeralCacheControl},
				{Type: "text", Text: bigText(5000), CacheControl: ephemeralCacheControl},
			}},
			{Role: "user", Content: []ContentBlock{{Type: "text", Text: bigText(9000)}}},
		},
	}
	PlaceCacheBreakpoints(req)

	// The four caller annotations exhaust the budget; nothing else is marked.
	assert.Equal(t, 4, countExistingBreakpoints(req))
	assert.Nil(t, req.Tools[0].CacheControl)
	assert.Nil(t, req.Messages[1].Content[0].CacheControl)
}

func TestPlaceCacheBreakpointsPartialBudget(t *testing.T) {
	req := &Request{
		System: []ContentBlock{{Type: "text", Text: bigText(5000), CacheControl: ephemeralCacheControl}},
		Messages: []Message{
			{Role: "user", Content: []ContentBlock{{Type: "text", Text: bigText(5000)}}},
			{Role: "user", Content: []ContentBlock{{Type: "text", Text: bigText(6000)}}},
			{Role: "user", Content: []ContentBlock{{Type: "text", Text: bigText(7000)}}},
			{Role: "user", Content: []ContentBlock{{Type: "text", Text: bigText(8000)}}},
		},
	}
	PlaceCacheBreakpoints(req)

	// One existing marker leaves budget for three; the smallest block loses.
	require.Equal(t, 4, countExistingBreakpoints(req))
	assert.Nil(t, req.Messages[0].Content[0].CacheControl)
	assert.NotNil(t, req.Messages[1].Content[0].CacheControl)
	assert.NotNil(t, req.Messages[2].Content[0].CacheControl)
	assert.NotNil(t, req.Messages[3].Content[0].CacheControl)
}

func TestPlaceCacheBreakpointsIgnoresNonText(t *testing.T) {
	req := &Request{
		Messages: []Message{
			{Role: "user", Content: []ContentBlock{{
				Type:   "image",
				Source: &ImageSource{Type: "url", URL: "https://example.com/a.png"},
			}}},
		},
	}
	PlaceCacheBreakpoints(req)
	assert.Zero(t, countExistingBreakpoints(req))
}
