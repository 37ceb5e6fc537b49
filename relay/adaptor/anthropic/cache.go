package anthropic

import (
	"encoding/json"
	"sort"
)

// Prompt cache breakpoint placement. Anthropic caches the prefix up to each
// cache_control marker, so the marker goes on the LAST element of the span it
// protects: the last tool for the tool list, the last system block for the
// system prompt, the specific text block otherwise.

const (
	maxCacheBreakpoints = 4
	// minCacheBlockChars approximates the 1024-token minimum cacheable span.
	minCacheBlockChars = 4096
)

var ephemeralCacheControl = json.RawMessage(`{"type":"ephemeral"}`)

const (
	cachePriorityTools = iota
	cachePrioritySystem
	cachePriorityUser
	cachePriorityAssistant
)

type cacheCandidate struct {
	priority int
	size     int
	apply    func()
}

// PlaceCacheBreakpoints annotates up to 4 blocks with cache_control, in
// priority order tools > system > user > assistant, larger spans first within
// a priority. Caller-supplied annotations are preserved and consume budget.
func PlaceCacheBreakpoints(req *Request) {
	budget := maxCacheBreakpoints - countExistingBreakpoints(req)
	if budget <= 0 {
		return
	}

	var candidates []cacheCandidate

	if n := len(req.Tools); n > 0 && req.Tools[n-1].CacheControl == nil {
		size := 0
		for i := range req.Tools {
			raw, err := json.Marshal(&req.Tools[i])
			if err == nil {
				size += len(raw)
			}
		}
		candidates = append(candidates, cacheCandidate{
			priority: cachePriorityTools,
			size:     size,
			apply:    func() { req.Tools[n-1].CacheControl = ephemeralCacheControl },
		})
	}

	if n := len(req.System); n > 0 && req.System[n-1].CacheControl == nil {
		size := 0
		for i := range req.System {
			size += len(req.System[i].Text)
		}
		candidates = append(candidates, cacheCandidate{
			priority: cachePrioritySystem,
			size:     size,
			apply:    func() { req.System[n-1].CacheControl = ephemeralCacheControl },
		})
	}

	for mi := range req.Messages {
		priority := cachePriorityUser
		if req.Messages[mi].Role == "assistant" {
			priority = cachePriorityAssistant
		}
		for bi := range req.Messages[mi].Content {
			block := &req.Messages[mi].Content[bi]
			if block.Type != "text" || block.CacheControl != nil || len(block.Text) < minCacheBlockChars {
				continue
			}
			candidates = append(candidates, cacheCandidate{
				priority: priority,
				size:     len(block.Text),
				apply:    func() { block.CacheControl = ephemeralCacheControl },
			})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].priority != candidates[j].priority {
			return candidates[i].priority < candidates[j].priority
		}
		return candidates[i].size > candidates[j].size
	})

	if budget > len(candidates) {
		budget = len(candidates)
	}
	for i := 0; i < budget; i++ {
		candidates[i].apply()
	}
}

func countExistingBreakpoints(req *Request) int {
	count := 0
	for i := range req.Tools {
		if req.Tools[i].CacheControl != nil {
			count++
		}
	}
	for i := range req.System {
		if req.System[i].CacheControl != nil {
			count++
		}
	}
	for mi := range req.Messages {
		for bi := range req.Messages[mi].Content {
			if req.Messages[mi].Content[bi].CacheControl != nil {
				count++
			}
		}
	}
	return count
}
