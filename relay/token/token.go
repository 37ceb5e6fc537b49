// Package token estimates prompt token counts for the context window filter
// and the estimate endpoint. Exact provider accounting always comes from the
// upstream usage block; these numbers only need to be close.
package token

import (
	"encoding/json"
	"sync"

	"github.com/Laisky/zap"
	"github.com/pkoukk/tiktoken-go"

	"github.com/makehub/llm-gateway/common/config"
	"github.com/makehub/llm-gateway/common/logger"
	relaymodel "github.com/makehub/llm-gateway/relay/model"
)

// Non-text content is charged a flat estimate; high-detail image accounting
// varies per provider and is not worth reproducing for a filter.
const imageTokenEstimate = 1000

var (
	encoderMu      sync.RWMutex
	encoders       = map[string]*tiktoken.Tiktoken{}
	defaultEncoder *tiktoken.Tiktoken
	defaultOnce    sync.Once
)

func getEncoder(modelId string) *tiktoken.Tiktoken {
	encoderMu.RLock()
	enc, ok := encoders[modelId]
	encoderMu.RUnlock()
	if ok {
		return enc
	}

	enc, err := tiktoken.EncodingForModel(modelId)
	if err != nil {
		defaultOnce.Do(func() {
			defaultEncoder, err = tiktoken.GetEncoding(tiktoken.MODEL_CL100K_BASE)
			if err != nil {
				logger.Logger.Warn("failed to load default token encoding", zap.Error(err))
			}
		})
		enc = defaultEncoder
	}

	encoderMu.Lock()
	encoders[modelId] = enc
	encoderMu.Unlock()
	return enc
}

func countText(enc *tiktoken.Tiktoken, text string) int {
	if enc == nil {
		if config.ApproximateTokenEnabled {
			return len(text) / 4
		}
		return len(text)
	}
	return len(enc.Encode(text, nil, nil))
}

// CountMessages estimates the prompt tokens of a message list for modelId,
// including the per-message framing overhead OpenAI documents.
func CountMessages(modelId string, messages []relaymodel.Message) int {
	enc := getEncoder(modelId)

	const tokensPerMessage = 4
	total := 3 // reply priming
	for i := range messages {
		total += tokensPerMessage
		total += countText(enc, messages[i].Role)
		if messages[i].Name != "" {
			total += countText(enc, messages[i].Name) + 1
		}
		for _, part := range messages[i].ParseContent() {
			switch part.Type {
			case relaymodel.ContentTypeText:
				total += countText(enc, part.Text)
			case relaymodel.ContentTypeImageURL:
				total += imageTokenEstimate
			}
		}
		for _, call := range messages[i].ToolCalls {
			if call.Function != nil {
				total += countText(enc, call.Function.Name)
				total += countText(enc, call.Function.ArgumentsString())
			}
		}
	}
	return total
}

// CountRequest estimates prompt tokens for a whole request, tool schemas
// included.
func CountRequest(modelId string, req *relaymodel.StandardRequest) int {
	total := CountMessages(modelId, req.Messages)
	if len(req.Tools) > 0 {
		enc := getEncoder(modelId)
		for i := range req.Tools {
			if fn := req.Tools[i].Function; fn != nil {
				total += countText(enc, fn.Name)
				total += countText(enc, fn.Description)
				total += countText(enc, stringify(fn.Parameters))
			}
		}
	}
	return total
}

func stringify(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(raw)
}
