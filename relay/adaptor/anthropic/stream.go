package anthropic

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
	"time"

	gmw "github.com/Laisky/gin-middlewares/v6"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/makehub/llm-gateway/common"
	"github.com/makehub/llm-gateway/common/random"
	"github.com/makehub/llm-gateway/relay/meta"
	relaymodel "github.com/makehub/llm-gateway/relay/model"
	"github.com/makehub/llm-gateway/relay/streaming"
)

// StreamState translates Anthropic stream events into OpenAI chunks. One
// instance serves one stream; the bedrock adapter feeds it SDK events while
// the HTTP adapters feed it parsed SSE frames.
type StreamState struct {
	id      string
	model   string
	created int64

	inputTokens         int
	cacheReadTokens     int
	cacheCreationTokens int

	// blockToolIndex maps an upstream content block index to the OpenAI
	// tool_calls slot it occupies.
	blockToolIndex map[int]int
	nextToolIndex  int

	usage    *relaymodel.Usage
	finished bool
}

func NewStreamState(requestModel string) *StreamState {
	return &StreamState{
		id:             "chatcmpl-" + random.GetRandomString(24),
		model:          requestModel,
		created:        time.Now().Unix(),
		blockToolIndex: map[int]int{},
	}
}

func (s *StreamState) chunk(choice relaymodel.ChunkChoice, usage *relaymodel.Usage) *relaymodel.StreamChunk {
	return &relaymodel.StreamChunk{
		Id:      s.id,
		Object:  "chat.completion.chunk",
		Created: s.created,
		Model:   s.model,
		Choices: []relaymodel.ChunkChoice{choice},
		Usage:   usage,
	}
}

// HandleEvent advances the state machine and returns the chunks to emit, in
// order. Unknown event types (ping) produce nothing.
func (s *StreamState) HandleEvent(event *StreamEvent) []*relaymodel.StreamChunk {
	switch event.Type {
	case "message_start":
		if event.Message != nil {
			s.inputTokens = event.Message.Usage.InputTokens
			s.cacheReadTokens = event.Message.Usage.CacheReadInputTokens
			s.cacheCreationTokens = event.Message.Usage.CacheCreationInputTokens
			if event.Message.Id != "" {
				s.id = "chatcmpl-" + event.Message.Id
			}
		}
		return []*relaymodel.StreamChunk{
			s.chunk(relaymodel.ChunkChoice{Delta: relaymodel.Delta{Role: "assistant"}}, nil),
		}

	case "content_block_start":
		if event.ContentBlock == nil || event.ContentBlock.Type != "tool_use" {
			return nil
		}
		slot := s.nextToolIndex
		s.nextToolIndex++
		s.blockToolIndex[event.Index] = slot
		index := slot
		return []*relaymodel.StreamChunk{
			s.chunk(relaymodel.ChunkChoice{Delta: relaymodel.Delta{
				ToolCalls: []relaymodel.Tool{{
					Id:    event.ContentBlock.Id,
					Type:  "function",
					Index: &index,
					Function: &relaymodel.Function{
						Name:      event.ContentBlock.Name,
						Arguments: "",
					},
				}},
			}}, nil),
		}

	case "content_block_delta":
		if event.Delta == nil {
			return nil
		}
		switch event.Delta.Type {
		case "text_delta":
			return []*relaymodel.StreamChunk{
				s.chunk(relaymodel.ChunkChoice{Delta: relaymodel.Delta{Content: event.Delta.Text}}, nil),
			}
		case "input_json_delta":
			slot, ok := s.blockToolIndex[event.Index]
			if !ok {
				return nil
			}
			index := slot
			return []*relaymodel.StreamChunk{
				s.chunk(relaymodel.ChunkChoice{Delta: relaymodel.Delta{
					ToolCalls: []relaymodel.Tool{{
						Index: &index,
						Function: &relaymodel.Function{
							Arguments: event.Delta.PartialJson,
						},
					}},
				}}, nil),
			}
		}
		return nil

	case "message_delta":
		var finish *string
		if event.Delta != nil && event.Delta.StopReason != nil {
			mapped := convertStopReason(*event.Delta.StopReason)
			finish = &mapped
			s.finished = true
		}
		var usage *relaymodel.Usage
		if event.Usage != nil && event.Usage.OutputTokens > 0 {
			// Reconstruct the full usage from the input tokens stored at
			// message_start.
			usage = &relaymodel.Usage{
				PromptTokens:     s.inputTokens + s.cacheReadTokens + s.cacheCreationTokens,
				CompletionTokens: event.Usage.OutputTokens,
				CachedTokens:     s.cacheReadTokens,
			}
			usage.Normalize()
			s.usage = usage
		}
		if finish == nil && usage == nil {
			return nil
		}
		return []*relaymodel.StreamChunk{
			s.chunk(relaymodel.ChunkChoice{Delta: relaymodel.Delta{}, FinishReason: finish}, usage),
		}

	case "message_stop":
		if s.finished {
			return nil
		}
		s.finished = true
		finish := relaymodel.FinishReasonStop
		return []*relaymodel.StreamChunk{
			s.chunk(relaymodel.ChunkChoice{Delta: relaymodel.Delta{}, FinishReason: &finish}, nil),
		}
	}
	return nil
}

// Usage returns the reconstructed usage, nil when the upstream never reported
// output tokens.
func (s *StreamState) Usage() *relaymodel.Usage {
	return s.usage
}

// StreamHandler consumes an Anthropic SSE body, writes translated chunks to
// the client and returns the final usage.
func StreamHandler(c *gin.Context, body io.Reader, m *meta.Meta) (*relaymodel.Usage, *relaymodel.ErrorWithStatusCode) {
	lg := gmw.GetLogger(c)
	tracker := streaming.FromContext(c)
	state := NewStreamState(m.RequestModel)

	common.SetEventStreamHeaders(c)

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 1024*1024), 10*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var event StreamEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event); err != nil {
			lg.Warn("skip malformed stream event", zap.Error(err))
			continue
		}
		if event.Type == "error" && event.Error != nil {
			lg.Warn("upstream stream error event",
				zap.String("type", event.Error.Type),
				zap.String("message", event.Error.Message))
			break
		}
		WriteChunks(c, tracker, state.HandleEvent(&event))
		if event.Type == "message_stop" {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		lg.Warn("upstream stream read failed", zap.Error(err))
	}

	common.Done(c)
	c.Writer.Flush()

	if usage := state.Usage(); usage != nil {
		if tracker != nil {
			tracker.SetUsage(usage)
		}
		return usage, nil
	}
	if tracker != nil {
		return tracker.Usage(), nil
	}
	return nil, nil
}

// WriteChunks renders translated chunks as SSE frames and feeds the tracker.
func WriteChunks(c *gin.Context, tracker *streaming.Tracker, chunks []*relaymodel.StreamChunk) {
	for _, chunk := range chunks {
		if tracker != nil {
			tracker.OnChunk()
			for i := range chunk.Choices {
				tracker.AddContent(chunk.Choices[i].Delta.Content)
			}
			if chunk.Usage != nil {
				tracker.SetUsage(chunk.Usage)
			}
		}
		raw, err := json.Marshal(chunk)
		if err != nil {
			continue
		}
		c.Render(-1, common.CustomEvent{Data: "data: " + string(raw)})
		c.Writer.Flush()
	}
}
