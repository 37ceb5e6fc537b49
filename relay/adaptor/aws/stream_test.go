package aws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makehub/llm-gateway/common/logger"
	"github.com/makehub/llm-gateway/relay/adaptor/anthropic"
	"github.com/makehub/llm-gateway/relay/streaming"
)

type sseRecorder struct {
	*httptest.ResponseRecorder
	clientGone chan bool
}

func (r *sseRecorder) CloseNotify() <-chan bool { return r.clientGone }

func newSSEContext(t *testing.T) (*gin.Context, *sseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := &sseRecorder{ResponseRecorder: httptest.NewRecorder(), clientGone: make(chan bool)}
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/v1/chat/completions", nil)
	return c, rec
}

func chunkEvent(payload string) types.ResponseStream {
	return &types.ResponseStreamMemberChunk{Value: types.PayloadPart{Bytes: []byte(payload)}}
}

func TestRelayEventStreamDelivers(t *testing.T) {
	c, rec := newSSEContext(t)

	events := make(chan types.ResponseStream, 8)
	events <- chunkEvent(`{"type":"message_start","message":{"id":"msg_01","type":"message","role":"assistant","content":[],"usage":{"input_tokens":9}}}`)
	events <- chunkEvent(`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"hello"}}`)
	events <- chunkEvent(`{"type":"message_delta","delta":{"stop_reason":"end_turn"},"usage":{"output_tokens":3}}`)
	events <- chunkEvent(`{"type":"message_stop"}`)
	close(events)

	state := anthropic.NewStreamState("claude-sonnet-4")
	tracker := streaming.NewTracker(time.Now())
	usage := relayEventStream(c, logger.Logger, state, tracker, events)

	require.NotNil(t, usage)
	assert.Equal(t, 9, usage.PromptTokens)
	assert.Equal(t, 3, usage.CompletionTokens)
	assert.Equal(t, 12, usage.TotalTokens)

	body := rec.Body.String()
	assert.Contains(t, body, `"content":"hello"`)
	assert.Contains(t, body, "data: [DONE]")
}

func TestRelayEventStreamClientDisconnect(t *testing.T) {
	c, rec := newSSEContext(t)
	ctx, cancel := context.WithCancel(c.Request.Context())
	c.Request = c.Request.WithContext(ctx)

	// The client is gone before the writer starts; the reader keeps producing
	// events and must be joined before the final usage is read.
	cancel()
	close(rec.clientGone)

	events := make(chan types.ResponseStream, 32)
	events <- chunkEvent(`{"type":"message_start","message":{"id":"msg_02","type":"message","role":"assistant","content":[],"usage":{"input_tokens":9}}}`)
	for range 24 {
		events <- chunkEvent(`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"x"}}`)
	}
	close(events)

	state := anthropic.NewStreamState("claude-sonnet-4")
	usage := relayEventStream(c, logger.Logger, state, nil, events)
	assert.Nil(t, usage, "no terminal usage was observed")
}
