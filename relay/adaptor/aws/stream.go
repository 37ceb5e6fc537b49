package aws

import (
	"encoding/json"
	"io"
	"net/http"
	"sync"

	gmw "github.com/Laisky/gin-middlewares/v6"
	glog "github.com/Laisky/go-utils/v5/log"
	"github.com/Laisky/zap"
	awslib "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/gin-gonic/gin"

	"github.com/makehub/llm-gateway/common"
	"github.com/makehub/llm-gateway/relay/adaptor/anthropic"
	"github.com/makehub/llm-gateway/relay/meta"
	relaymodel "github.com/makehub/llm-gateway/relay/model"
	"github.com/makehub/llm-gateway/relay/streaming"
)

// streamInvoke runs the streaming invocation and bridges SDK events into the
// shared anthropic chunk translation.
func (a *Adaptor) streamInvoke(c *gin.Context, m *meta.Meta, modelId string, body []byte) (*relaymodel.Usage, *relaymodel.ErrorWithStatusCode) {
	lg := gmw.GetLogger(c)

	out, err := a.client.InvokeModelWithResponseStream(c.Request.Context(), &bedrockruntime.InvokeModelWithResponseStreamInput{
		ModelId:     awslib.String(modelId),
		Body:        body,
		ContentType: awslib.String("application/json"),
		Accept:      awslib.String("application/json"),
	})
	if err != nil {
		return nil, classifyInvokeError(err, m.Model.Provider)
	}
	stream := out.GetStream()
	defer stream.Close()

	tracker := streaming.FromContext(c)
	state := anthropic.NewStreamState(m.RequestModel)
	usage := relayEventStream(c, lg, state, tracker, stream.Events())
	if err := stream.Err(); err != nil {
		lg.Warn("bedrock stream failed", zap.Error(err))
	}

	if usage != nil {
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

// relayEventStream pumps SDK events through the stream state into the client.
// A bounded channel separates the reader goroutine from the writer so
// backpressure propagates without buffering the stream. The writer can return
// early on client disconnect while the reader is mid-event; state is owned by
// the reader, so it is joined before the final usage is read.
func relayEventStream(c *gin.Context, lg glog.Logger, state *anthropic.StreamState, tracker *streaming.Tracker, events <-chan types.ResponseStream) *relaymodel.Usage {
	chunks := make(chan *relaymodel.StreamChunk, 16)
	done := c.Request.Context().Done()

	var reader sync.WaitGroup
	reader.Add(1)
	go func() {
		defer reader.Done()
		defer close(chunks)
		for event := range events {
			payload, ok := event.(*types.ResponseStreamMemberChunk)
			if !ok {
				continue
			}
			var parsed anthropic.StreamEvent
			if err := json.Unmarshal(payload.Value.Bytes, &parsed); err != nil {
				lg.Warn("skip malformed bedrock event", zap.Error(err))
				continue
			}
			for _, chunk := range state.HandleEvent(&parsed) {
				select {
				case chunks <- chunk:
				case <-done:
					return
				}
			}
		}
	}()

	common.SetEventStreamHeaders(c)
	c.Stream(func(w io.Writer) bool {
		chunk, ok := <-chunks
		if !ok {
			common.Done(c)
			return false
		}
		anthropic.WriteChunks(c, tracker, []*relaymodel.StreamChunk{chunk})
		return true
	})

	reader.Wait()
	return state.Usage()
}

func invocationError(err error, provider string) *relaymodel.ErrorWithStatusCode {
	return &relaymodel.ErrorWithStatusCode{
		StatusCode: http.StatusInternalServerError,
		Kind:       relaymodel.ErrKindAPI,
		Provider:   provider,
		Error: relaymodel.Error{
			Message:  "bedrock invocation failed",
			Type:     "gateway_error",
			RawError: err,
		},
	}
}
