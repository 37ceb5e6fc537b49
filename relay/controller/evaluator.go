package controller

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/gin-gonic/gin"

	"github.com/makehub/llm-gateway/model"
	"github.com/makehub/llm-gateway/relay/billing"
	"github.com/makehub/llm-gateway/relay/meta"
	relaymodel "github.com/makehub/llm-gateway/relay/model"
)

// Evaluator issues family-routing side-calls. It relays through the adapter
// pipeline against a synthetic context so the evaluator's response never
// touches the caller's connection, and debits the evaluator cost to the user
// under a derived request id.
type Evaluator struct{}

// evaluatorMaxTokens keeps the verdict cheap; the rubric wants one integer.
const evaluatorMaxTokens = 16

func (Evaluator) Complete(ctx context.Context, userId int, modelId, provider, prompt string) (string, error) {
	row, err := model.GetModelByProvider(modelId, provider)
	if err != nil {
		return "", errors.Wrap(err, "resolve evaluator model")
	}
	extraParams, err := row.GetExtraParams()
	if err != nil {
		return "", err
	}

	temperature := 0.0
	request := &relaymodel.StandardRequest{
		Model:       relaymodel.ModelRef{Alias: modelId},
		Messages:    []relaymodel.Message{{Role: "user", Content: prompt}},
		MaxTokens:   evaluatorMaxTokens,
		Temperature: &temperature,
	}

	sink := newEvalSink()
	c := &gin.Context{Writer: sink}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, "/v1/chat/completions", nil)
	if err != nil {
		return "", errors.Wrap(err, "build evaluator request")
	}
	c.Request = httpReq

	requestId := requestIdFromContext(ctx)
	m := &meta.Meta{
		RequestId:     requestId + "-eval",
		UserId:        userId,
		RequestModel:  modelId,
		ResolvedModel: modelId,
		RoutingSource: "evaluator",
		Model:         row,
		ExtraParams:   extraParams,
		AttemptNumber: 1,
		StartTime:     time.Now(),
	}
	meta.Set2Context(c, m)

	usage, bizErr := Attempt(c, m, request)
	if bizErr != nil {
		err := bizErr.RawError
		if err == nil {
			err = errors.New(bizErr.Message)
		}
		return "", errors.Wrap(err, "evaluator attempt")
	}

	var response relaymodel.StandardResponse
	if err = json.Unmarshal(sink.body.Bytes(), &response); err != nil {
		return "", errors.Wrap(err, "decode evaluator response")
	}
	if len(response.Choices) == 0 {
		return "", errors.New("evaluator returned no choices")
	}

	if usage != nil {
		billing.Debit(c, m, billing.Cost(row, usage))
	}
	return response.Choices[0].Message.StringContent(), nil
}

// evalSink is the gin.ResponseWriter behind evaluator side-calls: it captures
// the adapter's response body in memory, off the caller's connection.
type evalSink struct {
	header http.Header
	body   bytes.Buffer
	status int
}

var _ gin.ResponseWriter = (*evalSink)(nil)

func newEvalSink() *evalSink { return &evalSink{header: make(http.Header)} }

func (w *evalSink) Header() http.Header               { return w.header }
func (w *evalSink) Write(p []byte) (int, error)       { return w.body.Write(p) }
func (w *evalSink) WriteString(s string) (int, error) { return w.body.WriteString(s) }
func (w *evalSink) WriteHeader(code int)              { w.status = code }
func (w *evalSink) WriteHeaderNow()                   {}
func (w *evalSink) Status() int                       { return w.status }
func (w *evalSink) Size() int                         { return w.body.Len() }
func (w *evalSink) Written() bool                     { return w.status != 0 || w.body.Len() > 0 }
func (w *evalSink) Flush()                            {}
func (w *evalSink) Pusher() http.Pusher               { return nil }
func (w *evalSink) CloseNotify() <-chan bool          { return nil }

func (w *evalSink) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return nil, nil, errors.New("evaluator responses cannot be hijacked")
}

type requestIdKey struct{}

// WithRequestId threads the caller's request id into evaluator context.
func WithRequestId(ctx context.Context, requestId string) context.Context {
	return context.WithValue(ctx, requestIdKey{}, requestId)
}

func requestIdFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(requestIdKey{}).(string); ok {
		return v
	}
	return "unknown"
}
