package openai

import (
	"bufio"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	gmw "github.com/Laisky/gin-middlewares/v6"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/makehub/llm-gateway/common"
	"github.com/makehub/llm-gateway/relay/meta"
	relaymodel "github.com/makehub/llm-gateway/relay/model"
	"github.com/makehub/llm-gateway/relay/streaming"
)

const dataPrefix = "data: "
const done = "[DONE]"

// errorResponse is the error envelope OpenAI-compatible backends return.
type errorResponse struct {
	Error relaymodel.Error `json:"error"`
}

// ErrorHandler normalizes a non-200 upstream response into a classified
// error. The body is read fully so the connection can be reused.
func ErrorHandler(resp *http.Response, provider string) *relaymodel.ErrorWithStatusCode {
	defer resp.Body.Close()

	result := &relaymodel.ErrorWithStatusCode{
		StatusCode: resp.StatusCode,
		Kind:       relaymodel.ClassifyStatus(resp.StatusCode),
		Provider:   provider,
		Error: relaymodel.Error{
			Message: "upstream error",
			Type:    "upstream_error",
			Code:    resp.StatusCode,
		},
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return result
	}
	var wrapped errorResponse
	if err = json.Unmarshal(body, &wrapped); err == nil && wrapped.Error.Message != "" {
		result.Error = wrapped.Error
	} else if len(body) > 0 {
		msg := string(body)
		if len(msg) > 512 {
			msg = msg[:512]
		}
		result.Error.Message = msg
	}
	return result
}

// Handler translates a non-streaming upstream response. OpenAI backends are
// already in the canonical shape; only the model name and usage need fixing
// before the body is re-emitted.
func Handler(c *gin.Context, resp *http.Response, m *meta.Meta) (*relaymodel.Usage, *relaymodel.ErrorWithStatusCode) {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, wrapErr(err, m.Model.Provider, "read upstream response")
	}

	var response relaymodel.StandardResponse
	if err = json.Unmarshal(body, &response); err != nil {
		return nil, wrapErr(err, m.Model.Provider, "unmarshal upstream response")
	}
	response.Usage.Normalize()
	response.Model = m.RequestModel

	c.JSON(http.StatusOK, &response)
	return &response.Usage, nil
}

// StreamHandler proxies upstream SSE chunks to the client verbatim except for
// the model name, capturing timing and the final usage for billing.
func StreamHandler(c *gin.Context, resp *http.Response, m *meta.Meta) (*relaymodel.Usage, *relaymodel.ErrorWithStatusCode) {
	defer resp.Body.Close()
	lg := gmw.GetLogger(c)
	tracker := streaming.FromContext(c)

	common.SetEventStreamHeaders(c)

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 1024*1024), 10*1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, dataPrefix) {
			continue
		}
		payload := strings.TrimPrefix(line, dataPrefix)
		if payload == done {
			break
		}

		var chunk relaymodel.StreamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			lg.Warn("skip malformed stream chunk", zap.Error(err))
			continue
		}
		chunk.Model = m.RequestModel
		if tracker != nil {
			tracker.OnChunk()
			for i := range chunk.Choices {
				tracker.AddContent(chunk.Choices[i].Delta.Content)
			}
			if chunk.Usage != nil {
				tracker.SetUsage(chunk.Usage)
			}
		}

		out, err := json.Marshal(&chunk)
		if err != nil {
			continue
		}
		c.Render(-1, common.CustomEvent{Data: dataPrefix + string(out)})
		c.Writer.Flush()
	}
	if err := scanner.Err(); err != nil {
		lg.Warn("upstream stream read failed", zap.Error(err))
	}

	common.Done(c)
	c.Writer.Flush()

	if tracker != nil {
		return tracker.Usage(), nil
	}
	return nil, nil
}

func wrapErr(err error, provider, message string) *relaymodel.ErrorWithStatusCode {
	return &relaymodel.ErrorWithStatusCode{
		StatusCode: http.StatusInternalServerError,
		Kind:       relaymodel.ErrKindAPI,
		Provider:   provider,
		Error: relaymodel.Error{
			Message:  message,
			Type:     "gateway_error",
			RawError: err,
		},
	}
}
