package anthropic

import (
	"encoding/json"
	"io"
	"net/http"

	relaymodel "github.com/makehub/llm-gateway/relay/model"
)

// ErrorHandler normalizes a non-200 Anthropic response. The upstream error
// envelope is {"type":"error","error":{"type","message"}}.
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
	var wrapped Response
	if err = json.Unmarshal(body, &wrapped); err == nil && wrapped.Error != nil {
		result.Error.Message = wrapped.Error.Message
		result.Error.Type = wrapped.Error.Type
		// Anthropic reports semantic request problems as invalid_request_error
		// regardless of our status mapping.
		if wrapped.Error.Type == "invalid_request_error" && resp.StatusCode == http.StatusBadRequest {
			result.Kind = relaymodel.ErrKindValidation
		}
	}
	return result
}
