package anthropic

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/gin-gonic/gin"

	"github.com/makehub/llm-gateway/common/config"
	"github.com/makehub/llm-gateway/common/random"
	"github.com/makehub/llm-gateway/relay/meta"
	relaymodel "github.com/makehub/llm-gateway/relay/model"
)

// ConvertRequest translates the canonical request into the Anthropic Messages
// shape. System messages move to the top-level system parameter, tool results
// fold into user messages, and prompt cache breakpoints are placed afterwards.
func ConvertRequest(m *meta.Meta, request *relaymodel.StandardRequest) (*Request, error) {
	converted := &Request{
		MaxTokens:     request.MaxTokens,
		StopSequences: request.StopSequences(),
		Stream:        request.Stream,
		Temperature:   request.Temperature,
		TopP:          request.TopP,
	}
	if converted.MaxTokens == 0 {
		converted.MaxTokens = config.DefaultMaxTokens
	}

	if err := convertTools(request, converted); err != nil {
		return nil, err
	}

	for i := range request.Messages {
		msg := &request.Messages[i]
		switch msg.Role {
		case "system":
			blocks, err := contentBlocks(msg)
			if err != nil {
				return nil, errors.Wrapf(err, "messages[%d]", i)
			}
			converted.System = append(converted.System, blocks...)
		case "tool":
			// A tool result belongs to the conversation as a user turn.
			// Consecutive results coalesce into one user message.
			block := ContentBlock{
				Type:      "tool_result",
				ToolUseId: msg.ToolCallId,
				Content:   msg.StringContent(),
			}
			appendToUserTurn(converted, block)
		case "user":
			blocks, err := contentBlocks(msg)
			if err != nil {
				return nil, errors.Wrapf(err, "messages[%d]", i)
			}
			for _, block := range blocks {
				appendToUserTurn(converted, block)
			}
		case "assistant":
			blocks, err := contentBlocks(msg)
			if err != nil {
				return nil, errors.Wrapf(err, "messages[%d]", i)
			}
			for _, call := range msg.ToolCalls {
				block, err := toolUseBlock(call)
				if err != nil {
					return nil, errors.Wrapf(err, "messages[%d]", i)
				}
				blocks = append(blocks, block)
			}
			converted.Messages = append(converted.Messages, Message{Role: "assistant", Content: blocks})
		default:
			return nil, errors.Errorf("unsupported role %q", msg.Role)
		}
	}

	PlaceCacheBreakpoints(converted)
	return converted, nil
}

// appendToUserTurn adds a block to the trailing user message, creating one
// when the conversation does not already end on a user turn.
func appendToUserTurn(req *Request, block ContentBlock) {
	if n := len(req.Messages); n > 0 && req.Messages[n-1].Role == "user" {
		req.Messages[n-1].Content = append(req.Messages[n-1].Content, block)
		return
	}
	req.Messages = append(req.Messages, Message{Role: "user", Content: []ContentBlock{block}})
}

func convertTools(request *relaymodel.StandardRequest, converted *Request) error {
	choice := toolChoice(request.ToolChoice)
	if choice != nil && choice.Type == "none" {
		// none drops the tools entirely.
		return nil
	}
	for i := range request.Tools {
		fn := request.Tools[i].Function
		if fn == nil {
			return errors.Errorf("tools[%d] has no function definition", i)
		}
		converted.Tools = append(converted.Tools, Tool{
			Name:        fn.Name,
			Description: fn.Description,
			InputSchema: fn.Parameters,
		})
	}
	if len(converted.Tools) > 0 {
		converted.ToolChoice = choice
	}
	return nil
}

// toolChoice maps the OpenAI tool_choice forms onto Anthropic's. auto is the
// upstream default and maps to nil.
func toolChoice(v any) *ToolChoice {
	switch choice := v.(type) {
	case string:
		switch choice {
		case "none":
			return &ToolChoice{Type: "none"}
		case "required", "any":
			return &ToolChoice{Type: "any"}
		}
	case map[string]any:
		if fn, ok := choice["function"].(map[string]any); ok {
			if name, ok := fn["name"].(string); ok {
				return &ToolChoice{Type: "tool", Name: name}
			}
		}
	}
	return nil
}

func toolUseBlock(call relaymodel.Tool) (ContentBlock, error) {
	block := ContentBlock{
		Type: "tool_use",
		Id:   call.Id,
		Name: "",
	}
	if call.Function != nil {
		block.Name = call.Function.Name
		args := call.Function.ArgumentsString()
		if args != "" {
			var input any
			if err := json.Unmarshal([]byte(args), &input); err != nil {
				return block, errors.Wrapf(err, "parse arguments of tool call %s", call.Id)
			}
			block.Input = input
		} else {
			block.Input = map[string]any{}
		}
	}
	return block, nil
}

// contentBlocks converts message content parts into Anthropic blocks,
// preserving caller cache_control annotations.
func contentBlocks(msg *relaymodel.Message) ([]ContentBlock, error) {
	var blocks []ContentBlock
	for _, part := range msg.ParseContent() {
		switch part.Type {
		case relaymodel.ContentTypeText:
			blocks = append(blocks, ContentBlock{
				Type:         "text",
				Text:         part.Text,
				CacheControl: part.CacheControl,
			})
		case relaymodel.ContentTypeImageURL:
			if part.ImageURL == nil {
				return nil, errors.New("image part has no image_url")
			}
			source, err := imageSource(part.ImageURL.Url)
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, ContentBlock{
				Type:         "image",
				Source:       source,
				CacheControl: part.CacheControl,
			})
		default:
			return nil, errors.Errorf("unsupported content part type %q", part.Type)
		}
	}
	return blocks, nil
}

// imageSource decodes a data URI into base64 source form. Plain URLs pass
// through as url sources.
func imageSource(url string) (*ImageSource, error) {
	if !strings.HasPrefix(url, "data:") {
		return &ImageSource{Type: "url", URL: url}, nil
	}
	mediaType := "image/jpeg"
	rest := strings.TrimPrefix(url, "data:")
	idx := strings.Index(rest, ",")
	if idx < 0 {
		return nil, errors.New("malformed data uri in image part")
	}
	header := rest[:idx]
	data := rest[idx+1:]
	if !strings.HasSuffix(header, ";base64") {
		return nil, errors.New("image data uri must be base64 encoded")
	}
	if mt := strings.TrimSuffix(header, ";base64"); mt != "" {
		mediaType = mt
	}
	return &ImageSource{Type: "base64", MediaType: mediaType, Data: data}, nil
}

// ConvertResponse translates a complete Anthropic response into the canonical
// shape.
func ConvertResponse(response *Response, requestModel string) *relaymodel.StandardResponse {
	message := relaymodel.Message{Role: "assistant"}
	var text strings.Builder
	for _, block := range response.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.Text)
		case "tool_use":
			args, _ := json.Marshal(block.Input)
			message.ToolCalls = append(message.ToolCalls, relaymodel.Tool{
				Id:   block.Id,
				Type: "function",
				Function: &relaymodel.Function{
					Name:      block.Name,
					Arguments: string(args),
				},
			})
		}
	}
	message.Content = text.String()

	usage := relaymodel.Usage{
		PromptTokens: response.Usage.InputTokens +
			response.Usage.CacheReadInputTokens +
			response.Usage.CacheCreationInputTokens,
		CompletionTokens: response.Usage.OutputTokens,
		CachedTokens:     response.Usage.CacheReadInputTokens,
	}
	usage.Normalize()

	return &relaymodel.StandardResponse{
		Id:      responseId(response.Id),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   requestModel,
		Choices: []relaymodel.Choice{{
			Index:        0,
			Message:      message,
			FinishReason: convertStopReason(response.StopReason),
		}},
		Usage: usage,
	}
}

func responseId(upstreamId string) string {
	if upstreamId != "" {
		return "chatcmpl-" + upstreamId
	}
	return fmt.Sprintf("chatcmpl-%s", random.GetRandomString(24))
}

func convertStopReason(reason string) string {
	switch reason {
	case "tool_use":
		return relaymodel.FinishReasonToolCalls
	case "max_tokens":
		return relaymodel.FinishReasonLength
	default:
		return relaymodel.FinishReasonStop
	}
}

// Handler translates a non-streaming upstream response body and writes the
// canonical response to the client.
func Handler(c *gin.Context, body io.Reader, m *meta.Meta) (*relaymodel.Usage, *relaymodel.ErrorWithStatusCode) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, internalError(err, m.Model.Provider, "read upstream response")
	}
	var response Response
	if err = json.Unmarshal(raw, &response); err != nil {
		return nil, internalError(err, m.Model.Provider, "unmarshal upstream response")
	}
	if response.Type == "error" && response.Error != nil {
		return nil, &relaymodel.ErrorWithStatusCode{
			StatusCode: http.StatusBadGateway,
			Kind:       relaymodel.ErrKindAPI,
			Provider:   m.Model.Provider,
			Error: relaymodel.Error{
				Message: response.Error.Message,
				Type:    response.Error.Type,
			},
		}
	}

	converted := ConvertResponse(&response, m.RequestModel)
	c.JSON(http.StatusOK, converted)
	return &converted.Usage, nil
}

func internalError(err error, provider, message string) *relaymodel.ErrorWithStatusCode {
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
