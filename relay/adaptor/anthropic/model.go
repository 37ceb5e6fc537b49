package anthropic

import "encoding/json"

// Wire shapes of the Anthropic Messages API, shared by the native, bedrock and
// vertex adapters. Model is omitted for bedrock (the model lives in the ARN)
// and vertex (it lives in the URL); AnthropicVersion is set only by those two.

type Request struct {
	Model            string         `json:"model,omitempty"`
	AnthropicVersion string         `json:"anthropic_version,omitempty"`
	MaxTokens        int            `json:"max_tokens"`
	Messages         []Message      `json:"messages"`
	System           []ContentBlock `json:"system,omitempty"`
	StopSequences    []string       `json:"stop_sequences,omitempty"`
	Stream           bool           `json:"stream,omitempty"`
	Temperature      *float64       `json:"temperature,omitempty"`
	TopP             *float64       `json:"top_p,omitempty"`
	Tools            []Tool         `json:"tools,omitempty"`
	ToolChoice       *ToolChoice    `json:"tool_choice,omitempty"`
}

type Message struct {
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
}

// ContentBlock is a union over the text, image, tool_use and tool_result
// block types; Type selects which fields are meaningful.
type ContentBlock struct {
	Type string `json:"type"`

	// text
	Text string `json:"text,omitempty"`

	// image
	Source *ImageSource `json:"source,omitempty"`

	// tool_use
	Id    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Input any    `json:"input,omitempty"`

	// tool_result
	ToolUseId string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`

	// CacheControl marks the block as a prompt cache breakpoint.
	CacheControl json.RawMessage `json:"cache_control,omitempty"`
}

type ImageSource struct {
	Type string `json:"type"`
	// base64 form
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`
	// url form
	URL string `json:"url,omitempty"`
}

type Tool struct {
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	InputSchema  any             `json:"input_schema"`
	CacheControl json.RawMessage `json:"cache_control,omitempty"`
}

type ToolChoice struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
}

type Usage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens,omitempty"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens,omitempty"`
}

type Response struct {
	Id           string         `json:"id"`
	Type         string         `json:"type"`
	Role         string         `json:"role"`
	Model        string         `json:"model,omitempty"`
	Content      []ContentBlock `json:"content"`
	StopReason   string         `json:"stop_reason,omitempty"`
	StopSequence *string        `json:"stop_sequence,omitempty"`
	Usage        Usage          `json:"usage"`
	// Error is set when Type == "error".
	Error *APIError `json:"error,omitempty"`
}

type APIError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// StreamEvent is one SSE event of a streamed response. Type is one of
// message_start, content_block_start, content_block_delta, content_block_stop,
// message_delta, message_stop, ping, error.
type StreamEvent struct {
	Type         string        `json:"type"`
	Message      *Response     `json:"message,omitempty"`
	Index        int           `json:"index"`
	ContentBlock *ContentBlock `json:"content_block,omitempty"`
	Delta        *EventDelta   `json:"delta,omitempty"`
	Usage        *Usage        `json:"usage,omitempty"`
	Error        *APIError     `json:"error,omitempty"`
}

// EventDelta carries content_block_delta payloads (text_delta or
// input_json_delta) and the stop reason on message_delta events.
type EventDelta struct {
	Type        string  `json:"type,omitempty"`
	Text        string  `json:"text,omitempty"`
	PartialJson string  `json:"partial_json,omitempty"`
	StopReason  *string `json:"stop_reason,omitempty"`
}
