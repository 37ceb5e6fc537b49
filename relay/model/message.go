package model

import "encoding/json"

const (
	ContentTypeText     = "text"
	ContentTypeImageURL = "image_url"
)

// Message is one turn of a chat completion conversation. Content is either a
// plain string or a list of typed content parts.
type Message struct {
	Role       string `json:"role"`
	Content    any    `json:"content"`
	Name       string `json:"name,omitempty"`
	ToolCalls  []Tool `json:"tool_calls,omitempty"`
	ToolCallId string `json:"tool_call_id,omitempty"`
}

// MessageContentPart is one element of a structured content list.
type MessageContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
	// CacheControl passes through caller-supplied prompt cache annotations.
	CacheControl json.RawMessage `json:"cache_control,omitempty"`
}

type ImageURL struct {
	Url    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

// IsStringContent reports whether the content is the plain string form.
func (m Message) IsStringContent() bool {
	_, ok := m.Content.(string)
	return ok
}

// StringContent flattens the message content into plain text. Structured
// lists contribute their text parts concatenated in order.
func (m Message) StringContent() string {
	if s, ok := m.Content.(string); ok {
		return s
	}
	var sb []byte
	for _, part := range m.ParseContent() {
		if part.Type == ContentTypeText {
			sb = append(sb, part.Text...)
		}
	}
	return string(sb)
}

// ParseContent normalizes the content field into a list of typed parts.
// String content becomes a single text part.
func (m Message) ParseContent() []MessageContentPart {
	switch content := m.Content.(type) {
	case string:
		if content == "" {
			return nil
		}
		return []MessageContentPart{{Type: ContentTypeText, Text: content}}
	case []MessageContentPart:
		return content
	case []any:
		parts := make([]MessageContentPart, 0, len(content))
		for _, item := range content {
			raw, err := json.Marshal(item)
			if err != nil {
				continue
			}
			var part MessageContentPart
			if err := json.Unmarshal(raw, &part); err != nil {
				continue
			}
			parts = append(parts, part)
		}
		return parts
	default:
		return nil
	}
}
