package anthropic

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makehub/llm-gateway/common/config"
	"github.com/makehub/llm-gateway/relay/meta"
	relaymodel "github.com/makehub/llm-gateway/relay/model"
)

func TestConvertRequestSystemExtraction(t *testing.T) {
	req := &relaymodel.StandardRequest{
		MaxTokens: 100,
		Messages: []relaymodel.Message{
			{Role: "system", Content: "You are terse."},
			{Role: "user", Content: "hi"},
		},
	}
	converted, err := ConvertRequest(&meta.Meta{}, req)
	require.NoError(t, err)

	require.Len(t, converted.System, 1)
	assert.Equal(t, "You are terse.", converted.System[0].Text)
	require.Len(t, converted.Messages, 1)
	assert.Equal(t, "user", converted.Messages[0].Role)
	assert.Equal(t, "hi", converted.Messages[0].Content[0].Text)
}

func TestConvertRequestDefaultMaxTokens(t *testing.T) {
	req := &relaymodel.StandardRequest{
		Messages: []relaymodel.Message{{Role: "user", Content: "hi"}},
	}
	converted, err := ConvertRequest(&meta.Meta{}, req)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultMaxTokens, converted.MaxTokens)
}

func TestConvertRequestToolResultsCoalesce(t *testing.T) {
	req := &relaymodel.StandardRequest{
		MaxTokens: 100,
		Messages: []relaymodel.Message{
			{Role: "user", Content: "weather in Paris and Lyon"},
			{Role: "assistant", ToolCalls: []relaymodel.Tool{
				{Id: "call_1", Type: "function", Function: &relaymodel.Function{Name: "get_weather", Arguments: `{"city":"Paris"}`}},
				{Id: "call_2", Type: "function", Function: &relaymodel.Function{Name: "get_weather", Arguments: `{"city":"Lyon"}`}},
			}},
			{Role: "tool", ToolCallId: "call_1", Content: "18C"},
			{Role: "tool", ToolCallId: "call_2", Content: "21C"},
		},
	}
	converted, err := ConvertRequest(&meta.Meta{}, req)
	require.NoError(t, err)

	require.Len(t, converted.Messages, 3)
	assert.Equal(t, "assistant", converted.Messages[1].Role)
	require.Len(t, converted.Messages[1].Content, 2)
	assert.Equal(t, "tool_use", converted.Messages[1].Content[0].Type)
	assert.Equal(t, map[string]any{"city": "Paris"}, converted.Messages[1].Content[0].Input)

	// Both results land in a single trailing user turn.
	last := converted.Messages[2]
	assert.Equal(t, "user", last.Role)
	require.Len(t, last.Content, 2)
	assert.Equal(t, "tool_result", last.Content[0].Type)
	assert.Equal(t, "call_1", last.Content[0].ToolUseId)
	assert.Equal(t, "18C", last.Content[0].Content)
	assert.Equal(t, "call_2", last.Content[1].ToolUseId)
}

func TestConvertRequestImages(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte("fake-png"))
	req := &relaymodel.StandardRequest{
		MaxTokens: 100,
		Messages: []relaymodel.Message{{
			Role: "user",
			Content: []relaymodel.MessageContentPart{
				{Type: relaymodel.ContentTypeText, Text: "what is this"},
				{Type: relaymodel.ContentTypeImageURL, ImageURL: &relaymodel.ImageURL{Url: "data:image/png;base64," + encoded}},
				{Type: relaymodel.ContentTypeImageURL, ImageURL: &relaymodel.ImageURL{Url: "https://example.com/cat.jpg"}},
			},
		}},
	}
	converted, err := ConvertRequest(&meta.Meta{}, req)
	require.NoError(t, err)

	blocks := converted.Messages[0].Content
	require.Len(t, blocks, 3)

	require.NotNil(t, blocks[1].Source)
	assert.Equal(t, "base64", blocks[1].Source.Type)
	assert.Equal(t, "image/png", blocks[1].Source.MediaType)
	assert.Equal(t, encoded, blocks[1].Source.Data)

	require.NotNil(t, blocks[2].Source)
	assert.Equal(t, "url", blocks[2].Source.Type)
	assert.Equal(t, "https://example.com/cat.jpg", blocks[2].Source.URL)
}

func TestConvertRequestToolChoice(t *testing.T) {
	tools := []relaymodel.Tool{{
		Type:     "function",
		Function: &relaymodel.Function{Name: "get_weather", Parameters: map[string]any{"type": "object"}},
	}}
	base := func(choice any) *relaymodel.StandardRequest {
		return &relaymodel.StandardRequest{
			MaxTokens:  100,
			Messages:   []relaymodel.Message{{Role: "user", Content: "hi"}},
			Tools:      tools,
			ToolChoice: choice,
		}
	}

	converted, err := ConvertRequest(&meta.Meta{}, base("none"))
	require.NoError(t, err)
	assert.Empty(t, converted.Tools, "none drops tools entirely")
	assert.Nil(t, converted.ToolChoice)

	converted, err = ConvertRequest(&meta.Meta{}, base("required"))
	require.NoError(t, err)
	require.NotNil(t, converted.ToolChoice)
	assert.Equal(t, "any", converted.ToolChoice.Type)

	converted, err = ConvertRequest(&meta.Meta{}, base(map[string]any{
		"type":     "function",
		"function": map[string]any{"name": "get_weather"},
	}))
	require.NoError(t, err)
	require.NotNil(t, converted.ToolChoice)
	assert.Equal(t, "tool", converted.ToolChoice.Type)
	assert.Equal(t, "get_weather", converted.ToolChoice.Name)

	converted, err = ConvertRequest(&meta.Meta{}, base(nil))
	require.NoError(t, err)
	require.Len(t, converted.Tools, 1)
	assert.Nil(t, converted.ToolChoice, "auto is the upstream default")
}

func TestConvertRequestRejectsUnknownRole(t *testing.T) {
	req := &relaymodel.StandardRequest{
		MaxTokens: 100,
		Messages:  []relaymodel.Message{{Role: "narrator", Content: "hi"}},
	}
	_, err := ConvertRequest(&meta.Meta{}, req)
	assert.Error(t, err)
}

func TestConvertResponse(t *testing.T) {
	response := &Response{
		Id:   "msg_01",
		Type: "message",
		Role: "assistant",
		Content: []ContentBlock{
			{Type: "text", Text: "Checking the weather. "},
			{Type: "tool_use", Id: "toolu_01", Name: "get_weather", Input: map[string]any{"city": "Paris"}},
		},
		StopReason: "tool_use",
		Usage: Usage{
			InputTokens:              100,
			OutputTokens:             40,
			CacheReadInputTokens:     300,
			CacheCreationInputTokens: 50,
		},
	}
	converted := ConvertResponse(response, "claude-sonnet-4")

	assert.Equal(t, "chatcmpl-msg_01", converted.Id)
	assert.Equal(t, "claude-sonnet-4", converted.Model)
	require.Len(t, converted.Choices, 1)

	choice := converted.Choices[0]
	assert.Equal(t, relaymodel.FinishReasonToolCalls, choice.FinishReason)
	assert.Equal(t, "Checking the weather. ", choice.Message.StringContent())
	require.Len(t, choice.Message.ToolCalls, 1)
	assert.Equal(t, "toolu_01", choice.Message.ToolCalls[0].Id)
	assert.Equal(t, "get_weather", choice.Message.ToolCalls[0].Function.Name)
	assert.JSONEq(t, `{"city":"Paris"}`, choice.Message.ToolCalls[0].Function.ArgumentsString())

	// Prompt tokens include every input category; cached tokens are reads only.
	assert.Equal(t, 450, converted.Usage.PromptTokens)
	assert.Equal(t, 40, converted.Usage.CompletionTokens)
	assert.Equal(t, 490, converted.Usage.TotalTokens)
	assert.Equal(t, 300, converted.Usage.CachedTokens)
}

func TestConvertStopReason(t *testing.T) {
	assert.Equal(t, relaymodel.FinishReasonToolCalls, convertStopReason("tool_use"))
	assert.Equal(t, relaymodel.FinishReasonLength, convertStopReason("max_tokens"))
	assert.Equal(t, relaymodel.FinishReasonStop, convertStopReason("end_turn"))
	assert.Equal(t, relaymodel.FinishReasonStop, convertStopReason("stop_sequence"))
}
