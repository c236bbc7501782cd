package anthropic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	relaymodel "github.com/often-ai/gateway/relay/model"
)

func TestConvertRequestSystemAndCoalescing(t *testing.T) {
	request := &relaymodel.GeneralChatRequest{
		Model: "claude-sonnet-4-20250514",
		Messages: []relaymodel.Message{
			{Role: "system", Content: "You are helpful."},
			{Role: "user", Content: "Part 1"},
			{Role: "user", Content: "Part 2"},
		},
	}

	converted := ConvertRequest(request)
	assert.Equal(t, "You are helpful.", converted.System)
	require.Len(t, converted.Messages, 1)
	assert.Equal(t, "user", converted.Messages[0].Role)
	assert.Equal(t, "Part 1\nPart 2", converted.Messages[0].Content)
	assert.Equal(t, 8192, converted.MaxTokens)
}

func TestConvertRequestMultipleSystemMessages(t *testing.T) {
	request := &relaymodel.GeneralChatRequest{
		Model: "claude-3-5-haiku-20241022",
		Messages: []relaymodel.Message{
			{Role: "system", Content: "Rule one."},
			{Role: "user", Content: "Hi"},
			{Role: "system", Content: "Rule two."},
			{Role: "assistant", Content: "Hello"},
			{Role: "user", Content: "Bye"},
		},
	}

	converted := ConvertRequest(request)
	assert.Equal(t, "Rule one.\nRule two.", converted.System)
	require.Len(t, converted.Messages, 3)
	assert.Equal(t, []Message{
		{Role: "user", Content: "Hi"},
		{Role: "assistant", Content: "Hello"},
		{Role: "user", Content: "Bye"},
	}, converted.Messages)
}

func TestConvertRequestMaxTokens(t *testing.T) {
	explicit := ConvertRequest(&relaymodel.GeneralChatRequest{Model: "claude-sonnet-4-20250514", MaxTokens: 100})
	assert.Equal(t, 100, explicit.MaxTokens)

	claudeDefault := ConvertRequest(&relaymodel.GeneralChatRequest{Model: "claude-sonnet-4-20250514"})
	assert.Equal(t, 8192, claudeDefault.MaxTokens)

	otherDefault := ConvertRequest(&relaymodel.GeneralChatRequest{Model: "unknown-model"})
	assert.Equal(t, 4096, otherDefault.MaxTokens)
}

func TestConvertRequestStopSequences(t *testing.T) {
	fromString := ConvertRequest(&relaymodel.GeneralChatRequest{Model: "claude-x", Stop: "END"})
	assert.Equal(t, []string{"END"}, fromString.StopSequences)

	// JSON decoding surfaces arrays as []any.
	fromArray := ConvertRequest(&relaymodel.GeneralChatRequest{Model: "claude-x", Stop: []any{"A", "B"}})
	assert.Equal(t, []string{"A", "B"}, fromArray.StopSequences)

	absent := ConvertRequest(&relaymodel.GeneralChatRequest{Model: "claude-x"})
	assert.Nil(t, absent.StopSequences)
}

func TestConvertRequestPassthroughSampling(t *testing.T) {
	temperature := 0.7
	topP := 0.9
	converted := ConvertRequest(&relaymodel.GeneralChatRequest{
		Model:       "claude-x",
		Temperature: &temperature,
		TopP:        &topP,
	})
	require.NotNil(t, converted.Temperature)
	assert.Equal(t, 0.7, *converted.Temperature)
	require.NotNil(t, converted.TopP)
	assert.Equal(t, 0.9, *converted.TopP)
}

func TestConvertResponse(t *testing.T) {
	response := &Response{
		Id:    "msg_01",
		Model: "claude-sonnet-4-20250514",
		Content: []ContentBlock{
			{Type: "text", Text: "Hello"},
			{Type: "tool_use"},
			{Type: "text", Text: " world"},
		},
		StopReason: "end_turn",
		Usage:      ResponseUsage{InputTokens: 12, OutputTokens: 7},
	}

	converted := ConvertResponse(response)
	assert.Equal(t, "chat.completion", converted.Object)
	assert.Equal(t, "claude-sonnet-4-20250514", converted.Model)
	assert.NotZero(t, converted.Created)
	require.Len(t, converted.Choices, 1)
	assert.Equal(t, "assistant", converted.Choices[0].Message.Role)
	assert.Equal(t, "Hello world", converted.Choices[0].Message.Content)
	assert.Equal(t, "stop", converted.Choices[0].FinishReason)
	assert.Equal(t, 12, converted.Usage.PromptTokens)
	assert.Equal(t, 7, converted.Usage.CompletionTokens)
	assert.Equal(t, 19, converted.Usage.TotalTokens)
}

func TestConvertStopReasonMapping(t *testing.T) {
	assert.Equal(t, "stop", convertStopReason("end_turn"))
	assert.Equal(t, "stop", convertStopReason("stop_sequence"))
	assert.Equal(t, "length", convertStopReason("max_tokens"))
	assert.Equal(t, "tool_calls", convertStopReason("tool_use"))
	assert.Equal(t, "brand_new_reason", convertStopReason("brand_new_reason"))
}
