package anthropic

import (
	"strings"

	"github.com/often-ai/gateway/common/helper"
	"github.com/often-ai/gateway/common/random"
	relaymodel "github.com/often-ai/gateway/relay/model"
)

const (
	// defaultMaxTokens applies when neither the caller nor the model family
	// provides a limit; the Messages API requires max_tokens.
	defaultMaxTokens = 4096
	// claudeDefaultMaxTokens is the family default for claude-* models.
	claudeDefaultMaxTokens = 8192
)

// ConvertRequest translates a canonical chat request into Messages API form:
// system turns are hoisted into the top-level system field, adjacent
// same-role turns are coalesced (the Messages API rejects consecutive turns
// with one role), and stop is renamed to stop_sequences.
func ConvertRequest(request *relaymodel.GeneralChatRequest) *Request {
	var systemParts []string
	var turns []Message
	for _, message := range request.Messages {
		if message.Role == "system" {
			systemParts = append(systemParts, message.Content)
			continue
		}
		if n := len(turns); n > 0 && turns[n-1].Role == message.Role {
			turns[n-1].Content += "\n" + message.Content
			continue
		}
		turns = append(turns, Message{Role: message.Role, Content: message.Content})
	}

	maxTokens := request.MaxTokens
	if maxTokens <= 0 {
		if strings.HasPrefix(request.Model, "claude-") {
			maxTokens = claudeDefaultMaxTokens
		} else {
			maxTokens = defaultMaxTokens
		}
	}

	return &Request{
		Model:         request.Model,
		System:        strings.Join(systemParts, "\n"),
		Messages:      turns,
		MaxTokens:     maxTokens,
		Temperature:   request.Temperature,
		TopP:          request.TopP,
		StopSequences: convertStop(request.Stop),
	}
}

// convertStop normalizes the OpenAI stop field (string or array) into the
// always-array stop_sequences form.
func convertStop(stop any) []string {
	switch value := stop.(type) {
	case nil:
		return nil
	case string:
		if value == "" {
			return nil
		}
		return []string{value}
	case []string:
		return value
	case []any:
		var sequences []string
		for _, item := range value {
			if s, ok := item.(string); ok {
				sequences = append(sequences, s)
			}
		}
		return sequences
	default:
		return nil
	}
}

// stopReasonMapping translates Anthropic stop reasons into canonical finish
// reasons. Unknown values pass through verbatim so new upstream reasons stay
// observable to clients.
var stopReasonMapping = map[string]string{
	"end_turn":      "stop",
	"stop_sequence": "stop",
	"max_tokens":    "length",
	"tool_use":      "tool_calls",
}

func convertStopReason(reason string) string {
	if mapped, ok := stopReasonMapping[reason]; ok {
		return mapped
	}
	return reason
}

// ConvertResponse translates a Messages API response into the canonical
// completion object: text blocks are concatenated into a single assistant
// message and usage is synthesized from input/output token counts.
func ConvertResponse(response *Response) *relaymodel.ChatResponse {
	var textParts []string
	for _, block := range response.Content {
		if block.Type == "text" {
			textParts = append(textParts, block.Text)
		}
	}

	return &relaymodel.ChatResponse{
		Id:      "chatcmpl-" + random.GetUUID(),
		Object:  "chat.completion",
		Created: helper.GetTimestamp(),
		Model:   response.Model,
		Choices: []relaymodel.Choice{
			{
				Index: 0,
				Message: relaymodel.Message{
					Role:    "assistant",
					Content: strings.Join(textParts, ""),
				},
				FinishReason: convertStopReason(response.StopReason),
			},
		},
		Usage: relaymodel.Usage{
			PromptTokens:     response.Usage.InputTokens,
			CompletionTokens: response.Usage.OutputTokens,
			TotalTokens:      response.Usage.InputTokens + response.Usage.OutputTokens,
		},
	}
}
