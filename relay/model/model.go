// Package model defines the canonical chat-completion wire shapes. Every
// provider response is normalized to these before billing and before the
// reply leaves the gateway.
package model

// Message is a single chat turn. Content is plain text; multimodal parts are
// not accepted by this gateway.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
}

// GeneralChatRequest matches the OpenAI chat-completions request shape and is
// what clients POST regardless of the upstream provider.
type GeneralChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
	TopP        *float64  `json:"top_p,omitempty"`
	// Stop is a string or an array of strings per the OpenAI contract.
	Stop any `json:"stop,omitempty"`
	// Tools is carried only so the gateway can reject tool use on providers
	// that the translation layer does not support; it is never inspected.
	Tools []any `json:"tools,omitempty"`
}

// Usage is the token usage reported by the upstream provider. Billing trusts
// these numbers, never client-side estimates.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// ChatResponse is the canonical completion object returned to clients.
type ChatResponse struct {
	Id      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

type Error struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Param   string `json:"param,omitempty"`
	Code    any    `json:"code,omitempty"`
	// RawError preserves the original upstream or internal error for logs.
	// Omitted from JSON to avoid leaking provider internals.
	RawError error `json:"-"`
}

type ErrorWithStatusCode struct {
	Error
	StatusCode int `json:"status_code"`
}
