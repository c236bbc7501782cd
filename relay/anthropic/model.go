// Package anthropic adapts between the canonical chat-completions shape and
// the Anthropic Messages API. This is the only provider the gateway has to
// translate for; everything else speaks OpenAI-compatible wire format.
package anthropic

// Message is one turn in Messages API form. System prompts do not appear
// here; they ride the top-level System field.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is the Messages API request body.
type Request struct {
	Model         string    `json:"model"`
	System        string    `json:"system,omitempty"`
	Messages      []Message `json:"messages"`
	MaxTokens     int       `json:"max_tokens"`
	Temperature   *float64  `json:"temperature,omitempty"`
	TopP          *float64  `json:"top_p,omitempty"`
	StopSequences []string  `json:"stop_sequences,omitempty"`
}

// ContentBlock is one segment of a Messages API response.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// ResponseUsage reports token consumption in Anthropic's field names.
type ResponseUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Response is the Messages API response body.
type Response struct {
	Id         string         `json:"id"`
	Type       string         `json:"type"`
	Role       string         `json:"role"`
	Model      string         `json:"model"`
	Content    []ContentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
	Usage      ResponseUsage  `json:"usage"`
}

// Error is the Messages API error envelope.
type Error struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}
