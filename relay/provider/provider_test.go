package provider

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoute(t *testing.T) {
	cases := map[string]string{
		"gpt-4o":                     OpenAI,
		"gpt-3.5-turbo":              OpenAI,
		"o1-mini":                    OpenAI,
		"o3":                         OpenAI,
		"o4-mini":                    OpenAI,
		"claude-sonnet-4-20250514":   Anthropic,
		"gemini-2.0-flash":           Google,
		"mistral-large-latest":       Mistral,
		"meta-llama/Meta-Llama-3.1-70B-Instruct-Turbo": Together,
		"deepseek-chat": Together,
		"":              Together,
	}
	for model, want := range cases {
		assert.Equal(t, want, Route(model), "model %q", model)
	}
}

func TestRegisterTakesPrecedenceOverFallback(t *testing.T) {
	Register("grok-", OpenAI)
	assert.Equal(t, OpenAI, Route("grok-3"))
}

func TestConfigsComplete(t *testing.T) {
	for _, tag := range []string{OpenAI, Anthropic, Google, Mistral, Together} {
		config, ok := GetConfig(tag)
		require.True(t, ok, tag)
		assert.NotEmpty(t, config.BaseURL, tag)
		assert.NotEmpty(t, config.SecretName, tag)
		assert.NotNil(t, config.ApplyAuth, tag)
	}
}

func TestAnthropicAuthHeaders(t *testing.T) {
	config, ok := GetConfig(Anthropic)
	require.True(t, ok)
	assert.True(t, config.NeedsTranslation)

	req, err := http.NewRequest(http.MethodPost, config.BaseURL, nil)
	require.NoError(t, err)
	config.ApplyAuth(req, "sk-test")
	assert.Equal(t, "sk-test", req.Header.Get("x-api-key"))
	assert.Equal(t, "2023-06-01", req.Header.Get("anthropic-version"))
	assert.Empty(t, req.Header.Get("Authorization"))
}

func TestOpenAIAuthHeader(t *testing.T) {
	config, ok := GetConfig(OpenAI)
	require.True(t, ok)
	assert.False(t, config.NeedsTranslation)

	req, err := http.NewRequest(http.MethodPost, config.BaseURL, nil)
	require.NoError(t, err)
	config.ApplyAuth(req, "sk-test")
	assert.Equal(t, "Bearer sk-test", req.Header.Get("Authorization"))
}
