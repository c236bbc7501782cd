// Package provider maps model identifiers to upstream providers and holds the
// per-provider dispatch configuration. The registry is populated at init and
// immutable once the server starts serving; Register exists so deployments
// can claim new model namespaces at startup without touching routing code.
package provider

import (
	"net/http"
	"strings"
	"sync"
)

// Tags for the supported upstream providers.
const (
	OpenAI    = "openai"
	Anthropic = "anthropic"
	Google    = "google"
	Mistral   = "mistral"
	Together  = "together"
)

// Config is the immutable dispatch record for one provider.
type Config struct {
	// BaseURL is the full chat-completions (or messages) endpoint.
	BaseURL string
	// SecretName is the logical name the secret store resolves to an API key.
	SecretName string
	// ApplyAuth sets the provider's auth headers on an outgoing request.
	ApplyAuth func(req *http.Request, key string)
	// NeedsTranslation marks providers whose wire format diverges from the
	// canonical chat-completions shape.
	NeedsTranslation bool
}

var configs = map[string]Config{
	OpenAI: {
		BaseURL:    "https://api.openai.com/v1/chat/completions",
		SecretName: "openai-api-key",
		ApplyAuth: func(req *http.Request, key string) {
			req.Header.Set("Authorization", "Bearer "+key)
		},
	},
	Anthropic: {
		BaseURL:    "https://api.anthropic.com/v1/messages",
		SecretName: "anthropic-api-key",
		ApplyAuth: func(req *http.Request, key string) {
			req.Header.Set("x-api-key", key)
			req.Header.Set("anthropic-version", "2023-06-01")
		},
		NeedsTranslation: true,
	},
	Google: {
		BaseURL:    "https://generativelanguage.googleapis.com/v1beta/openai/chat/completions",
		SecretName: "google-api-key",
		ApplyAuth: func(req *http.Request, key string) {
			req.Header.Set("Authorization", "Bearer "+key)
		},
	},
	Mistral: {
		BaseURL:    "https://api.mistral.ai/v1/chat/completions",
		SecretName: "mistral-api-key",
		ApplyAuth: func(req *http.Request, key string) {
			req.Header.Set("Authorization", "Bearer "+key)
		},
	},
	Together: {
		BaseURL:    "https://api.together.xyz/v1/chat/completions",
		SecretName: "together-api-key",
		ApplyAuth: func(req *http.Request, key string) {
			req.Header.Set("Authorization", "Bearer "+key)
		},
	},
}

// prefixRoute is one prefix-to-tag classification rule. Rules are evaluated
// in order; Together is the explicit fallback because it is the only provider
// serving arbitrary open-source model slugs.
type prefixRoute struct {
	prefix string
	tag    string
}

var (
	routeMu sync.RWMutex
	routes  = []prefixRoute{
		{"gpt-", OpenAI},
		{"o1", OpenAI},
		{"o3", OpenAI},
		{"o4", OpenAI},
		{"claude-", Anthropic},
		{"gemini-", Google},
		{"mistral-", Mistral},
	}
)

// Register adds a prefix classification rule ahead of the fallback. Intended
// for startup wiring only.
func Register(prefix string, tag string) {
	routeMu.Lock()
	defer routeMu.Unlock()
	routes = append(routes, prefixRoute{prefix: prefix, tag: tag})
}

// Route classifies a model identifier into a provider tag.
func Route(model string) string {
	routeMu.RLock()
	defer routeMu.RUnlock()
	for _, route := range routes {
		if strings.HasPrefix(model, route.prefix) {
			return route.tag
		}
	}
	return Together
}

// GetConfig returns the dispatch record for a provider tag.
func GetConfig(tag string) (Config, bool) {
	config, ok := configs[tag]
	return config, ok
}
