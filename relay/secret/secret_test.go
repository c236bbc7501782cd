package secret

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvVarName(t *testing.T) {
	assert.Equal(t, "OPENAI_API_KEY", envVarName("openai-api-key"))
	assert.Equal(t, "TOGETHER_API_KEY", envVarName("together-api-key"))
}

func TestGetKeyEnvFallback(t *testing.T) {
	t.Setenv("MISTRAL_API_KEY", "sk-env-mistral")

	key, err := GetKey(context.Background(), "mistral-api-key")
	require.NoError(t, err)
	assert.Equal(t, "sk-env-mistral", key)
}

func TestGetKeyCachesValue(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "sk-first")
	key, err := GetKey(context.Background(), "google-api-key")
	require.NoError(t, err)
	assert.Equal(t, "sk-first", key)

	// The cached value survives the environment changing under us.
	t.Setenv("GOOGLE_API_KEY", "sk-second")
	key, err = GetKey(context.Background(), "google-api-key")
	require.NoError(t, err)
	assert.Equal(t, "sk-first", key)

	Invalidate("google-api-key")
	key, err = GetKey(context.Background(), "google-api-key")
	require.NoError(t, err)
	assert.Equal(t, "sk-second", key)
}

func TestGetKeyUnavailable(t *testing.T) {
	_, err := GetKey(context.Background(), "no-such-provider-api-key")
	assert.ErrorIs(t, err, ErrUnavailable)
}
