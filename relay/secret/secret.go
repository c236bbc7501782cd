// Package secret resolves upstream provider API keys. Keys live in Google
// Secret Manager in production and fall back to environment variables for
// local development. Resolved keys are cached in-process; concurrent cold
// lookups for the same key collapse into one fetch.
package secret

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
	secretmanager "google.golang.org/api/secretmanager/v1"

	"github.com/often-ai/gateway/common/config"
	"github.com/often-ai/gateway/common/logger"
)

// ErrUnavailable means no key could be resolved for the provider. Callers
// should treat the provider as unconfigured rather than retry.
var ErrUnavailable = errors.New("provider API key unavailable")

var (
	cache = gocache.New(config.SecretCacheTTL, 10*time.Minute)
	group singleflight.Group

	serviceOnce sync.Once
	service     *secretmanager.Service
	serviceErr  error
)

func secretManagerService(ctx context.Context) (*secretmanager.Service, error) {
	serviceOnce.Do(func() {
		service, serviceErr = secretmanager.NewService(ctx)
	})
	return service, serviceErr
}

// envVarName maps a logical secret name to its environment fallback,
// e.g. "openai-api-key" becomes OPENAI_API_KEY.
func envVarName(secretName string) string {
	return strings.ToUpper(strings.ReplaceAll(secretName, "-", "_"))
}

func fetchFromSecretManager(ctx context.Context, secretName string) (string, error) {
	svc, err := secretManagerService(ctx)
	if err != nil {
		return "", errors.Wrap(err, "init secret manager client")
	}
	resource := fmt.Sprintf("projects/%s/secrets/%s/versions/latest", config.GCPProject, secretName)
	resp, err := svc.Projects.Secrets.Versions.Access(resource).Context(ctx).Do()
	if err != nil {
		return "", errors.Wrapf(err, "access secret version %s", resource)
	}
	data, err := base64.StdEncoding.DecodeString(resp.Payload.Data)
	if err != nil {
		return "", errors.Wrap(err, "decode secret payload")
	}
	key := strings.TrimSpace(string(data))
	if key == "" {
		return "", errors.Errorf("secret %s is empty", secretName)
	}
	return key, nil
}

func fetch(ctx context.Context, secretName string) (string, error) {
	if config.GCPProject != "" {
		key, err := fetchFromSecretManager(ctx, secretName)
		if err == nil {
			return key, nil
		}
		logger.Logger.Warn("secret manager lookup failed, trying environment",
			zap.String("secret", secretName), zap.Error(err))
	}
	if key := strings.TrimSpace(os.Getenv(envVarName(secretName))); key != "" {
		return key, nil
	}
	return "", errors.Wrapf(ErrUnavailable, "no key for %s", secretName)
}

// GetKey resolves the API key for a logical secret name. Results are cached
// for SecretCacheTTL; failures are not cached so a misconfigured provider
// recovers as soon as the key appears.
func GetKey(ctx context.Context, secretName string) (string, error) {
	if cached, ok := cache.Get(secretName); ok {
		return cached.(string), nil
	}
	value, err, _ := group.Do(secretName, func() (any, error) {
		key, err := fetch(ctx, secretName)
		if err != nil {
			return "", err
		}
		cache.SetDefault(secretName, key)
		return key, nil
	})
	if err != nil {
		return "", err
	}
	return value.(string), nil
}

// Invalidate drops a cached key, forcing the next GetKey to refetch. Used
// after an upstream 401 so key rotation does not take a full TTL to land.
func Invalidate(secretName string) {
	cache.Delete(secretName)
}
