package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/Laisky/errors/v2"
	gocache "github.com/patrickmn/go-cache"
	"github.com/gin-gonic/gin"

	"github.com/often-ai/gateway/common"
	"github.com/often-ai/gateway/common/config"
	"github.com/often-ai/gateway/common/ctxkey"
	"github.com/often-ai/gateway/identity"
)

// verifiedCache holds recently introspected credentials when Redis is not
// configured. The TTL is short; revocation lag is bounded by it.
var verifiedCache = gocache.New(config.IdentityCacheTTL, 5*time.Minute)

type cachedIdentity struct {
	Uid   string `json:"uid"`
	Email string `json:"email"`
}

func tokenCacheKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "auth:token:" + hex.EncodeToString(sum[:])
}

func lookupCached(c *gin.Context, key string) (cachedIdentity, bool) {
	if common.IsRedisEnabled() {
		raw, err := common.RedisGet(c.Request.Context(), key)
		if err != nil {
			return cachedIdentity{}, false
		}
		var id cachedIdentity
		if json.Unmarshal([]byte(raw), &id) != nil || id.Uid == "" {
			return cachedIdentity{}, false
		}
		return id, true
	}
	if value, ok := verifiedCache.Get(key); ok {
		return value.(cachedIdentity), true
	}
	return cachedIdentity{}, false
}

func storeCached(c *gin.Context, key string, id cachedIdentity) {
	if common.IsRedisEnabled() {
		if raw, err := json.Marshal(id); err == nil {
			_ = common.RedisSet(c.Request.Context(), key, string(raw), config.IdentityCacheTTL)
		}
		return
	}
	verifiedCache.SetDefault(key, id)
}

// TokenAuth authenticates the bearer token on user-facing routes. Every
// failure mode is a 401; the middleware never distinguishes expired from
// malformed from unknown tokens.
func TokenAuth() func(c *gin.Context) {
	return func(c *gin.Context) {
		authHeader := c.Request.Header.Get("Authorization")
		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") || token == "" {
			AbortWithError(c, 401, errors.New("missing or malformed Authorization header"))
			return
		}

		key := tokenCacheKey(token)
		if id, ok := lookupCached(c, key); ok {
			c.Set(ctxkey.AccountId, id.Uid)
			c.Next()
			return
		}

		uid, email, err := identity.Default.Verify(c.Request.Context(), token)
		if err != nil {
			AbortWithError(c, 401, errors.New("invalid or expired credential"))
			return
		}
		storeCached(c, key, cachedIdentity{Uid: uid, Email: email})
		c.Set(ctxkey.AccountId, uid)
		c.Next()
	}
}

// AdminAuth gates admin-only routes on the X-Admin-Key header. Both sides
// are hashed before comparison so the check is constant time regardless of
// key length.
func AdminAuth() func(c *gin.Context) {
	return func(c *gin.Context) {
		if config.AdminAPIKey == "" {
			AbortWithError(c, 403, errors.New("admin interface is disabled"))
			return
		}
		presented := sha256.Sum256([]byte(c.Request.Header.Get("X-Admin-Key")))
		expected := sha256.Sum256([]byte(config.AdminAPIKey))
		if subtle.ConstantTimeCompare(presented[:], expected[:]) != 1 {
			AbortWithError(c, 403, errors.New("invalid admin key"))
			return
		}
		c.Next()
	}
}
