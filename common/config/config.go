package config

import (
	"strings"
	"time"

	"github.com/often-ai/gateway/common/env"
)

var (
	// ServerPort is the listening port; PORT wins over the --port flag so the
	// gateway behaves in container and PaaS environments.
	ServerPort = strings.TrimSpace(env.String("PORT", ""))
	// GinMode allows forcing Gin into release mode (or other modes) without recompiling.
	GinMode = strings.TrimSpace(env.String("GIN_MODE", ""))

	// DebugEnabled toggles verbose structured logging when DEBUG=true.
	DebugEnabled = env.Bool("DEBUG", false)
	// DebugSQLEnabled toggles per-query SQL logging when DEBUG_SQL=true.
	DebugSQLEnabled = env.Bool("DEBUG_SQL", false)

	// SQLDSN selects the database: postgres:// or mysql DSN; empty means SQLite.
	SQLDSN = strings.TrimSpace(env.String("SQL_DSN", ""))
	// SQLitePath is the SQLite database file used when SQL_DSN is unset.
	SQLitePath = env.String("SQLITE_PATH", "often-gateway.db")
	// SQLiteBusyTimeout is the SQLite busy handler timeout in milliseconds.
	SQLiteBusyTimeout = env.Int("SQLITE_BUSY_TIMEOUT", 3000)

	// RedisConnString enables the Redis-backed credential cache when set.
	RedisConnString = strings.TrimSpace(env.String("REDIS_CONN_STRING", ""))

	// AdminAPIKey gates the /deposit endpoint. Empty disables admin deposits entirely.
	AdminAPIKey = strings.TrimSpace(env.String("ADMIN_API_KEY", ""))
	// FirebaseWebAPIKey authenticates calls to the identity backend.
	FirebaseWebAPIKey = strings.TrimSpace(env.String("FIREBASE_WEB_API_KEY", ""))
	// GCPProject scopes Secret Manager lookups for upstream API keys.
	GCPProject = strings.TrimSpace(env.String("GCP_PROJECT", ""))

	// RelayTimeout bounds upstream LLM requests before aborting them.
	RelayTimeout = time.Second * time.Duration(env.Int("RELAY_TIMEOUT", 120))
	// SecretCacheTTL is how long fetched upstream API keys stay cached in-process.
	SecretCacheTTL = time.Second * time.Duration(env.Int("SECRET_CACHE_TTL", 300))
	// RateCacheTTL is how long oracle price snapshots stay fresh.
	RateCacheTTL = time.Second * time.Duration(env.Int("RATE_CACHE_TTL", 60))
	// RateOracleTimeout bounds a single oracle fetch; stale data is served past it.
	RateOracleTimeout = time.Second * time.Duration(env.Int("RATE_ORACLE_TIMEOUT", 5))
	// RateOracleURL points at a CoinGecko-compatible simple/price endpoint.
	RateOracleURL = strings.TrimSpace(env.String("RATE_ORACLE_URL", "https://api.coingecko.com/api/v3/simple/price"))
	// IdentityBaseURL points at the identitytoolkit-compatible identity backend.
	IdentityBaseURL = strings.TrimSpace(env.String("IDENTITY_BASE_URL", "https://identitytoolkit.googleapis.com/v1"))
	// IdentityTokenURL is the refresh-token exchange endpoint of the identity backend.
	IdentityTokenURL = strings.TrimSpace(env.String("IDENTITY_TOKEN_URL", "https://securetoken.googleapis.com/v1/token"))
	// IdentityTimeout bounds identity backend calls.
	IdentityTimeout = time.Second * time.Duration(env.Int("IDENTITY_TIMEOUT", 10))
	// IdentityCacheTTL is how long a verified bearer credential is trusted without re-introspection.
	IdentityCacheTTL = time.Second * time.Duration(env.Int("IDENTITY_CACHE_TTL", 60))

	// MinBalanceMicros is the advisory USD floor checked before any upstream call.
	MinBalanceMicros = env.Int64("MIN_BALANCE_MICROS", 1000)
	// LedgerMaxRetries bounds optimistic-concurrency retries of a store transaction.
	LedgerMaxRetries = env.Int("LEDGER_MAX_RETRIES", 3)
	// MaxTransactionPageSize caps /getTransactions pagination.
	MaxTransactionPageSize = env.Int("MAX_TRANSACTION_PAGE_SIZE", 100)
	// DefaultTransactionPageSize applies when the client sends no limit.
	DefaultTransactionPageSize = env.Int("DEFAULT_TRANSACTION_PAGE_SIZE", 50)

	// ShutdownTimeout bounds graceful drain; default leaves headroom over RelayTimeout.
	ShutdownTimeout = time.Second * time.Duration(env.Int("SHUTDOWN_TIMEOUT", 130))

	// EnablePrometheusMetrics exposes the /metrics endpoint for scrapers when true.
	EnablePrometheusMetrics = env.Bool("ENABLE_PROMETHEUS_METRICS", true)
)
