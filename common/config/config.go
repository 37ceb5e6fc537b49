package config

import (
	"strings"
	"time"

	"github.com/makehub/llm-gateway/common/env"
)

var (
	// Host binds the HTTP listener to a specific address; empty means all interfaces.
	Host = strings.TrimSpace(env.String("HOST", ""))
	// Port overrides the --port flag when running inside container or PaaS environments.
	Port = strings.TrimSpace(env.String("PORT", "3000"))
	// GinMode allows forcing Gin into release mode (or other modes) without recompiling.
	GinMode = strings.TrimSpace(env.String("GIN_MODE", ""))

	// DebugEnabled toggles verbose structured logging when DEBUG=true.
	DebugEnabled = env.Bool("DEBUG", false)
	// DebugSQLEnabled toggles per-query SQL logging when DEBUG_SQL=true.
	DebugSQLEnabled = env.Bool("DEBUG_SQL", false)

	// MinimalFund is the minimum wallet balance (USD) a caller needs before a
	// request is admitted.
	MinimalFund = env.Float64("MINIMAL_FUND", 0)

	// ModelCacheTTL controls how long a model registry snapshot stays fresh before
	// the background refresher reloads it. A failed reload keeps the prior snapshot.
	ModelCacheTTL = time.Second * time.Duration(env.Int("CACHE_TTL_SECONDS", 3600))
	// BalanceCacheTTL bounds staleness of cached user balances; debits invalidate eagerly.
	BalanceCacheTTL = time.Second * time.Duration(env.Int("BALANCE_CACHE_TTL_SECONDS", 60))
	// AuthCacheTTL bounds staleness of cached API-key lookups.
	AuthCacheTTL = time.Second * time.Duration(env.Int("AUTH_CACHE_TTL_SECONDS", 600))

	// RelayTimeout bounds a single upstream HTTP attempt (seconds).
	RelayTimeout = env.Int("RELAY_TIMEOUT", 30)
	// AzureRelayTimeout raises the attempt timeout for Azure deployments, which can
	// sit behind slow provisioned throughput.
	AzureRelayTimeout = env.Int("AZURE_RELAY_TIMEOUT", 500)
	// RequestTimeout bounds the whole attempt chain for one client request
	// (seconds), streaming included. Defaults to the longest per-attempt budget;
	// zero disables the outer bound.
	RequestTimeout = env.Int("REQUEST_TIMEOUT", AzureRelayTimeout)

	// PerformanceWindowSize is how many recent samples feed the per-provider
	// throughput and latency medians used by the selector.
	PerformanceWindowSize = env.Int("PERFORMANCE_WINDOW_SIZE", 10)
	// CacheHistoryWindow is how many recent requests are inspected per
	// (user, model, provider) when deciding the prompt-cache score boost.
	CacheHistoryWindow = env.Int("CACHE_HISTORY_WINDOW", 5)

	// DefaultSpeedVsPrice positions the selector's optimal point when the caller
	// does not state a preference (0 = cheapest, 100 = fastest).
	DefaultSpeedVsPrice = env.Int("DEFAULT_SPEED_VS_PRICE", 50)

	// DefaultMaxTokens is applied when a provider requires max_tokens and the
	// caller omitted it.
	DefaultMaxTokens = env.Int("DEFAULT_MAX_TOKENS", 4096)

	// FamilyConfigPath points at the YAML document describing model families.
	// Empty disables family routing.
	FamilyConfigPath = strings.TrimSpace(env.String("FAMILY_CONFIG_PATH", ""))
	// FamilyEvalTimeout is the evaluator side-call timeout used when a family does
	// not configure its own.
	FamilyEvalTimeout = time.Millisecond * time.Duration(env.Int("FAMILY_EVAL_TIMEOUT_MS", 2000))
	// FamilyCacheDuration is the routing-decision cache window used when a family
	// does not configure its own.
	FamilyCacheDuration = time.Minute * time.Duration(env.Int("FAMILY_CACHE_DURATION_MINUTES", 5))

	// NotifyWebhookURL receives fire-and-forget alerts for upstream 5xx and timeouts.
	NotifyWebhookURL = strings.TrimSpace(env.String("NOTIFY_WEBHOOK_URL", ""))

	// JWTSecret verifies bearer tokens that are not API keys. Empty rejects JWT auth.
	JWTSecret = env.String("JWT_SECRET", "")

	// EnablePrometheusMetrics exposes /metrics for Prometheus scrapers when true.
	EnablePrometheusMetrics = env.Bool("ENABLE_PROMETHEUS_METRICS", true)

	// ShutdownTimeout is the graceful shutdown budget for the HTTP server and
	// background workers (seconds).
	ShutdownTimeout = env.Int("SHUTDOWN_TIMEOUT", 360)

	// RedisConnString enables Redis-backed caches; empty keeps everything in
	// process memory.
	RedisConnString = strings.TrimSpace(env.String("REDIS_CONN_STRING", ""))
	// RedisMasterName enables Redis sentinel discovery when provided.
	RedisMasterName = strings.TrimSpace(env.String("REDIS_MASTER_NAME", ""))
	// RedisPassword supplies the Redis authentication password when required.
	RedisPassword = env.String("REDIS_PASSWORD", "")

	// SQLDSN selects the primary database; empty falls back to SQLite.
	SQLDSN = strings.TrimSpace(env.String("SQL_DSN", ""))
	// SQLitePath is the SQLite database file used when SQL_DSN is absent.
	SQLitePath = env.String("SQLITE_PATH", "llm-gateway.db")
	// SQLiteBusyTimeout configures the SQLite busy timeout (milliseconds).
	SQLiteBusyTimeout = env.Int("SQLITE_BUSY_TIMEOUT", 3000)

	// SQLMaxIdleConns controls the database pool's idle connection count.
	SQLMaxIdleConns = env.Int("SQL_MAX_IDLE_CONNS", 100)
	// SQLMaxOpenConns controls the database pool's maximum open connections.
	SQLMaxOpenConns = env.Int("SQL_MAX_OPEN_CONNS", 1000)
	// SQLMaxLifetimeSeconds sets how long pooled connections live before recycling.
	SQLMaxLifetimeSeconds = env.Int("SQL_MAX_LIFETIME", 300)

	// ApproximateTokenEnabled allows falling back to a bytes/4 estimate when no
	// tokenizer encoding is available for a model.
	ApproximateTokenEnabled = env.Bool("APPROXIMATE_TOKEN_ENABLED", true)

	// MaxInlineImageSizeMB bounds images fetched for adapters that need inline
	// base64 payloads.
	MaxInlineImageSizeMB = env.Int("MAX_INLINE_IMAGE_SIZE_MB", 10)

	// LogDir, when set together with LogRetentionDays, enables cleanup of
	// rotated log files older than the retention window.
	LogDir           = strings.TrimSpace(env.String("LOG_DIR", ""))
	LogRetentionDays = env.Int("LOG_RETENTION_DAYS", 0)
)

// Well-known upstream credentials. Model extra_param values may also reference
// arbitrary environment variables by name (env:NAME).
var (
	APIKeyOpenAI    = env.String("API_KEY_OPENAI", "")
	APIKeyAnthropic = env.String("API_KEY_ANTHROPIC", "")

	AWSRegion          = env.String("AWS_REGION", "us-east-1")
	AWSAccessKeyID     = env.String("AWS_ACCESS_KEY_ID", "")
	AWSSecretAccessKey = env.String("AWS_SECRET_ACCESS_KEY", "")

	GCPProjectID   = env.String("GCP_PROJECT_ID", "")
	GCPRegion      = env.String("GCP_REGION", "us-east5")
	GCPClientEmail = env.String("GCP_CLIENT_EMAIL", "")
	GCPPrivateKey  = env.String("GCP_PRIVATE_KEY", "")
)
