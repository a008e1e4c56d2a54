// Package config provides environment-aware configuration management
// for the document indexing service.
package config

import (
	"fmt"
	"time"

	envconfig "github.com/docuindex/engine/infrastructure/config"
)

// Environment represents the deployment environment.
type Environment string

const (
	Development Environment = "development"
	Testing     Environment = "testing"
	Production  Environment = "production"
)

// Config holds all application configuration, loaded once at startup from
// environment variables. Every field has a code-side default.
type Config struct {
	Env Environment

	// Database
	DatabaseURL      string
	DBMaxConnections int
	DBIdleTimeout    time.Duration
	DBConnectTimeout time.Duration
	DBStatementTimeout time.Duration

	// HTTP server
	HTTPPort    int
	APIKeyPrefix string

	// Auth key pepper, roles
	APIKeyPepper  string
	RolesFilePath string

	// Embedding
	EmbeddingDims      int
	EmbeddingCacheSize int
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	RedisCacheTTL      time.Duration

	// Indexer
	IndexerRingSize int
	IndexerChunkSize int

	// Scheduler
	ServerSchedulerEnabled  bool
	FailureBackoffSeconds   int
	QuarantinePurgeIntervalSeconds int

	// Retention orchestrator
	RetentionMaintenanceEnabled         bool
	RetentionMaintenanceIntervalSeconds int
	ActivityRetentionDays               int
	IndexingRunsRetentionDays           int
	QuarantineRetentionDays             int
	StaleRunTimeoutSeconds              int

	// Auth / access control
	APIRequireAuth bool
	DemoMode       bool

	// Logging
	LogLevel  string
	LogFormat string

	// CORS
	CORSOrigins []string
}

// Load builds a Config from environment variables based on the APP_ENV
// variable (defaulting to development).
func Load() (*Config, error) {
	envStr := envconfig.GetEnv("APP_ENV", string(Development))
	env, ok := parseEnvironment(envStr)
	if !ok {
		return nil, fmt.Errorf("invalid APP_ENV: %s (must be development, testing, or production)", envStr)
	}

	cfg := &Config{Env: env}
	if err := cfg.loadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func parseEnvironment(s string) (Environment, bool) {
	switch Environment(s) {
	case Development, Testing, Production:
		return Environment(s), true
	default:
		return "", false
	}
}

func (c *Config) loadFromEnv() error {
	c.DatabaseURL = envconfig.GetEnv("DATABASE_URL", "postgres://localhost:5432/docuindex?sslmode=disable")
	c.DBMaxConnections = envconfig.GetEnvInt("DB_MAX_CONNECTIONS", 20)

	dbIdleTimeout, err := parseDurationEnv("DB_IDLE_TIMEOUT", "5m")
	if err != nil {
		return err
	}
	c.DBIdleTimeout = dbIdleTimeout

	dbConnectTimeout, err := parseDurationEnv("DB_CONNECT_TIMEOUT", "10s")
	if err != nil {
		return err
	}
	c.DBConnectTimeout = dbConnectTimeout

	dbStatementTimeout, err := parseDurationEnv("DB_STATEMENT_TIMEOUT", "30s")
	if err != nil {
		return err
	}
	c.DBStatementTimeout = dbStatementTimeout

	c.HTTPPort = envconfig.GetEnvInt("HTTP_PORT", 8080)
	c.APIKeyPrefix = envconfig.GetEnv("API_KEY_PREFIX", "pgv_sk_")
	c.APIKeyPepper = envconfig.GetEnv("API_KEY_PEPPER", "")
	c.RolesFilePath = envconfig.GetEnv("ROLES_FILE_PATH", "")

	c.EmbeddingDims = envconfig.GetEnvInt("EMBEDDING_DIMS", 384)
	c.EmbeddingCacheSize = envconfig.GetEnvInt("EMBEDDING_CACHE_SIZE", 10000)
	c.RedisAddr = envconfig.GetEnv("REDIS_ADDR", "")
	c.RedisPassword = envconfig.GetEnv("REDIS_PASSWORD", "")
	c.RedisDB = envconfig.GetEnvInt("REDIS_DB", 0)
	redisCacheTTL, err := parseDurationEnv("REDIS_CACHE_TTL", "24h")
	if err != nil {
		return err
	}
	c.RedisCacheTTL = redisCacheTTL

	c.IndexerRingSize = envconfig.GetEnvInt("INDEXER_RING_SIZE", 256)
	c.IndexerChunkSize = envconfig.GetEnvInt("INDEXER_CHUNK_SIZE", 1000)

	c.ServerSchedulerEnabled = envconfig.GetEnvBool("SERVER_SCHEDULER_ENABLED", false)
	c.FailureBackoffSeconds = envconfig.GetEnvInt("FAILURE_BACKOFF_SECONDS", 3600)
	c.QuarantinePurgeIntervalSeconds = envconfig.GetEnvInt("QUARANTINE_PURGE_INTERVAL_SECONDS", 86400)

	c.RetentionMaintenanceEnabled = envconfig.GetEnvBool("RETENTION_MAINTENANCE_ENABLED", true)
	c.RetentionMaintenanceIntervalSeconds = envconfig.GetEnvInt("RETENTION_MAINTENANCE_INTERVAL_SECONDS", 86400)
	c.ActivityRetentionDays = envconfig.GetEnvInt("ACTIVITY_RETENTION_DAYS", 2555)
	c.IndexingRunsRetentionDays = envconfig.GetEnvInt("INDEXING_RUNS_RETENTION_DAYS", 10950)
	c.QuarantineRetentionDays = envconfig.GetEnvInt("QUARANTINE_RETENTION_DAYS", 30)
	c.StaleRunTimeoutSeconds = envconfig.GetEnvInt("STALE_RUN_TIMEOUT_SECONDS", 21600)

	c.APIRequireAuth = envconfig.GetEnvBool("API_REQUIRE_AUTH", true)
	c.DemoMode = envconfig.GetEnvBool("DEMO_MODE", false)

	c.LogLevel = envconfig.GetEnv("LOG_LEVEL", "info")
	c.LogFormat = envconfig.GetEnv("LOG_FORMAT", "json")

	c.CORSOrigins = envconfig.SplitAndTrimCSV(envconfig.GetEnv("CORS_ALLOWED_ORIGINS", "*"))

	return nil
}

func (c *Config) IsDevelopment() bool { return c.Env == Development }
func (c *Config) IsTesting() bool     { return c.Env == Testing }
func (c *Config) IsProduction() bool  { return c.Env == Production }

// Validate enforces production-safety invariants and sanity-checks ranges.
func (c *Config) Validate() error {
	if c.IsProduction() {
		if !c.APIRequireAuth {
			return fmt.Errorf("API_REQUIRE_AUTH must be true in production")
		}
		if c.DemoMode {
			return fmt.Errorf("DEMO_MODE must be false in production")
		}
		if c.APIKeyPepper == "" {
			return fmt.Errorf("API_KEY_PEPPER must be set in production")
		}
	}

	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP_PORT: %d (must be between 1 and 65535)", c.HTTPPort)
	}
	if c.RetentionMaintenanceIntervalSeconds < 1 {
		return fmt.Errorf("RETENTION_MAINTENANCE_INTERVAL_SECONDS must be positive")
	}
	if c.StaleRunTimeoutSeconds < 1 {
		return fmt.Errorf("STALE_RUN_TIMEOUT_SECONDS must be positive")
	}
	if c.APIKeyPrefix == "" {
		return fmt.Errorf("API_KEY_PREFIX must not be empty")
	}

	return nil
}

func parseDurationEnv(key, defaultValue string) (time.Duration, error) {
	raw := envconfig.GetEnv(key, defaultValue)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
