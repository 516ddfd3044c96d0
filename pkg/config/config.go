package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bazaarhq/bazaar/pkg/observability"
	"github.com/bazaarhq/bazaar/pkg/storage"
	"github.com/bazaarhq/bazaar/pkg/sync"
)

// Config holds all application configuration
type Config struct {
	// Server configuration (health/metrics endpoint)
	Server ServerConfig

	// Storage configuration
	Storage storage.Config

	// Billing provider configuration
	Billing BillingConfig

	// Sync engine configuration
	Sync SyncConfig

	// Notification configuration
	Notify NotifyConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds the operational HTTP server configuration. The
// daemon has no request-serving surface; this server only exposes
// health probes and metrics.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// BillingConfig holds billing provider API settings
type BillingConfig struct {
	StripeAPIKey  string
	StripeBaseURL string
	StripeTimeout time.Duration
}

// SyncConfig holds reconciliation engine settings
type SyncConfig struct {
	// Strategy is the default strategy for scheduled runs.
	Strategy sync.Strategy

	// Schedule is a cron expression for daemon mode.
	Schedule string

	// Workers bounds the reconciliation worker pool.
	Workers int

	// Limit caps the candidate count per run; zero means unlimited.
	Limit int

	// RecordTimeout bounds the time spent on a single candidate.
	RecordTimeout time.Duration
}

// NotifyConfig holds webhook notification settings. An empty URL
// disables notifications.
type NotifyConfig struct {
	WebhookURL    string
	WebhookSecret string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Storage:       loadStorageConfig(),
		Billing:       loadBillingConfig(),
		Sync:          loadSyncConfig(),
		Notify:        loadNotifyConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("BAZAAR_HOST", "0.0.0.0"),
		Port:            getEnv("BAZAAR_OPS_PORT", "9090"),
		ReadTimeout:     getEnvDuration("BAZAAR_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("BAZAAR_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("BAZAAR_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("BAZAAR_SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

// loadStorageConfig loads storage configuration from environment
func loadStorageConfig() storage.Config {
	cfg := storage.DefaultConfig()

	// PostgreSQL config
	if pgURL := getEnv("BAZAAR_POSTGRES_URL", ""); pgURL != "" {
		cfg.PostgresURL = pgURL
	}
	if maxConns := getEnvInt("BAZAAR_POSTGRES_MAX_CONNS", 0); maxConns > 0 {
		cfg.PostgresMaxConns = maxConns
	}
	if minConns := getEnvInt("BAZAAR_POSTGRES_MIN_CONNS", 0); minConns > 0 {
		cfg.PostgresMinConns = minConns
	}
	if timeout := getEnvDuration("BAZAAR_POSTGRES_TIMEOUT", 0); timeout > 0 {
		cfg.PostgresTimeout = timeout
	}
	if maxLife := getEnvDuration("BAZAAR_POSTGRES_MAX_LIFETIME", 0); maxLife > 0 {
		cfg.PostgresMaxLife = maxLife
	}

	// Redis config
	if redisAddr := getEnv("BAZAAR_REDIS_ADDR", ""); redisAddr != "" {
		cfg.RedisAddr = redisAddr
	}
	if redisPassword := getEnv("BAZAAR_REDIS_PASSWORD", ""); redisPassword != "" {
		cfg.RedisPassword = redisPassword
	}
	if redisDB := getEnvInt("BAZAAR_REDIS_DB", -1); redisDB >= 0 {
		cfg.RedisDB = redisDB
	}

	// Cache config
	if cacheEnabled := getEnv("BAZAAR_CACHE_ENABLED", ""); cacheEnabled != "" {
		cfg.CacheEnabled = strings.ToLower(cacheEnabled) == "true"
	}
	if ttl := getEnvDuration("BAZAAR_PLAN_CACHE_TTL", 0); ttl > 0 {
		cfg.PlanCacheTTL = ttl
	}
	if l1CacheSize := getEnvInt("BAZAAR_L1_CACHE_SIZE", 0); l1CacheSize > 0 {
		cfg.L1CacheSize = l1CacheSize
	}

	return cfg
}

// loadBillingConfig loads billing provider configuration from environment
func loadBillingConfig() BillingConfig {
	return BillingConfig{
		StripeAPIKey:  getEnv("BAZAAR_STRIPE_API_KEY", ""),
		StripeBaseURL: getEnv("BAZAAR_STRIPE_BASE_URL", ""),
		StripeTimeout: getEnvDuration("BAZAAR_STRIPE_TIMEOUT", 15*time.Second),
	}
}

// loadSyncConfig loads sync engine configuration from environment
func loadSyncConfig() SyncConfig {
	return SyncConfig{
		Strategy:      sync.ParseStrategy(getEnv("BAZAAR_SYNC_STRATEGY", "active_only")),
		Schedule:      getEnv("BAZAAR_SYNC_SCHEDULE", "0 * * * *"),
		Workers:       getEnvInt("BAZAAR_SYNC_WORKERS", 8),
		Limit:         getEnvInt("BAZAAR_SYNC_LIMIT", 0),
		RecordTimeout: getEnvDuration("BAZAAR_SYNC_RECORD_TIMEOUT", 30*time.Second),
	}
}

// loadNotifyConfig loads notification configuration from environment
func loadNotifyConfig() NotifyConfig {
	return NotifyConfig{
		WebhookURL:    getEnv("BAZAAR_NOTIFY_WEBHOOK_URL", ""),
		WebhookSecret: getEnv("BAZAAR_NOTIFY_WEBHOOK_SECRET", ""),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           parseLogLevel(getEnv("BAZAAR_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("BAZAAR_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("BAZAAR_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("BAZAAR_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("BAZAAR_OTEL_SERVICE_NAME", "bazaar-syncd"),
		OTelServiceVersion: getEnv("BAZAAR_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("BAZAAR_OTEL_INSECURE", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("ops port is required")
	}

	if c.Storage.PostgresURL == "" {
		return fmt.Errorf("postgres URL is required")
	}
	if c.Storage.CacheEnabled && c.Storage.RedisAddr == "" {
		return fmt.Errorf("redis address is required when the cache is enabled")
	}

	if c.Billing.StripeAPIKey == "" {
		return fmt.Errorf("stripe API key is required")
	}

	if c.Sync.Workers < 1 {
		return fmt.Errorf("sync workers must be at least 1")
	}
	if c.Sync.Schedule == "" {
		return fmt.Errorf("sync schedule is required")
	}

	if c.Notify.WebhookURL != "" && c.Notify.WebhookSecret == "" {
		return fmt.Errorf("webhook secret is required when a webhook URL is configured")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
