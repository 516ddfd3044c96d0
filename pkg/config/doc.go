// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from environment variables with
// sensible defaults for all settings.
//
// # Configuration Structure
//
// Server settings (health/metrics endpoint):
//
//	BAZAAR_HOST="0.0.0.0"
//	BAZAAR_OPS_PORT="9090"
//	BAZAAR_SHUTDOWN_TIMEOUT="30s"
//
// Storage settings:
//
//	BAZAAR_POSTGRES_URL="postgres://localhost/bazaar"
//	BAZAAR_POSTGRES_MAX_CONNS="20"
//	BAZAAR_CACHE_ENABLED="true"
//	BAZAAR_REDIS_ADDR="localhost:6379"
//	BAZAAR_PLAN_CACHE_TTL="15m"
//
// Billing provider settings:
//
//	BAZAAR_STRIPE_API_KEY="sk_live_..."
//	BAZAAR_STRIPE_TIMEOUT="15s"
//
// Sync engine settings:
//
//	BAZAAR_SYNC_STRATEGY="active_only"  # full, incremental, active_only, plans_only
//	BAZAAR_SYNC_SCHEDULE="0 * * * *"
//	BAZAAR_SYNC_WORKERS="8"
//	BAZAAR_SYNC_LIMIT="0"
//
// Notification settings:
//
//	BAZAAR_NOTIFY_WEBHOOK_URL="https://hooks.example.com/sync"
//	BAZAAR_NOTIFY_WEBHOOK_SECRET="..."
//
// Observability settings:
//
//	BAZAAR_LOG_LEVEL="info"  # debug, info, warn, error
//	BAZAAR_METRICS_ENABLED="true"
//	BAZAAR_OTEL_ENABLED="true"
//	BAZAAR_OTEL_ENDPOINT="otel-collector:4317"
//
// # Usage Example
//
// Load configuration:
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	fmt.Printf("Strategy: %s\n", cfg.Sync.Strategy)
//	fmt.Printf("Schedule: %s\n", cfg.Sync.Schedule)
//
// # Related Packages
//
//   - pkg/storage: Uses storage configuration
//   - pkg/sync: Uses sync engine configuration
//   - pkg/observability: Uses observability configuration
package config
