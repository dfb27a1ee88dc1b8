// Package config loads and validates portal configuration from an optional
// file and ORGPORTAL_-prefixed environment variables using Viper.
//
// # Overview
//
// Every key has a default, so the portal starts with no configuration at all:
// SQLite in the working directory, database-backed sessions, the built-in
// role/permission policy and an in-memory rate limiter. Nested keys map to
// environment variables by upper-casing and replacing dots with underscores.
//
// # Configuration Structure
//
// Server settings:
//
//	ORGPORTAL_SERVER_ADDR=":8080"
//	ORGPORTAL_SERVER_READ_TIMEOUT="15s"
//	ORGPORTAL_SERVER_SIGN_IN_PATH="/sign-in"
//	ORGPORTAL_SERVER_FALLBACK_PATH="/dashboard"
//	ORGPORTAL_SERVER_RATE_LIMIT_BACKEND="memory"  # memory, redis
//	ORGPORTAL_SERVER_RATE_LIMIT_REQUESTS_PER_MINUTE="60"
//
// Database settings:
//
//	ORGPORTAL_DATABASE_DRIVER="postgres"  # postgres, sqlite3
//	ORGPORTAL_DATABASE_DSN="postgres://localhost/orgportal?sslmode=disable"
//	ORGPORTAL_DATABASE_MAX_OPEN_CONNS="25"
//	ORGPORTAL_DATABASE_MIGRATE_ON_START="true"
//
// Session and Redis settings:
//
//	ORGPORTAL_SESSION_STRATEGY="redis"  # database, redis
//	ORGPORTAL_SESSION_COOKIE_NAME="__keyloom_session"
//	ORGPORTAL_SESSION_PURGE_SCHEDULE="@every 15m"
//	ORGPORTAL_REDIS_URL="redis://localhost:6379/0"
//
// RBAC settings:
//
//	ORGPORTAL_RBAC_POLICY_FILE="/etc/orgportal/policy.yaml"
//	ORGPORTAL_RBAC_CACHE_TTL="30s"  # default 0: every guard reads the membership table
//	ORGPORTAL_RBAC_CACHE_SIZE="10000"
//
// Observability settings:
//
//	ORGPORTAL_OBSERVABILITY_LOG_LEVEL="info"  # debug, info, warn, error
//	ORGPORTAL_OBSERVABILITY_METRICS_ENABLED="true"
//	ORGPORTAL_OBSERVABILITY_OTEL_ENABLED="true"
//	ORGPORTAL_OBSERVABILITY_OTEL_ENDPOINT="otel-collector:4317"
//
// # Usage Example
//
//	cfg, err := config.Load(os.Getenv("ORGPORTAL_CONFIG"))
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Printf("listening on %s with %s sessions\n", cfg.Server.Addr, cfg.Session.Strategy)
package config
