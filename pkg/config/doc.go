// Package config loads service configuration from defaults, an optional YAML
// file and environment variables, in that order of precedence (lowest first).
//
// # Sources
//
// FS_CONFIG_FILE names a YAML file whose keys mirror the struct tags:
//
//	server:
//	  port: "8080"
//	store:
//	  backend: redis
//	  redis_url: redis://localhost:6379/0
//	pipeline:
//	  idempotency_ttl: 24h
//
// Environment variables override the file:
//
// Server settings:
//
//	FS_HOST="0.0.0.0"
//	FS_PORT="8080"
//	FS_READ_TIMEOUT="15s"
//	FS_WRITE_TIMEOUT="15s"
//	FS_SHUTDOWN_TIMEOUT="30s"
//	FS_CORS_ORIGINS="https://app.example.com,https://admin.example.com"
//
// Identity:
//
//	FS_AUTH_PROVIDER="jwt"          # jwt or oidc
//	FS_JWT_SECRET="..."             # at least 32 bytes
//	FS_JWT_ISSUER="fresh-schedules"
//	FS_OIDC_ISSUER="https://accounts.example.com"
//	FS_OIDC_CLIENT_ID="..."
//	FS_AUTH_VERIFY_TIMEOUT="2s"
//
// Shared state:
//
//	FS_STORE_BACKEND="memory"       # memory or redis
//	FS_REDIS_URL="redis://localhost:6379/0"
//	FS_POSTGRES_URL="postgres://localhost/fresh?sslmode=disable"
//	FS_MEMBERSHIP_TIMEOUT="2s"
//
// Pipeline:
//
//	FS_MAX_BODY_BYTES="1048576"
//	FS_IDEMPOTENCY_TTL="24h"
//	FS_IDEMPOTENCY_WAIT="5s"
//	FS_RATE_LIMIT_TIMEOUT="1s"
//	FS_CSRF_SECURE_COOKIE="true"
//	FS_WEBHOOK_SECRET="..."
//	FS_WEBHOOK_EVENTS="shift.created,shift.updated"
//
// Observability:
//
//	FS_LOG_LEVEL="info"
//	FS_METRICS_ENABLED="true"
//	FS_AUDIT_SINK="log"             # log, db or none
//	FS_AUDIT_RETENTION="2160h"      # db sink: entries older than this are purged
//	FS_AUDIT_PURGE_SCHEDULE="0 3 * * *"
//	FS_OTEL_ENABLED="false"
//	FS_OTEL_ENDPOINT="localhost:4317"
//
// Load validates the result; an invalid configuration fails startup.
package config
