package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/fresh-schedules/apiframework/pkg/observability"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Identity providers.
const (
	ProviderJWT  = "jwt"
	ProviderOIDC = "oidc"
)

// Audit sinks.
const (
	AuditSinkLog  = "log"
	AuditSinkDB   = "db"
	AuditSinkNone = "none"
)

// MinJWTSecretLength is the shortest accepted HS256 secret.
const MinJWTSecretLength = 32

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Auth          AuthConfig          `yaml:"auth"`
	Store         StoreConfig         `yaml:"store"`
	Pipeline      PipelineConfig      `yaml:"pipeline"`
	Webhooks      WebhookConfig       `yaml:"webhooks"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORSOrigins     []string      `yaml:"cors_origins"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// AuthConfig selects and configures the identity provider.
type AuthConfig struct {
	Provider      string        `yaml:"provider"`
	JWTSecret     string        `yaml:"jwt_secret"`
	JWTIssuer     string        `yaml:"jwt_issuer"`
	JWTAudience   string        `yaml:"jwt_audience"`
	OIDCIssuer    string        `yaml:"oidc_issuer"`
	OIDCClientID  string        `yaml:"oidc_client_id"`
	VerifyTimeout time.Duration `yaml:"verify_timeout"`
	SessionCookie string        `yaml:"session_cookie"`
}

// StoreConfig configures shared state and membership lookups.
type StoreConfig struct {
	Backend           string        `yaml:"backend"`
	RedisURL          string        `yaml:"redis_url"`
	RedisPrefix       string        `yaml:"redis_prefix"`
	PostgresURL       string        `yaml:"postgres_url"`
	MembershipTimeout time.Duration `yaml:"membership_timeout"`
}

// PipelineConfig tunes the request pipeline.
type PipelineConfig struct {
	MaxBodyBytes     int64         `yaml:"max_body_bytes"`
	IdempotencyTTL   time.Duration `yaml:"idempotency_ttl"`
	IdempotencyWait  time.Duration `yaml:"idempotency_wait"`
	RateLimitTimeout time.Duration `yaml:"rate_limit_timeout"`
	CSRFSecureCookie bool          `yaml:"csrf_secure_cookie"`
}

// WebhookConfig configures inbound webhook verification.
type WebhookConfig struct {
	Secret        string        `yaml:"secret"`
	AllowedEvents []string      `yaml:"allowed_events"`
	MaxAge        time.Duration `yaml:"max_age"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       string `yaml:"log_level"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`
	AuditSink      string `yaml:"audit_sink"`
	// AuditRetention and AuditPurgeSchedule apply to the db sink only.
	AuditRetention     time.Duration `yaml:"audit_retention"`
	AuditPurgeSchedule string        `yaml:"audit_purge_schedule"`

	OTelEnabled        bool    `yaml:"otel_enabled"`
	OTelEndpoint       string  `yaml:"otel_endpoint"`
	OTelServiceName    string  `yaml:"otel_service_name"`
	OTelServiceVersion string  `yaml:"otel_service_version"`
	OTelInsecure       bool    `yaml:"otel_insecure"`
	OTelSampleRatio    float64 `yaml:"otel_sample_ratio"`
}

// Level returns the parsed log level.
func (o ObservabilityConfig) Level() observability.LogLevel {
	return observability.ParseLogLevel(o.LogLevel)
}

// Tracing converts the OTel settings.
func (o ObservabilityConfig) Tracing() observability.TracingConfig {
	return observability.TracingConfig{
		Enabled:        o.OTelEnabled,
		Endpoint:       o.OTelEndpoint,
		ServiceName:    o.OTelServiceName,
		ServiceVersion: o.OTelServiceVersion,
		Insecure:       o.OTelInsecure,
		SampleRatio:    o.OTelSampleRatio,
	}
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Auth: AuthConfig{
			Provider:      ProviderJWT,
			JWTIssuer:     "fresh-schedules",
			VerifyTimeout: 2 * time.Second,
			SessionCookie: "session",
		},
		Store: StoreConfig{
			Backend:           BackendMemory,
			RedisPrefix:       "fs",
			MembershipTimeout: 2 * time.Second,
		},
		Pipeline: PipelineConfig{
			MaxBodyBytes:     1 << 20,
			IdempotencyTTL:   24 * time.Hour,
			IdempotencyWait:  5 * time.Second,
			RateLimitTimeout: time.Second,
			CSRFSecureCookie: true,
		},
		Webhooks: WebhookConfig{
			MaxAge: 5 * time.Minute,
		},
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			MetricsEnabled:     true,
			AuditSink:          AuditSinkLog,
			AuditRetention:     90 * 24 * time.Hour,
			AuditPurgeSchedule: "0 3 * * *",
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "fresh-schedules-api",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
			OTelSampleRatio:    1.0,
		},
	}
}

// Load builds the configuration from defaults, FS_CONFIG_FILE and the
// environment, then validates it.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("FS_CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	s := &c.Server
	s.Host = getEnv("FS_HOST", s.Host)
	s.Port = getEnv("FS_PORT", s.Port)
	s.ReadTimeout = getEnvDuration("FS_READ_TIMEOUT", s.ReadTimeout)
	s.WriteTimeout = getEnvDuration("FS_WRITE_TIMEOUT", s.WriteTimeout)
	s.IdleTimeout = getEnvDuration("FS_IDLE_TIMEOUT", s.IdleTimeout)
	s.ShutdownTimeout = getEnvDuration("FS_SHUTDOWN_TIMEOUT", s.ShutdownTimeout)
	s.CORSOrigins = getEnvList("FS_CORS_ORIGINS", s.CORSOrigins)

	a := &c.Auth
	a.Provider = getEnv("FS_AUTH_PROVIDER", a.Provider)
	a.JWTSecret = getEnv("FS_JWT_SECRET", a.JWTSecret)
	a.JWTIssuer = getEnv("FS_JWT_ISSUER", a.JWTIssuer)
	a.JWTAudience = getEnv("FS_JWT_AUDIENCE", a.JWTAudience)
	a.OIDCIssuer = getEnv("FS_OIDC_ISSUER", a.OIDCIssuer)
	a.OIDCClientID = getEnv("FS_OIDC_CLIENT_ID", a.OIDCClientID)
	a.VerifyTimeout = getEnvDuration("FS_AUTH_VERIFY_TIMEOUT", a.VerifyTimeout)
	a.SessionCookie = getEnv("FS_SESSION_COOKIE", a.SessionCookie)

	st := &c.Store
	st.Backend = strings.ToLower(getEnv("FS_STORE_BACKEND", st.Backend))
	st.RedisURL = getEnv("FS_REDIS_URL", st.RedisURL)
	st.RedisPrefix = getEnv("FS_REDIS_PREFIX", st.RedisPrefix)
	st.PostgresURL = getEnv("FS_POSTGRES_URL", st.PostgresURL)
	st.MembershipTimeout = getEnvDuration("FS_MEMBERSHIP_TIMEOUT", st.MembershipTimeout)

	p := &c.Pipeline
	p.MaxBodyBytes = getEnvInt64("FS_MAX_BODY_BYTES", p.MaxBodyBytes)
	p.IdempotencyTTL = getEnvDuration("FS_IDEMPOTENCY_TTL", p.IdempotencyTTL)
	p.IdempotencyWait = getEnvDuration("FS_IDEMPOTENCY_WAIT", p.IdempotencyWait)
	p.RateLimitTimeout = getEnvDuration("FS_RATE_LIMIT_TIMEOUT", p.RateLimitTimeout)
	p.CSRFSecureCookie = getEnvBool("FS_CSRF_SECURE_COOKIE", p.CSRFSecureCookie)

	w := &c.Webhooks
	w.Secret = getEnv("FS_WEBHOOK_SECRET", w.Secret)
	w.AllowedEvents = getEnvList("FS_WEBHOOK_EVENTS", w.AllowedEvents)
	w.MaxAge = getEnvDuration("FS_WEBHOOK_MAX_AGE", w.MaxAge)

	o := &c.Observability
	o.LogLevel = getEnv("FS_LOG_LEVEL", o.LogLevel)
	o.MetricsEnabled = getEnvBool("FS_METRICS_ENABLED", o.MetricsEnabled)
	o.AuditSink = strings.ToLower(getEnv("FS_AUDIT_SINK", o.AuditSink))
	o.AuditRetention = getEnvDuration("FS_AUDIT_RETENTION", o.AuditRetention)
	o.AuditPurgeSchedule = getEnv("FS_AUDIT_PURGE_SCHEDULE", o.AuditPurgeSchedule)
	o.OTelEnabled = getEnvBool("FS_OTEL_ENABLED", o.OTelEnabled)
	o.OTelEndpoint = getEnv("FS_OTEL_ENDPOINT", o.OTelEndpoint)
	o.OTelServiceName = getEnv("FS_OTEL_SERVICE_NAME", o.OTelServiceName)
	o.OTelServiceVersion = getEnv("FS_OTEL_SERVICE_VERSION", o.OTelServiceVersion)
	o.OTelInsecure = getEnvBool("FS_OTEL_INSECURE", o.OTelInsecure)
	o.OTelSampleRatio = getEnvFloat("FS_OTEL_SAMPLE_RATIO", o.OTelSampleRatio)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	switch c.Auth.Provider {
	case ProviderJWT:
		if len(c.Auth.JWTSecret) < MinJWTSecretLength {
			return fmt.Errorf("JWT secret must be at least %d bytes", MinJWTSecretLength)
		}
	case ProviderOIDC:
		if c.Auth.OIDCIssuer == "" || c.Auth.OIDCClientID == "" {
			return fmt.Errorf("OIDC issuer and client ID are required for the oidc provider")
		}
	default:
		return fmt.Errorf("invalid auth provider: %s (must be jwt or oidc)", c.Auth.Provider)
	}

	switch c.Store.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Store.RedisURL == "" {
			return fmt.Errorf("redis URL is required for the redis backend")
		}
	default:
		return fmt.Errorf("invalid store backend: %s (must be memory or redis)", c.Store.Backend)
	}

	switch c.Observability.AuditSink {
	case AuditSinkLog, AuditSinkNone:
	case AuditSinkDB:
		if c.Store.PostgresURL == "" {
			return fmt.Errorf("postgres URL is required for the db audit sink")
		}
		if c.Observability.AuditPurgeSchedule != "" {
			if _, err := cron.ParseStandard(c.Observability.AuditPurgeSchedule); err != nil {
				return fmt.Errorf("invalid audit purge schedule %q: %w", c.Observability.AuditPurgeSchedule, err)
			}
		}
	default:
		return fmt.Errorf("invalid audit sink: %s (must be log, db or none)", c.Observability.AuditSink)
	}

	durations := map[string]time.Duration{
		"auth verify timeout":     c.Auth.VerifyTimeout,
		"membership timeout":      c.Store.MembershipTimeout,
		"idempotency TTL":         c.Pipeline.IdempotencyTTL,
		"idempotency wait":        c.Pipeline.IdempotencyWait,
		"rate limit timeout":      c.Pipeline.RateLimitTimeout,
		"webhook max age":         c.Webhooks.MaxAge,
		"server shutdown timeout": c.Server.ShutdownTimeout,
	}
	for name, d := range durations {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	if c.Pipeline.MaxBodyBytes <= 0 {
		return fmt.Errorf("max body bytes must be positive, got %d", c.Pipeline.MaxBodyBytes)
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

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
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

// getEnvList splits a comma separated variable, dropping empty items.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
