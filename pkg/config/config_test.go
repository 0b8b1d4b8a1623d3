package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fresh-schedules/apiframework/pkg/observability"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("FS_TEST_STR", "custom")
	t.Setenv("FS_TEST_BOOL", "1")
	t.Setenv("FS_TEST_INT", "42")
	t.Setenv("FS_TEST_BAD_INT", "forty-two")
	t.Setenv("FS_TEST_DUR", "90s")
	t.Setenv("FS_TEST_LIST", " a, ,b ,c")
	t.Setenv("FS_TEST_FLOAT", "0.25")

	assert.Equal(t, "custom", getEnv("FS_TEST_STR", "default"))
	assert.Equal(t, "default", getEnv("FS_TEST_UNSET", "default"))
	assert.True(t, getEnvBool("FS_TEST_BOOL", false))
	assert.True(t, getEnvBool("FS_TEST_UNSET", true))
	assert.Equal(t, int64(42), getEnvInt64("FS_TEST_INT", 0))
	assert.Equal(t, int64(7), getEnvInt64("FS_TEST_BAD_INT", 7))
	assert.Equal(t, 90*time.Second, getEnvDuration("FS_TEST_DUR", 0))
	assert.Equal(t, []string{"a", "b", "c"}, getEnvList("FS_TEST_LIST", nil))
	assert.Equal(t, []string{"x"}, getEnvList("FS_TEST_UNSET", []string{"x"}))
	assert.Equal(t, 0.25, getEnvFloat("FS_TEST_FLOAT", 1))
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("FS_JWT_SECRET", testSecret)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.Equal(t, ProviderJWT, cfg.Auth.Provider)
	assert.Equal(t, int64(1<<20), cfg.Pipeline.MaxBodyBytes)
	assert.Equal(t, 24*time.Hour, cfg.Pipeline.IdempotencyTTL)
	assert.Equal(t, 5*time.Second, cfg.Pipeline.IdempotencyWait)
	assert.True(t, cfg.Pipeline.CSRFSecureCookie)
	assert.Equal(t, observability.InfoLevel, cfg.Observability.Level())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("FS_JWT_SECRET", testSecret)
	t.Setenv("FS_PORT", "9000")
	t.Setenv("FS_STORE_BACKEND", "REDIS")
	t.Setenv("FS_REDIS_URL", "redis://cache:6379/1")
	t.Setenv("FS_IDEMPOTENCY_TTL", "1h")
	t.Setenv("FS_LOG_LEVEL", "debug")
	t.Setenv("FS_CORS_ORIGINS", "https://a.example.com,https://b.example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, BackendRedis, cfg.Store.Backend)
	assert.Equal(t, "redis://cache:6379/1", cfg.Store.RedisURL)
	assert.Equal(t, time.Hour, cfg.Pipeline.IdempotencyTTL)
	assert.Equal(t, observability.DebugLevel, cfg.Observability.Level())
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Server.CORSOrigins)
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlDoc := strings.Join([]string{
		"server:",
		"  port: \"7000\"",
		"auth:",
		"  provider: oidc",
		"  oidc_issuer: https://accounts.example.com",
		"  oidc_client_id: fresh",
		"pipeline:",
		"  idempotency_wait: 2s",
		"webhooks:",
		"  allowed_events: [shift.created, shift.updated]",
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0o600))

	t.Setenv("FS_CONFIG_FILE", path)
	t.Setenv("FS_PORT", "7100")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "7100", cfg.Server.Port)
	assert.Equal(t, ProviderOIDC, cfg.Auth.Provider)
	assert.Equal(t, "fresh", cfg.Auth.OIDCClientID)
	assert.Equal(t, 2*time.Second, cfg.Pipeline.IdempotencyWait)
	assert.Equal(t, []string{"shift.created", "shift.updated"}, cfg.Webhooks.AllowedEvents)
	// Untouched keys keep their defaults.
	assert.Equal(t, 24*time.Hour, cfg.Pipeline.IdempotencyTTL)
}

func TestLoad_BadFile(t *testing.T) {
	t.Setenv("FS_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		c := Default()
		c.Auth.JWTSecret = testSecret
		return c
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing port", func(c *Config) { c.Server.Port = "" }, "server port is required"},
		{"short jwt secret", func(c *Config) { c.Auth.JWTSecret = "short" }, "JWT secret"},
		{"oidc without issuer", func(c *Config) { c.Auth.Provider = ProviderOIDC }, "OIDC issuer"},
		{"unknown provider", func(c *Config) { c.Auth.Provider = "saml" }, "invalid auth provider"},
		{"redis without url", func(c *Config) { c.Store.Backend = BackendRedis }, "redis URL is required"},
		{"unknown backend", func(c *Config) { c.Store.Backend = "etcd" }, "invalid store backend"},
		{"db audit without postgres", func(c *Config) { c.Observability.AuditSink = AuditSinkDB }, "postgres URL is required"},
		{"bad purge schedule", func(c *Config) {
			c.Observability.AuditSink = AuditSinkDB
			c.Store.PostgresURL = "postgres://localhost/fs"
			c.Observability.AuditPurgeSchedule = "every day"
		}, "invalid audit purge schedule"},
		{"unknown audit sink", func(c *Config) { c.Observability.AuditSink = "kafka" }, "invalid audit sink"},
		{"zero idempotency wait", func(c *Config) { c.Pipeline.IdempotencyWait = 0 }, "idempotency wait must be positive"},
		{"zero body limit", func(c *Config) { c.Pipeline.MaxBodyBytes = 0 }, "max body bytes"},
		{"otel without endpoint", func(c *Config) {
			c.Observability.OTelEnabled = true
			c.Observability.OTelEndpoint = ""
		}, "OpenTelemetry endpoint"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestTracingConfig(t *testing.T) {
	o := Default().Observability
	o.OTelEnabled = true

	tc := o.Tracing()
	assert.True(t, tc.Enabled)
	assert.Equal(t, "localhost:4317", tc.Endpoint)
	assert.Equal(t, "fresh-schedules-api", tc.ServiceName)
}
