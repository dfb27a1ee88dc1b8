package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/orgportal/pkg/storage"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "/sign-in", cfg.Server.SignInPath)
	assert.Equal(t, "/dashboard", cfg.Server.FallbackPath)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.True(t, cfg.Server.RateLimit.Enabled)
	assert.Equal(t, RateLimitMemory, cfg.Server.RateLimit.Backend)
	assert.Equal(t, storage.DriverSQLite, cfg.Database.Driver)
	assert.True(t, cfg.Database.MigrateOnStart)
	assert.Equal(t, SessionDatabase, cfg.Session.Strategy)
	assert.Equal(t, "__keyloom_session", cfg.Session.CookieName)
	assert.Equal(t, "keyloom:session:", cfg.Session.RedisPrefix)
	assert.Zero(t, cfg.RBAC.CacheTTL, "role cache is off unless configured")
	assert.Equal(t, 10000, cfg.RBAC.CacheSize)
	assert.Equal(t, "info", cfg.Observability.LogLevel)
	assert.False(t, cfg.Observability.OTelEnabled)
	assert.False(t, cfg.RedisEnabled())
}

func TestLoad_EnvVarOverride(t *testing.T) {
	t.Setenv("ORGPORTAL_SERVER_ADDR", ":9090")
	t.Setenv("ORGPORTAL_DATABASE_DRIVER", "postgres")
	t.Setenv("ORGPORTAL_DATABASE_DSN", "postgres://localhost/orgportal?sslmode=disable")
	t.Setenv("ORGPORTAL_SESSION_STRATEGY", "redis")
	t.Setenv("ORGPORTAL_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("ORGPORTAL_RBAC_CACHE_TTL", "5s")
	t.Setenv("ORGPORTAL_SERVER_RATE_LIMIT_ENABLED", "false")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, storage.DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, SessionRedis, cfg.Session.Strategy)
	assert.Equal(t, 5*time.Second, cfg.RBAC.CacheTTL)
	assert.False(t, cfg.Server.RateLimit.Enabled)
	assert.True(t, cfg.RedisEnabled())

	sc := cfg.StorageConfig()
	assert.Equal(t, "postgres://localhost/orgportal?sslmode=disable", sc.DSN)
	assert.Equal(t, 25, sc.MaxOpenConns)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orgportal.yaml")
	content := `
server:
  addr: ":7070"
  sign_in_path: /login
rbac:
  policy_file: /etc/orgportal/policy.yaml
  cache_ttl: 1m
observability:
  log_level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	// environment wins over the file
	t.Setenv("ORGPORTAL_OBSERVABILITY_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, "/login", cfg.Server.SignInPath)
	assert.Equal(t, "/etc/orgportal/policy.yaml", cfg.RBAC.PolicyFile)
	assert.Equal(t, time.Minute, cfg.RBAC.CacheTTL)
	assert.Equal(t, "warn", cfg.Observability.LogLevel)
	assert.Equal(t, "/dashboard", cfg.Server.FallbackPath)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"unknown driver", map[string]string{"ORGPORTAL_DATABASE_DRIVER": "mysql"}, "database.driver"},
		{"redis sessions without url", map[string]string{"ORGPORTAL_SESSION_STRATEGY": "redis"}, "redis.url is required when session.strategy"},
		{"redis limiter without url", map[string]string{"ORGPORTAL_SERVER_RATE_LIMIT_BACKEND": "redis"}, "redis.url is required when server.rate_limit.backend"},
		{"unknown strategy", map[string]string{"ORGPORTAL_SESSION_STRATEGY": "jwt"}, "session.strategy"},
		{"relative sign-in path", map[string]string{"ORGPORTAL_SERVER_SIGN_IN_PATH": "sign-in"}, "server.sign_in_path"},
		{"sample ratio", map[string]string{"ORGPORTAL_OBSERVABILITY_SAMPLE_RATIO": "2"}, "sample_ratio"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
