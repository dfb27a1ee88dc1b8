package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/platinummonkey/orgportal/pkg/storage"
)

// EnvPrefix prefixes every environment variable: server.addr is read from ORGPORTAL_SERVER_ADDR
const EnvPrefix = "ORGPORTAL"

// Session strategies
const (
	SessionDatabase = "database"
	SessionRedis    = "redis"
)

// Rate limiter backends
const (
	RateLimitMemory = "memory"
	RateLimitRedis  = "redis"
)

// Config is the complete portal configuration
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Session       SessionConfig       `mapstructure:"session"`
	RBAC          RBACConfig          `mapstructure:"rbac"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// ServerConfig configures the HTTP server and guard redirects
type ServerConfig struct {
	Addr            string          `mapstructure:"addr"`
	ReadTimeout     time.Duration   `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration   `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration   `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration   `mapstructure:"shutdown_timeout"`
	SignInPath      string          `mapstructure:"sign_in_path"`
	FallbackPath    string          `mapstructure:"fallback_path"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig limits API mutations per user
type RateLimitConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	Backend           string `mapstructure:"backend"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute"`
	Burst             int    `mapstructure:"burst"`
}

// DatabaseConfig configures the SQL database
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	MigrateOnStart  bool          `mapstructure:"migrate_on_start"`
}

// RedisConfig configures the optional Redis connection
type RedisConfig struct {
	URL string `mapstructure:"url"`
}

// SessionConfig selects where sessions are read from
type SessionConfig struct {
	Strategy      string `mapstructure:"strategy"`
	CookieName    string `mapstructure:"cookie_name"`
	RedisPrefix   string `mapstructure:"redis_prefix"`
	PurgeSchedule string `mapstructure:"purge_schedule"`
}

// RBACConfig configures the permission policy and role cache
type RBACConfig struct {
	PolicyFile string        `mapstructure:"policy_file"`
	CacheTTL   time.Duration `mapstructure:"cache_ttl"`
	CacheSize  int           `mapstructure:"cache_size"`
}

// ObservabilityConfig configures logging, metrics, and tracing
type ObservabilityConfig struct {
	LogLevel       string  `mapstructure:"log_level"`
	MetricsEnabled bool    `mapstructure:"metrics_enabled"`
	OTelEnabled    bool    `mapstructure:"otel_enabled"`
	OTelEndpoint   string  `mapstructure:"otel_endpoint"`
	OTelInsecure   bool    `mapstructure:"otel_insecure"`
	SampleRatio    float64 `mapstructure:"sample_ratio"`
	ServiceName    string  `mapstructure:"service_name"`
}

// setDefaults registers every key; AutomaticEnv only resolves keys Viper knows about
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.sign_in_path", "/sign-in")
	v.SetDefault("server.fallback_path", "/dashboard")
	v.SetDefault("server.rate_limit.enabled", true)
	v.SetDefault("server.rate_limit.backend", RateLimitMemory)
	v.SetDefault("server.rate_limit.requests_per_minute", 60)
	v.SetDefault("server.rate_limit.burst", 10)

	v.SetDefault("database.driver", storage.DriverSQLite)
	v.SetDefault("database.dsn", "orgportal.db")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("database.conn_max_idle_time", 5*time.Minute)
	v.SetDefault("database.migrate_on_start", true)

	v.SetDefault("redis.url", "")

	v.SetDefault("session.strategy", SessionDatabase)
	v.SetDefault("session.cookie_name", "__keyloom_session")
	v.SetDefault("session.redis_prefix", "keyloom:session:")
	v.SetDefault("session.purge_schedule", "@every 15m")

	v.SetDefault("rbac.policy_file", "")
	v.SetDefault("rbac.cache_ttl", time.Duration(0))
	v.SetDefault("rbac.cache_size", 10000)

	v.SetDefault("observability.log_level", "info")
	v.SetDefault("observability.metrics_enabled", true)
	v.SetDefault("observability.otel_enabled", false)
	v.SetDefault("observability.otel_endpoint", "localhost:4317")
	v.SetDefault("observability.otel_insecure", true)
	v.SetDefault("observability.sample_ratio", 1.0)
	v.SetDefault("observability.service_name", "orgportal")
}

// Load reads path (when non-empty), overlays ORGPORTAL_* environment
// variables, and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for missing or inconsistent values
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr must be set"))
	}
	if !strings.HasPrefix(c.Server.SignInPath, "/") {
		errs = append(errs, errors.New("server.sign_in_path must be an absolute path"))
	}
	if !strings.HasPrefix(c.Server.FallbackPath, "/") {
		errs = append(errs, errors.New("server.fallback_path must be an absolute path"))
	}

	switch c.Database.Driver {
	case storage.DriverPostgres, storage.DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("database.driver must be %q or %q", storage.DriverPostgres, storage.DriverSQLite))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn must be set"))
	}

	switch c.Session.Strategy {
	case SessionDatabase:
	case SessionRedis:
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("redis.url is required when session.strategy is redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("session.strategy must be %q or %q", SessionDatabase, SessionRedis))
	}

	if c.Server.RateLimit.Enabled {
		switch c.Server.RateLimit.Backend {
		case RateLimitMemory:
		case RateLimitRedis:
			if c.Redis.URL == "" {
				errs = append(errs, errors.New("redis.url is required when server.rate_limit.backend is redis"))
			}
		default:
			errs = append(errs, fmt.Errorf("server.rate_limit.backend must be %q or %q", RateLimitMemory, RateLimitRedis))
		}
		if c.Server.RateLimit.RequestsPerMinute <= 0 {
			errs = append(errs, errors.New("server.rate_limit.requests_per_minute must be positive"))
		}
	}

	if c.RBAC.CacheTTL < 0 {
		errs = append(errs, errors.New("rbac.cache_ttl must not be negative"))
	}
	if c.Observability.SampleRatio < 0 || c.Observability.SampleRatio > 1 {
		errs = append(errs, errors.New("observability.sample_ratio must be between 0 and 1"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// StorageConfig returns the database settings in storage form
func (c *Config) StorageConfig() storage.Config {
	return storage.Config{
		Driver:          c.Database.Driver,
		DSN:             c.Database.DSN,
		MaxOpenConns:    c.Database.MaxOpenConns,
		MaxIdleConns:    c.Database.MaxIdleConns,
		ConnMaxLifetime: c.Database.ConnMaxLifetime,
		ConnMaxIdleTime: c.Database.ConnMaxIdleTime,
	}
}

// RedisEnabled reports whether any component needs Redis
func (c *Config) RedisEnabled() bool {
	return c.Session.Strategy == SessionRedis ||
		(c.Server.RateLimit.Enabled && c.Server.RateLimit.Backend == RateLimitRedis)
}
