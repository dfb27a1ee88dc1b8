package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/orgportal/pkg/audit"
	"github.com/platinummonkey/orgportal/pkg/config"
	"github.com/platinummonkey/orgportal/pkg/middleware"
	"github.com/platinummonkey/orgportal/pkg/observability"
	"github.com/platinummonkey/orgportal/pkg/orgs"
	"github.com/platinummonkey/orgportal/pkg/rbac"
	"github.com/platinummonkey/orgportal/pkg/session"
	"github.com/platinummonkey/orgportal/pkg/storage"
	"github.com/platinummonkey/orgportal/pkg/users"
	"github.com/platinummonkey/orgportal/pkg/web"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

var (
	configPath  = flag.String("config", getEnv("ORGPORTAL_CONFIG", ""), "Path to the configuration file (yaml, json, or toml)")
	migrateOnly = flag.Bool("migrate-only", false, "Apply database migrations and exit")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(observability.ParseLogLevel(cfg.Observability.LogLevel), os.Stdout).
		WithField("service", cfg.Observability.ServiceName)

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("Portal stopped with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger) error {
	ctx, stop := observability.ListenForSignals(context.Background())
	defer stop()

	if cfg.Database.MigrateOnStart || *migrateOnly {
		if err := storage.Migrate(cfg.Database.Driver, cfg.Database.DSN, "up"); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
		logger.Info("Database migrations applied")
	}
	if *migrateOnly {
		return nil
	}

	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: version,
		Insecure:       cfg.Observability.OTelInsecure,
		SampleRatio:    cfg.Observability.SampleRatio,
	}, logger)
	if err != nil {
		return err
	}

	db, err := storage.Open(ctx, cfg.StorageConfig())
	if err != nil {
		return err
	}

	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		redisClient, err = storage.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			if cfg.RedisEnabled() {
				return err
			}
			logger.WithError(err).Warn("Redis unavailable, continuing without it")
			redisClient = nil
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	// Sessions
	var sessions session.Store
	var janitor *session.Janitor
	switch cfg.Session.Strategy {
	case config.SessionRedis:
		sessions = session.NewRedisStore(redisClient, cfg.Session.RedisPrefix)
	default:
		sqlSessions := session.NewSQLStore(db)
		sessions = sqlSessions
		janitor, err = session.NewJanitor(sqlSessions, cfg.Session.PurgeSchedule, metrics, logger)
		if err != nil {
			return err
		}
	}

	// Authorization
	perms, err := rbac.LoadPermissionMap(cfg.RBAC.PolicyFile)
	if err != nil {
		return err
	}

	auditLog := audit.NewMultiLogger(mustDBLogger(db), audit.NewLogLogger(logger))
	activity := mustDBLogger(db)

	var lookup rbac.MembershipLookup = rbac.NewMembershipStore(db)
	orgOpts := []orgs.Option{orgs.WithRecorder(metrics)}
	if cfg.RBAC.CacheTTL > 0 {
		cached := rbac.NewCachedLookup(lookup, cfg.RBAC.CacheSize, cfg.RBAC.CacheTTL, metrics)
		lookup = cached
		orgOpts = append(orgOpts, orgs.WithRoleCache(cached))
		if cfg.RedisEnabled() {
			logger.WithField("ttl", cfg.RBAC.CacheTTL.String()).
				Warn("Role cache is invalidated per process; other instances may serve revoked roles until the TTL expires")
		}
	}

	guard := rbac.NewGuard(
		session.NewResolver(sessions, cfg.Session.CookieName),
		lookup,
		perms,
		rbac.WithSignInPath(cfg.Server.SignInPath),
		rbac.WithDefaultFallback(cfg.Server.FallbackPath),
		rbac.WithLogger(logger),
		rbac.WithRecorder(metrics),
		rbac.WithAuditLogger(auditLog),
	)

	limiter, stopLimiter := newLimiter(ctx, cfg, redisClient)
	defer stopLimiter()

	webCfg := web.Config{
		Guard:    guard,
		Orgs:     orgs.NewSQLService(db, orgOpts...),
		Users:    users.NewService(db),
		Audit:    auditLog,
		Activity: activity,
		Logger:   logger,
		Health:   observability.NewHealthChecker(db, redisClient, cfg.RedisEnabled(), version),
		Limiter:  limiter,
	}
	if cfg.Observability.MetricsEnabled {
		webCfg.Metrics = metrics
		webCfg.Registry = registry
	}
	server, err := web.NewServer(webCfg)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      server.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc("database", func(context.Context) error { return db.Close() })
	if redisClient != nil {
		shutdown.RegisterShutdownFunc("redis", func(context.Context) error { return redisClient.Close() })
	}
	shutdown.RegisterShutdownFunc("audit", func(context.Context) error { return auditLog.Close() })
	shutdown.RegisterShutdownFunc("opentelemetry", func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, providers)
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithFields(map[string]interface{}{
			"addr":     cfg.Server.Addr,
			"version":  version,
			"sessions": cfg.Session.Strategy,
			"database": cfg.Database.Driver,
		}).Info("Starting org portal")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if janitor != nil {
		g.Go(func() error { return janitor.Run(gctx) })
	}
	g.Go(func() error {
		reportDBStats(gctx, db, metrics)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received")
		return shutdown.Shutdown(context.Background())
	})

	return g.Wait()
}

func mustDBLogger(db *sql.DB) *audit.DBLogger {
	l, err := audit.NewDBLogger(db)
	if err != nil {
		log.Fatalf("Failed to create audit logger: %v", err)
	}
	return l
}

// newLimiter builds the configured mutation rate limiter. The returned
// stop function ends background cleanup.
func newLimiter(ctx context.Context, cfg *config.Config, redisClient *redis.Client) (middleware.Limiter, func()) {
	if !cfg.Server.RateLimit.Enabled {
		return nil, func() {}
	}

	rlCfg := middleware.RateLimitConfig{
		RequestsPerWindow: cfg.Server.RateLimit.RequestsPerMinute,
		WindowDuration:    time.Minute,
		BurstSize:         cfg.Server.RateLimit.Burst,
	}
	if cfg.Server.RateLimit.Backend == config.RateLimitRedis {
		return middleware.NewDistributedRateLimiter(redisClient, rlCfg, ""), func() {}
	}

	cleanupCtx, cancel := context.WithCancel(ctx)
	limiter := middleware.NewRateLimiter(rlCfg)
	limiter.StartCleanup(cleanupCtx)
	return limiter, cancel
}

// reportDBStats refreshes the connection pool gauges until ctx is done
func reportDBStats(ctx context.Context, db *sql.DB, metrics *observability.Metrics) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			metrics.UpdateDBStats(db.Stats())
		case <-ctx.Done():
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
