// Package observability provides structured logging, Prometheus metrics,
// health probes, OpenTelemetry setup, and graceful shutdown for the portal.
//
// # Logging
//
// Logger writes JSON lines through logrus. Request handlers obtain the
// request-scoped logger, carrying request and user ids, with FromContext:
//
//	observability.FromContext(r.Context()).WithError(err).Error("Failed to list members")
//
// # Metrics
//
// Metrics registers the portal's collectors on a registry and satisfies the
// recorder interfaces of pkg/rbac, pkg/orgs, and pkg/session:
//
//	metrics := observability.NewMetrics(registry)
//	router.Use(observability.HTTPMetricsMiddleware(metrics))
//	router.Handle("/metrics", observability.MetricsHandler(registry))
//
// # Health
//
// HealthChecker serves /health/live and /health/ready. An unreachable
// optional redis degrades the service; a required one makes it unhealthy.
package observability
