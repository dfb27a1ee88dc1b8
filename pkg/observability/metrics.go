package observability

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Authorization metrics
	AuthzDecisionsTotal   *prometheus.CounterVec
	RoleCacheLookupsTotal *prometheus.CounterVec

	// Organization metrics
	OrgMutationsTotal *prometheus.CounterVec

	// Session metrics
	SessionsPurgedTotal prometheus.Counter

	// Database metrics
	DBConnectionsOpen  prometheus.Gauge
	DBConnectionsInUse prometheus.Gauge
	DBConnectionsIdle  prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orgportal_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "orgportal_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		AuthzDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orgportal_authz_decisions_total",
				Help: "Authorization guard decisions by guard and outcome",
			},
			[]string{"guard", "outcome"},
		),
		RoleCacheLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orgportal_role_cache_lookups_total",
				Help: "Membership role cache lookups by result",
			},
			[]string{"result"},
		),

		OrgMutationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orgportal_org_mutations_total",
				Help: "Organization and membership mutations by operation and status",
			},
			[]string{"operation", "status"},
		),

		SessionsPurgedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "orgportal_sessions_purged_total",
				Help: "Expired sessions removed by the janitor",
			},
		),

		DBConnectionsOpen: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "orgportal_db_connections_open",
				Help: "Number of open database connections",
			},
		),
		DBConnectionsInUse: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "orgportal_db_connections_in_use",
				Help: "Number of database connections in use",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "orgportal_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
	}

	if registry != nil {
		registry.MustRegister(
			m.HTTPRequestsTotal,
			m.HTTPRequestDuration,
			m.AuthzDecisionsTotal,
			m.RoleCacheLookupsTotal,
			m.OrgMutationsTotal,
			m.SessionsPurgedTotal,
			m.DBConnectionsOpen,
			m.DBConnectionsInUse,
			m.DBConnectionsIdle,
		)
	}

	return m
}

// RecordAuthzDecision counts one guard decision
func (m *Metrics) RecordAuthzDecision(guard, outcome string) {
	m.AuthzDecisionsTotal.WithLabelValues(guard, outcome).Inc()
}

// RecordRoleCache counts one role cache lookup
func (m *Metrics) RecordRoleCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.RoleCacheLookupsTotal.WithLabelValues(result).Inc()
}

// RecordOrgMutation counts one organization mutation
func (m *Metrics) RecordOrgMutation(operation string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.OrgMutationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordSessionsPurged adds n purged sessions
func (m *Metrics) RecordSessionsPurged(n int64) {
	if n > 0 {
		m.SessionsPurgedTotal.Add(float64(n))
	}
}

// UpdateDBStats copies connection pool statistics into the gauges
func (m *Metrics) UpdateDBStats(stats sql.DBStats) {
	m.DBConnectionsOpen.Set(float64(stats.OpenConnections))
	m.DBConnectionsInUse.Set(float64(stats.InUse))
	m.DBConnectionsIdle.Set(float64(stats.Idle))
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// routeLabel returns the matched route template so path parameters do not
// explode label cardinality.
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			route := routeLabel(r)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// MetricsHandler serves the registry in the Prometheus exposition format
func MetricsHandler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
