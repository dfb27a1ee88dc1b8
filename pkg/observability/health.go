package observability

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// readinessTimeout bounds one readiness probe across all dependencies
const readinessTimeout = 5 * time.Second

// HealthStatus is the body of /health and /health/ready
type HealthStatus struct {
	Status       string                      `json:"status"`
	Timestamp    time.Time                   `json:"timestamp"`
	Version      string                      `json:"version,omitempty"`
	Dependencies map[string]DependencyStatus `json:"dependencies,omitempty"`
}

// DependencyStatus is the outcome of probing one dependency
type DependencyStatus struct {
	Status    string        `json:"status"`
	Message   string        `json:"message,omitempty"`
	Latency   time.Duration `json:"latency_ms,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// probe checks one dependency. A failing optional probe only degrades the
// overall status.
type probe struct {
	name     string
	optional bool
	check    func(ctx context.Context) (status string, err error)
}

// HealthChecker probes the portal's database and, when configured, the
// redis instance behind sessions and rate limiting.
type HealthChecker struct {
	probes  []probe
	version string
}

// NewHealthChecker builds a checker for db and redis, either of which may be
// nil. redisRequired marks redis as critical: the database session strategy
// only uses it for rate limiting, the redis strategy cannot serve without it.
func NewHealthChecker(db *sql.DB, redisClient *redis.Client, redisRequired bool, version string) *HealthChecker {
	h := &HealthChecker{version: version}
	if db != nil {
		h.probes = append(h.probes, probe{name: "database", check: databaseProbe(db)})
	}
	if redisClient != nil {
		h.probes = append(h.probes, probe{
			name:     "redis",
			optional: !redisRequired,
			check: func(ctx context.Context) (string, error) {
				if err := redisClient.Ping(ctx).Err(); err != nil {
					return StatusUnhealthy, err
				}
				return StatusHealthy, nil
			},
		})
	}
	return h
}

func databaseProbe(db *sql.DB) func(ctx context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		if err := db.PingContext(ctx); err != nil {
			return StatusUnhealthy, err
		}
		var one int
		if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
			return StatusUnhealthy, errors.New("query failed: " + err.Error())
		}
		// every guard performs a membership query; a saturated pool stalls them all
		if stats := db.Stats(); stats.MaxOpenConnections > 0 && stats.InUse >= stats.MaxOpenConnections {
			return StatusDegraded, errors.New("connection pool exhausted")
		}
		return StatusHealthy, nil
	}
}

// Check probes every dependency and folds the results into one status
func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	result := HealthStatus{
		Status:       StatusHealthy,
		Timestamp:    time.Now(),
		Version:      h.version,
		Dependencies: make(map[string]DependencyStatus, len(h.probes)),
	}

	for _, p := range h.probes {
		started := time.Now()
		status, err := p.check(ctx)
		dep := DependencyStatus{Status: status, Latency: time.Since(started), Timestamp: started}
		if err != nil {
			dep.Message = err.Error()
		}
		result.Dependencies[p.name] = dep

		if p.optional && status == StatusUnhealthy {
			status = StatusDegraded
		}
		result.Status = worse(result.Status, status)
	}

	return result
}

func worse(a, b string) string {
	rank := map[string]int{StatusHealthy: 0, StatusDegraded: 1, StatusUnhealthy: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}

// Liveness answers 200 while the process is serving
func (h *HealthChecker) Liveness(w http.ResponseWriter, r *http.Request) {
	writeHealth(w, http.StatusOK, map[string]interface{}{
		"status":    StatusHealthy,
		"timestamp": time.Now(),
	})
}

// Readiness answers 503 when a critical dependency is unhealthy
func (h *HealthChecker) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	status := h.Check(ctx)
	code := http.StatusOK
	if status.Status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	writeHealth(w, code, status)
}

func writeHealth(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}
