package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func healthyDB(t *testing.T) *HealthChecker {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectPing()
	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	return NewHealthChecker(db, nil, false, "v1.2.3")
}

func TestHealthChecker_NoDependencies(t *testing.T) {
	status := NewHealthChecker(nil, nil, false, "dev").Check(context.Background())
	assert.Equal(t, StatusHealthy, status.Status)
	assert.Empty(t, status.Dependencies)
}

func TestHealthChecker_Database(t *testing.T) {
	status := healthyDB(t).Check(context.Background())
	assert.Equal(t, StatusHealthy, status.Status)
	assert.Equal(t, "v1.2.3", status.Version)
	assert.Equal(t, StatusHealthy, status.Dependencies["database"].Status)
}

func TestHealthChecker_DatabaseDown(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	status := NewHealthChecker(db, nil, false, "dev").Check(context.Background())
	assert.Equal(t, StatusUnhealthy, status.Status)
	assert.Equal(t, "connection refused", status.Dependencies["database"].Message)
}

func TestHealthChecker_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	status := NewHealthChecker(nil, client, false, "dev").Check(context.Background())
	assert.Equal(t, StatusHealthy, status.Status)

	mr.Close()
	status = NewHealthChecker(nil, client, false, "dev").Check(context.Background())
	assert.Equal(t, StatusDegraded, status.Status)
	assert.Equal(t, StatusUnhealthy, status.Dependencies["redis"].Status)

	status = NewHealthChecker(nil, client, true, "dev").Check(context.Background())
	assert.Equal(t, StatusUnhealthy, status.Status)
}

func TestHealthChecker_Handlers(t *testing.T) {
	checker := healthyDB(t)

	w := httptest.NewRecorder()
	checker.Liveness(w, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	checker.Readiness(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	var status HealthStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, StatusHealthy, status.Status)
}

func TestHealthChecker_ReadinessUnavailable(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectPing().WillReturnError(errors.New("down"))

	w := httptest.NewRecorder()
	NewHealthChecker(db, nil, false, "dev").Readiness(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
