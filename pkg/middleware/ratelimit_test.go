package middleware

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/orgportal/pkg/contextkeys"
	"github.com/platinummonkey/orgportal/pkg/observability"
)

func TestRateLimiter_Allow(t *testing.T) {
	config := RateLimitConfig{
		RequestsPerWindow: 10,
		WindowDuration:    time.Second,
		BurstSize:         2,
	}
	limiter := NewRateLimiter(config)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }
	ctx := context.Background()

	allowedCount := 0
	for i := 0; i < config.RequestsPerWindow+config.BurstSize+5; i++ {
		if ok, _ := limiter.Allow(ctx, "user:1"); ok {
			allowedCount++
		}
	}
	assert.Equal(t, config.RequestsPerWindow+config.BurstSize, allowedCount)

	// other keys have their own bucket
	ok, err := limiter.Allow(ctx, "user:2")
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(time.Second)
	ok, _ = limiter.Allow(ctx, "user:1")
	assert.True(t, ok, "should allow request after refill")
}

func TestRateLimiter_Cleanup(t *testing.T) {
	limiter := NewRateLimiter(RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute})
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	limiter.Allow(context.Background(), "user:1")
	require.Len(t, limiter.buckets, 1)

	now = now.Add(3 * time.Minute)
	limiter.Cleanup()
	assert.Empty(t, limiter.buckets)
}

func setupRedisLimiter(t *testing.T, limit int) (*DistributedRateLimiter, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewDistributedRateLimiter(client, RateLimitConfig{RequestsPerWindow: limit, WindowDuration: time.Minute}, ""), mr
}

func TestDistributedRateLimiter_Allow(t *testing.T) {
	limiter, mr := setupRedisLimiter(t, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := limiter.Allow(ctx, "user:1")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := limiter.Allow(ctx, "user:1")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, time.Minute, mr.TTL("orgportal:ratelimit:user:1"))

	mr.FastForward(time.Minute)
	ok, err = limiter.Allow(ctx, "user:1")
	require.NoError(t, err)
	assert.True(t, ok, "new window after expiry")

	require.NoError(t, limiter.Reset(ctx, "user:1"))
	assert.False(t, mr.Exists("orgportal:ratelimit:user:1"))
}

func TestDistributedRateLimiter_CounterWithoutExpiry(t *testing.T) {
	limiter, mr := setupRedisLimiter(t, 3)
	ctx := context.Background()

	// a counter left behind without a TTL must not block the key forever
	require.NoError(t, mr.Set("orgportal:ratelimit:user:1", "5"))
	require.Zero(t, mr.TTL("orgportal:ratelimit:user:1"))

	ok, err := limiter.Allow(ctx, "user:1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, time.Minute, mr.TTL("orgportal:ratelimit:user:1"))

	mr.FastForward(time.Minute)
	ok, err = limiter.Allow(ctx, "user:1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDistributedRateLimiter_WindowNotExtended(t *testing.T) {
	limiter, mr := setupRedisLimiter(t, 3)
	ctx := context.Background()

	_, err := limiter.Allow(ctx, "user:1")
	require.NoError(t, err)
	mr.FastForward(40 * time.Second)
	_, err = limiter.Allow(ctx, "user:1")
	require.NoError(t, err)

	assert.Equal(t, 20*time.Second, mr.TTL("orgportal:ratelimit:user:1"))
}

func TestDistributedRateLimiter_RedisDown(t *testing.T) {
	limiter, mr := setupRedisLimiter(t, 3)
	mr.Close()

	ok, err := limiter.Allow(context.Background(), "user:1")
	assert.Error(t, err)
	assert.True(t, ok)
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := NewRateLimiter(RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute})
	logger := observability.NewLogger(observability.InfoLevel, io.Discard)
	handler := RateLimit(limiter, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	request := func(userID string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/organizations/create", nil)
		if userID != "" {
			req = req.WithContext(contextkeys.WithUserID(req.Context(), userID))
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusNoContent, request("user-1").Code)

	rec := request("user-1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"Too many requests"}`, rec.Body.String())

	assert.Equal(t, http.StatusNoContent, request("user-2").Code)
	assert.Equal(t, http.StatusNoContent, request("").Code, "anonymous requests are keyed by IP")
}

func TestRateLimitMiddleware_FailsOpen(t *testing.T) {
	limiter, mr := setupRedisLimiter(t, 1)
	mr.Close()

	logger := observability.NewLogger(observability.InfoLevel, io.Discard)
	handler := RateLimit(limiter, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, "10.0.0.2:1234", "203.0.113.7"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.4"}, "10.0.0.2:1234", "198.51.100.4"},
		{"remote addr", nil, "192.0.2.1:5555", "192.0.2.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, getClientIP(req))
		})
	}
}
