package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Git-Robbed/smells-phishy/internal/config"
)

type fakeRateLimitStore struct {
	allowed   bool
	remaining int64
	reset     time.Time
	err       error
	calls     int
}

func (f *fakeRateLimitStore) CheckRateLimit(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, time.Time, error) {
	f.calls++
	return f.allowed, f.remaining, f.reset, f.err
}

func runRateLimited(store *fakeRateLimitStore, req *http.Request) *httptest.ResponseRecorder {
	cfg := config.RateLimitConfig{Enabled: true, RequestsPerMinute: 60}
	handler := RateLimiter(store, cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestRateLimiter_Allowed(t *testing.T) {
	store := &fakeRateLimitStore{allowed: true, remaining: 59, reset: time.Now().Add(time.Minute)}

	rec := runRateLimited(store, httptest.NewRequest("POST", "/api/v1/scan", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "59", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))
}

func TestRateLimiter_Exceeded(t *testing.T) {
	store := &fakeRateLimitStore{allowed: false, remaining: 0, reset: time.Now().Add(30 * time.Second)}

	rec := runRateLimited(store, httptest.NewRequest("POST", "/api/v1/scan", nil))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "rate limit exceeded")
}

func TestRateLimiter_StoreErrorAllowsRequest(t *testing.T) {
	store := &fakeRateLimitStore{err: errors.New("redis: connection refused")}

	rec := runRateLimited(store, httptest.NewRequest("POST", "/api/v1/scan", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"), "no rate limit headers when the store is down")
	assert.Empty(t, rec.Header().Get("X-RateLimit-Remaining"))
}

func TestRateLimiter_SkipsOptions(t *testing.T) {
	store := &fakeRateLimitStore{allowed: true}

	rec := runRateLimited(store, httptest.NewRequest("OPTIONS", "/api/v1/scan", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, store.calls)
}

func TestGetClientID(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	assert.Equal(t, "ip:10.0.0.1:1234", getClientID(req))

	req.Header.Set("X-Real-IP", "203.0.113.9")
	assert.Equal(t, "ip:203.0.113.9", getClientID(req))

	req.Header.Set("X-Forwarded-For", "198.51.100.4")
	assert.Equal(t, "ip:198.51.100.4", getClientID(req))
}
