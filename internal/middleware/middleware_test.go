package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iyunix/go-rigadvisor/internal/middleware"
	"github.com/iyunix/go-rigadvisor/internal/ratelimit"
)

type entry struct {
	level string
	msg   string
	kv    []interface{}
}

type captureLogger struct {
	mu      sync.Mutex
	entries []entry
}

func (l *captureLogger) add(level, msg string, kv []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry{level, msg, kv})
}

func (l *captureLogger) Info(msg string, kv ...interface{})  { l.add("info", msg, kv) }
func (l *captureLogger) Error(msg string, kv ...interface{}) { l.add("error", msg, kv) }
func (l *captureLogger) Debug(msg string, kv ...interface{}) { l.add("debug", msg, kv) }
func (l *captureLogger) Warn(msg string, kv ...interface{})  { l.add("warn", msg, kv) }

func field(kv []interface{}, key string) interface{} {
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i] == key {
			return kv[i+1]
		}
	}
	return nil
}

func TestLoggingMiddleware_CapturesStatus(t *testing.T) {
	logger := &captureLogger{}
	h := middleware.RequestID(middleware.LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/plans/pro/suggestion", nil))

	require.Len(t, logger.entries, 1)
	e := logger.entries[0]
	assert.Equal(t, "error", e.level)
	assert.Equal(t, http.StatusBadGateway, field(e.kv, "status"))
	assert.Equal(t, "/api/plans/pro/suggestion", field(e.kv, "path"))
	assert.Equal(t, rec.Header().Get(middleware.RequestIDHeader), field(e.kv, "http_request_id"))
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))
}

func TestRequestID_ReusesIncomingHeader(t *testing.T) {
	var seen string
	h := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = middleware.RequestIDFrom(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(middleware.RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", rec.Header().Get(middleware.RequestIDHeader))
}

func TestLoggingMiddleware_KeepsFlusher(t *testing.T) {
	var flushable bool
	h := middleware.LoggingMiddleware(&captureLogger{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, flushable = w.(http.Flusher)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/events", nil))
	assert.True(t, flushable)
}

func TestRecoverPanic(t *testing.T) {
	logger := &captureLogger{}
	h := middleware.RecoverPanic(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Len(t, logger.entries, 1)
	assert.Equal(t, "boom", field(logger.entries[0].kv, "panic"))
}

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	h := middleware.CORS([]string{"https://loja.example"})(next)

	pre := httptest.NewRequest(http.MethodOptions, "/api/plans", nil)
	pre.Header.Set("Origin", "https://loja.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, pre)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://loja.example", rec.Header().Get("Access-Control-Allow-Origin"))

	other := httptest.NewRequest(http.MethodGet, "/api/plans", nil)
	other.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, other)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	rec = httptest.NewRecorder()
	middleware.CORS([]string{"*"})(next).ServeHTTP(rec, other)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := ratelimit.NewMemoryRateLimiter(ratelimit.DefaultTriggerConfig(1, time.Minute))
	defer limiter.Close()
	logger := &captureLogger{}
	h := middleware.RateLimitMiddleware(limiter, "suggestion", logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/plans/basic/suggestion", nil)
	req.RemoteAddr = "198.51.100.4:1234"

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "Too many requests")
	require.Len(t, logger.entries, 1)
	assert.Equal(t, "warn", logger.entries[0].level)
}
