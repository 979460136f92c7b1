package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/bryanwahyu/retailsight/internal/domain/analysis"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	_, _ = w.Write([]byte("hello"))
})

func TestLogging(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := Logging(zap.New(core))(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/v1/features", nil)
	req.RemoteAddr = "10.0.0.7:5555"
	h.ServeHTTP(httptest.NewRecorder(), req)

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "/v1/features", fields["path"])
	assert.Equal(t, int64(200), fields["status"])
	assert.Equal(t, int64(5), fields["bytes"])
	assert.Equal(t, "10.0.0.7", fields["ip"])
}

func TestMetrics_RequestsAndAnalyses(t *testing.T) {
	m := NewMetrics()
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/fail" {
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/fail", nil))

	m.AnalysisStarted(analysis.KindShelfMonitoring)
	m.AnalysisFinished(analysis.KindShelfMonitoring, nil, 20*time.Millisecond)
	m.AnalysisStarted(analysis.KindTheftDetection)
	m.AnalysisFinished(analysis.KindTheftDetection, analysis.Errorf(analysis.ErrRateLimit, "generate", "quota"), time.Second)

	rec := httptest.NewRecorder()
	m.Handler(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	var got map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))

	assert.Equal(t, float64(2), got["requests_total"])
	assert.Equal(t, float64(1), got["requests_failed"])
	assert.Equal(t, float64(2), got["analyses_total"])
	assert.Equal(t, float64(0), got["analyses_running"])
	assert.Equal(t, float64(1), got["analyses_failed"])
	assert.Equal(t, map[string]any{analysis.ErrRateLimit.Error(): float64(1)}, got["failures_by_class"])
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	defer rl.Close()
	h := rl.Middleware(okHandler)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/v1/views/shelf_monitoring/analyze", nil)
		req.RemoteAddr = "192.0.2.1:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
		if rec.Code == http.StatusTooManyRequests {
			assert.NotEmpty(t, rec.Header().Get("Retry-After"))
		}
	}
	assert.Equal(t, []int{200, 200, 429}, codes)

	// another client has its own bucket
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.2:1234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimiter_EvictsIdleBuckets(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	defer rl.Close()
	now := time.Now()
	rl.now = func() time.Time { return now }
	rl.Allow("a")

	now = now.Add(idleTTL + time.Second)
	rl.evictIdle()
	rl.mu.Lock()
	assert.Empty(t, rl.buckets)
	rl.mu.Unlock()
}

func TestHealthHandler(t *testing.T) {
	h := HealthHandler(map[string]HealthChecker{
		"catalog": CheckerFunc(func(context.Context) error { return nil }),
		"objects": CheckerFunc(func(context.Context) error { return errors.New("bucket frames does not exist") }),
	})
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var got HealthStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, "unhealthy", got.Status)
	assert.Equal(t, "healthy", got.Checks["catalog"].Status)
	assert.Contains(t, got.Checks["objects"].Message, "frames")
}

type chatBody struct {
	Text string `json:"text" validate:"required,max=10"`
}

func TestDecodeJSON(t *testing.T) {
	var body chatBody
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"text":"where is the milk?"}`))
	err := DecodeJSON(req, &body, 1<<10)
	assert.ErrorIs(t, err, ErrValidation)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "max", verr.Fields["text"])

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"text":"hi","extra":1}`))
	assert.ErrorIs(t, DecodeJSON(req, &body, 1<<10), ErrValidation)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"text":"hi"}`))
	require.NoError(t, DecodeJSON(req, &body, 1<<10))
	assert.Equal(t, "hi", body.Text)
}

func TestValidateObjectKey(t *testing.T) {
	assert.NoError(t, ValidateObjectKey("store-12/aisle4/2026-03-01.jpg"))
	assert.NoError(t, ValidateObjectKey("aisle4/frame_001.jpg"))
	assert.ErrorIs(t, ValidateObjectKey(""), ErrValidation)
	assert.ErrorIs(t, ValidateObjectKey("../etc/passwd"), ErrValidation)
	assert.ErrorIs(t, ValidateObjectKey("a/../../b.jpg"), ErrValidation)
	assert.ErrorIs(t, ValidateObjectKey("a//b.jpg"), ErrValidation)
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "where is\tthe milk?", SanitizeString("  where is\tthe\x00 milk?\x07 "))
}
