package middleware

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bryanwahyu/retailsight/internal/domain/analysis"
)

// Metrics stores application metrics. It doubles as the observer of the
// analysis service.
type Metrics struct {
	RequestsTotal      uint64
	RequestsInProgress uint64
	RequestsSuccess    uint64
	RequestsFailed     uint64
	AnalysesTotal      uint64
	AnalysesRunning    uint64
	AnalysesFailed     uint64
	StartTime          time.Time

	mu      sync.Mutex
	byKind  map[analysis.Kind]uint64
	byClass map[string]uint64
	latency map[analysis.Kind]time.Duration
}

func NewMetrics() *Metrics {
	return &Metrics{
		StartTime: time.Now(),
		byKind:    make(map[analysis.Kind]uint64),
		byClass:   make(map[string]uint64),
		latency:   make(map[analysis.Kind]time.Duration),
	}
}

// AnalysisStarted increments total and running analyses
func (m *Metrics) AnalysisStarted(kind analysis.Kind) {
	atomic.AddUint64(&m.AnalysesTotal, 1)
	atomic.AddUint64(&m.AnalysesRunning, 1)
	m.mu.Lock()
	m.byKind[kind]++
	m.mu.Unlock()
}

// AnalysisFinished decrements running analyses and counts failures by class
func (m *Metrics) AnalysisFinished(kind analysis.Kind, err error, elapsed time.Duration) {
	atomic.AddUint64(&m.AnalysesRunning, ^uint64(0))
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latency[kind] = elapsed
	if err == nil {
		return
	}
	atomic.AddUint64(&m.AnalysesFailed, 1)
	class := "unclassified"
	if c := analysis.ClassOf(err); c != nil {
		class = c.Error()
	}
	m.byClass[class]++
}

// Snapshot returns current metrics
func (m *Metrics) Snapshot() map[string]any {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	m.mu.Lock()
	byKind := make(map[string]uint64, len(m.byKind))
	for k, v := range m.byKind {
		byKind[k.String()] = v
	}
	byClass := make(map[string]uint64, len(m.byClass))
	for k, v := range m.byClass {
		byClass[k] = v
	}
	lastMS := make(map[string]int64, len(m.latency))
	for k, v := range m.latency {
		lastMS[k.String()] = v.Milliseconds()
	}
	m.mu.Unlock()

	return map[string]any{
		"requests_total":       atomic.LoadUint64(&m.RequestsTotal),
		"requests_in_progress": atomic.LoadUint64(&m.RequestsInProgress),
		"requests_success":     atomic.LoadUint64(&m.RequestsSuccess),
		"requests_failed":      atomic.LoadUint64(&m.RequestsFailed),
		"analyses_total":       atomic.LoadUint64(&m.AnalysesTotal),
		"analyses_running":     atomic.LoadUint64(&m.AnalysesRunning),
		"analyses_failed":      atomic.LoadUint64(&m.AnalysesFailed),
		"analyses_by_kind":     byKind,
		"failures_by_class":    byClass,
		"last_latency_ms":      lastMS,
		"uptime_seconds":       time.Since(m.StartTime).Seconds(),
		"memory": map[string]any{
			"alloc_bytes":       mem.Alloc,
			"total_alloc_bytes": mem.TotalAlloc,
			"sys_bytes":         mem.Sys,
			"num_gc":            mem.NumGC,
		},
		"goroutines": runtime.NumGoroutine(),
	}
}

// Middleware tracks request metrics
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddUint64(&m.RequestsTotal, 1)
		atomic.AddUint64(&m.RequestsInProgress, 1)
		defer atomic.AddUint64(&m.RequestsInProgress, ^uint64(0))

		wrapped := wrapWriter(w)
		next.ServeHTTP(wrapped, r)

		if wrapped.statusCode >= 200 && wrapped.statusCode < 400 {
			atomic.AddUint64(&m.RequestsSuccess, 1)
		} else {
			atomic.AddUint64(&m.RequestsFailed, 1)
		}
	})
}

// Handler returns metrics as JSON
func (m *Metrics) Handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(m.Snapshot())
}
