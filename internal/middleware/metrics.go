package middleware

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"
)

// Metrics stores application metrics
type Metrics struct {
	RequestsTotal      atomic.Uint64
	RequestsInProgress atomic.Int64
	RequestsSuccess    atomic.Uint64
	RequestsFailed     atomic.Uint64

	SessionsOpened    atomic.Uint64
	SessionsOpen      atomic.Int64
	AnalysesCompleted atomic.Uint64
	AnalysesFailed    atomic.Uint64
	AdvisoryFallbacks atomic.Uint64
	ChatFallbacks     atomic.Uint64

	StartTime time.Time
}

func NewMetrics() *Metrics {
	return &Metrics{StartTime: time.Now()}
}

// session lifecycle, called by the sessions registry

func (m *Metrics) SessionOpened() {
	m.SessionsOpened.Add(1)
	m.SessionsOpen.Add(1)
}

func (m *Metrics) SessionClosed()     { m.SessionsOpen.Add(-1) }
func (m *Metrics) AnalysisCompleted() { m.AnalysesCompleted.Add(1) }
func (m *Metrics) AnalysisFailed()    { m.AnalysesFailed.Add(1) }

// Fallback counts a locally substituted advisory or chat reply.
func (m *Metrics) Fallback(op string) {
	switch op {
	case "advisory":
		m.AdvisoryFallbacks.Add(1)
	case "chat":
		m.ChatFallbacks.Add(1)
	}
}

// Snapshot returns current metrics
func (m *Metrics) Snapshot() map[string]interface{} {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	return map[string]interface{}{
		"requests_total":       m.RequestsTotal.Load(),
		"requests_in_progress": m.RequestsInProgress.Load(),
		"requests_success":     m.RequestsSuccess.Load(),
		"requests_failed":      m.RequestsFailed.Load(),
		"sessions_opened":      m.SessionsOpened.Load(),
		"sessions_open":        m.SessionsOpen.Load(),
		"analyses_completed":   m.AnalysesCompleted.Load(),
		"analyses_failed":      m.AnalysesFailed.Load(),
		"advisory_fallbacks":   m.AdvisoryFallbacks.Load(),
		"chat_fallbacks":       m.ChatFallbacks.Load(),
		"uptime_seconds":       time.Since(m.StartTime).Seconds(),
		"memory": map[string]interface{}{
			"alloc_bytes":       ms.Alloc,
			"total_alloc_bytes": ms.TotalAlloc,
			"sys_bytes":         ms.Sys,
			"num_gc":            ms.NumGC,
		},
		"goroutines": runtime.NumGoroutine(),
	}
}

// Middleware tracks request metrics
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.RequestsTotal.Add(1)
		m.RequestsInProgress.Add(1)
		defer m.RequestsInProgress.Add(-1)

		wrapped := wrapWriter(w)
		next.ServeHTTP(wrapped, r)

		// Track success/failure based on status code
		if wrapped.statusCode >= 200 && wrapped.statusCode < 400 {
			m.RequestsSuccess.Add(1)
		} else {
			m.RequestsFailed.Add(1)
		}
	})
}

// Handler returns metrics as JSON
func (m *Metrics) Handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(m.Snapshot())
}
