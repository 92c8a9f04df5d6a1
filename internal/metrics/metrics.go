// Package metrics tracks counters for a single scrape run: upstream requests,
// accepted pages, rate-limit pauses, errors by type and candles gathered per
// fetch window. A snapshot is logged when the run ends.
package metrics

import (
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// RunMetrics is safe for concurrent use.
type RunMetrics struct {
	// Atomic counters for thread-safe updates
	requests      int64
	pages         int64
	rateLimitHits int64
	errorCount    int64

	// Response time tracking
	totalResponseTime int64 // nanoseconds
	responseCount     int64

	mu            sync.RWMutex
	windowCandles map[string]int64
	windowStops   map[string]string
	errorsByType  map[string]int64
	startTime     time.Time
}

// Snapshot is a point-in-time copy of RunMetrics.
type Snapshot struct {
	Requests        int64             `json:"requests"`
	Pages           int64             `json:"pages"`
	RateLimitHits   int64             `json:"rate_limit_hits"`
	Errors          int64             `json:"errors"`
	ErrorsByType    map[string]int64  `json:"errors_by_type,omitempty"`
	AvgResponseTime time.Duration     `json:"avg_response_time"`
	WindowCandles   map[string]int64  `json:"window_candles"`
	WindowStops     map[string]string `json:"window_stops,omitempty"`
	Elapsed         time.Duration     `json:"elapsed"`
}

// NewRunMetrics creates an empty recorder whose clock starts now.
func NewRunMetrics() *RunMetrics {
	return &RunMetrics{
		windowCandles: make(map[string]int64),
		windowStops:   make(map[string]string),
		errorsByType:  make(map[string]int64),
		startTime:     time.Now(),
	}
}

// RecordRequest counts one upstream request and its latency.
func (m *RunMetrics) RecordRequest(duration time.Duration) {
	atomic.AddInt64(&m.requests, 1)
	atomic.AddInt64(&m.totalResponseTime, duration.Nanoseconds())
	atomic.AddInt64(&m.responseCount, 1)
}

// RecordPage counts an accepted page and the candles it kept for window.
func (m *RunMetrics) RecordPage(window string, kept int) {
	atomic.AddInt64(&m.pages, 1)

	m.mu.Lock()
	m.windowCandles[window] += int64(kept)
	m.mu.Unlock()
}

// RecordRateLimitHit counts one 429 pause.
func (m *RunMetrics) RecordRateLimitHit() {
	atomic.AddInt64(&m.rateLimitHits, 1)
}

// RecordError counts a failure under its classified type.
func (m *RunMetrics) RecordError(errorType string) {
	atomic.AddInt64(&m.errorCount, 1)

	m.mu.Lock()
	m.errorsByType[errorType]++
	m.mu.Unlock()
}

// RecordWindowStop remembers the terminal state of a window.
func (m *RunMetrics) RecordWindowStop(window, state string) {
	m.mu.Lock()
	m.windowStops[window] = state
	if _, ok := m.windowCandles[window]; !ok {
		m.windowCandles[window] = 0
	}
	m.mu.Unlock()
}

// Snapshot returns the current counters.
func (m *RunMetrics) Snapshot() Snapshot {
	s := Snapshot{
		Requests:      atomic.LoadInt64(&m.requests),
		Pages:         atomic.LoadInt64(&m.pages),
		RateLimitHits: atomic.LoadInt64(&m.rateLimitHits),
		Errors:        atomic.LoadInt64(&m.errorCount),
	}

	if n := atomic.LoadInt64(&m.responseCount); n > 0 {
		s.AvgResponseTime = time.Duration(atomic.LoadInt64(&m.totalResponseTime) / n)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	s.Elapsed = time.Since(m.startTime)
	s.WindowCandles = make(map[string]int64, len(m.windowCandles))
	for k, v := range m.windowCandles {
		s.WindowCandles[k] = v
	}
	if len(m.windowStops) > 0 {
		s.WindowStops = make(map[string]string, len(m.windowStops))
		for k, v := range m.windowStops {
			s.WindowStops[k] = v
		}
	}
	if len(m.errorsByType) > 0 {
		s.ErrorsByType = make(map[string]int64, len(m.errorsByType))
		for k, v := range m.errorsByType {
			s.ErrorsByType[k] = v
		}
	}
	return s
}

// Reset zeroes every counter and restarts the clock.
func (m *RunMetrics) Reset() {
	atomic.StoreInt64(&m.requests, 0)
	atomic.StoreInt64(&m.pages, 0)
	atomic.StoreInt64(&m.rateLimitHits, 0)
	atomic.StoreInt64(&m.errorCount, 0)
	atomic.StoreInt64(&m.totalResponseTime, 0)
	atomic.StoreInt64(&m.responseCount, 0)

	m.mu.Lock()
	m.windowCandles = make(map[string]int64)
	m.windowStops = make(map[string]string)
	m.errorsByType = make(map[string]int64)
	m.startTime = time.Now()
	m.mu.Unlock()
}

// LogAttrs flattens the snapshot into slog key/value pairs. Window entries
// are emitted in name order.
func (s Snapshot) LogAttrs() []any {
	attrs := []any{
		"requests", s.Requests,
		"pages", s.Pages,
		"rate_limit_hits", s.RateLimitHits,
		"errors", s.Errors,
		"avg_response_time", s.AvgResponseTime,
		"elapsed", s.Elapsed,
	}

	windows := make([]string, 0, len(s.WindowCandles))
	for name := range s.WindowCandles {
		windows = append(windows, name)
	}
	sort.Strings(windows)
	for _, name := range windows {
		group := []any{"candles", s.WindowCandles[name]}
		if stop, ok := s.WindowStops[name]; ok {
			group = append(group, "stop", stop)
		}
		attrs = append(attrs, slog.Group("window_"+name, group...))
	}
	return attrs
}
