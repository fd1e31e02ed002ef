package gateway

import (
	"sync/atomic"
	"time"
)

// Metrics tracks gateway-level counters using atomic operations for lock-free concurrency.
// They back /status; Prometheus series live in telemetry.Metrics.
type Metrics struct {
	requests     atomic.Int64
	calls        atomic.Int64
	failures     atomic.Int64
	batches      atomic.Int64
	rateLimited  atomic.Int64
	errors       atomic.Int64
	totalLatency atomic.Int64 // nanoseconds
}

// RecordRequest records an inbound HTTP request.
func (m *Metrics) RecordRequest() {
	m.requests.Add(1)
}

// RecordCall records one tool call and whether it failed.
func (m *Metrics) RecordCall(failed bool, latency time.Duration) {
	m.calls.Add(1)
	if failed {
		m.failures.Add(1)
	}
	m.totalLatency.Add(int64(latency))
}

// RecordBatch records a batch request.
func (m *Metrics) RecordBatch() {
	m.batches.Add(1)
}

// RecordRateLimited records a request refused by the rate limiter.
func (m *Metrics) RecordRateLimited() {
	m.rateLimited.Add(1)
}

// RecordError records a recovered handler panic.
func (m *Metrics) RecordError() {
	m.errors.Add(1)
}

// Snapshot returns a consistent point-in-time view of the counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	calls := m.calls.Load()
	snap := MetricsSnapshot{
		Requests:    m.requests.Load(),
		Calls:       calls,
		Failures:    m.failures.Load(),
		Batches:     m.batches.Load(),
		RateLimited: m.rateLimited.Load(),
		Errors:      m.errors.Load(),
	}
	if calls > 0 {
		snap.AvgLatency = time.Duration(m.totalLatency.Load() / calls)
	}
	return snap
}

// MetricsSnapshot is a serializable point-in-time metrics view.
type MetricsSnapshot struct {
	Requests    int64         `json:"requests"`
	Calls       int64         `json:"tool_calls"`
	Failures    int64         `json:"tool_failures"`
	Batches     int64         `json:"batches"`
	RateLimited int64         `json:"rate_limited"`
	Errors      int64         `json:"errors"`
	AvgLatency  time.Duration `json:"avg_latency_ns"`
}
