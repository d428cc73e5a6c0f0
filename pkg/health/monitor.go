// Package health tracks per-engine rolling success/failure state and
// classifies each engine as healthy, degraded, or failed.
package health

import (
	"sync"
	"time"

	"github.com/softtcam-network/softtcam/pkg/util"
)

// Status represents the health classification of an engine
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
	StatusFailed   Status = "failed"
)

// Record is the rolling health state of one engine.
type Record struct {
	EngineID            string    `json:"engine_id"`
	Status              Status    `json:"status"`
	ConsecutiveFailures uint32    `json:"consecutive_failures"`
	TotalRequests       uint64    `json:"total_requests"`
	FailedRequests      uint64    `json:"failed_requests"`
	AvgLatencyNs        float64   `json:"avg_latency_ns"`
	LastError           string    `json:"last_error,omitempty"`
	LastTransition      time.Time `json:"last_transition"`
}

// Monitor owns one record per registered engine. The control plane is the
// single writer; status and metrics queries read concurrently.
//
// Transitions: reaching the warn threshold of consecutive failures marks
// an engine degraded, reaching the failover threshold marks it failed and
// removes it from dispatch. A failed engine re-enters rotation only
// through a successful out-of-band probe (failed -> degraded), and a
// degraded engine becomes healthy again after enough consecutive live
// successes. Any live success resets the failure streak unless the engine
// is already failed, so a failed engine cannot flap back in on its own.
type Monitor struct {
	warnThreshold     uint32
	failoverThreshold uint32
	recoverySuccesses uint32

	mu      sync.RWMutex
	records map[string]*record
	order   []string
}

// record carries the internal streak counters alongside the public state.
type record struct {
	Record
	consecutiveSuccesses uint32
	totalLatencyNs       int64
	latencySamples       uint64
}

// NewMonitor creates a monitor with the given thresholds.
func NewMonitor(warnThreshold, failoverThreshold, recoverySuccesses uint32) *Monitor {
	return &Monitor{
		warnThreshold:     warnThreshold,
		failoverThreshold: failoverThreshold,
		recoverySuccesses: recoverySuccesses,
		records:           make(map[string]*record),
	}
}

// Register creates a healthy record for an engine. Registration order is
// preserved in Records snapshots.
func (m *Monitor) Register(engineID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[engineID]; ok {
		return
	}
	m.records[engineID] = &record{Record: Record{
		EngineID:       engineID,
		Status:         StatusHealthy,
		LastTransition: time.Now(),
	}}
	m.order = append(m.order, engineID)
}

// RecordSuccess notes a successful live operation against an engine.
// A non-positive latency records the outcome without a latency sample.
func (m *Monitor) RecordSuccess(engineID string, latencyNs int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[engineID]
	if !ok {
		return
	}
	r.TotalRequests++
	if latencyNs > 0 {
		r.totalLatencyNs += latencyNs
		r.latencySamples++
		r.AvgLatencyNs = float64(r.totalLatencyNs) / float64(r.latencySamples)
	}

	if r.Status == StatusFailed {
		// Only the probe path brings a failed engine back.
		return
	}
	r.ConsecutiveFailures = 0
	r.consecutiveSuccesses++
	if r.Status == StatusDegraded && r.consecutiveSuccesses >= m.recoverySuccesses {
		m.transition(r, StatusHealthy)
	}
}

// RecordFailure notes a failed operation against an engine.
func (m *Monitor) RecordFailure(engineID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[engineID]
	if !ok {
		return
	}
	r.TotalRequests++
	r.FailedRequests++
	r.ConsecutiveFailures++
	r.consecutiveSuccesses = 0
	if err != nil {
		r.LastError = err.Error()
	}

	switch {
	case r.ConsecutiveFailures >= m.failoverThreshold:
		if r.Status != StatusFailed {
			m.transition(r, StatusFailed)
		}
	case r.ConsecutiveFailures >= m.warnThreshold:
		if r.Status == StatusHealthy {
			m.transition(r, StatusDegraded)
		}
	}
}

// RecordProbeSuccess notes a successful canary probe, returning a failed
// engine to degraded with its failure streak cleared.
func (m *Monitor) RecordProbeSuccess(engineID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[engineID]
	if !ok || r.Status != StatusFailed {
		return
	}
	r.ConsecutiveFailures = 0
	r.consecutiveSuccesses = 0
	m.transition(r, StatusDegraded)
}

func (m *Monitor) transition(r *record, to Status) {
	util.WithEngine(r.EngineID).Infof("Health transition %s -> %s (failures=%d)",
		r.Status, to, r.ConsecutiveFailures)
	r.Status = to
	r.LastTransition = time.Now()
}

// Status returns one engine's classification.
func (m *Monitor) Status(engineID string) (Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[engineID]
	if !ok {
		return "", false
	}
	return r.Status, true
}

// Dispatchable reports whether an engine may receive live traffic.
func (m *Monitor) Dispatchable(engineID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[engineID]
	return ok && r.Status != StatusFailed
}

// Records returns a snapshot of every record in registration order.
func (m *Monitor) Records() []Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Record, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.records[id].Record)
	}
	return out
}

// Aggregate sums request, failure, and latency totals across all engines
// for plane-level metrics.
func (m *Monitor) Aggregate() (requests, failures uint64, totalLatencyNs int64, latencySamples uint64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.records {
		requests += r.TotalRequests
		failures += r.FailedRequests
		totalLatencyNs += r.totalLatencyNs
		latencySamples += r.latencySamples
	}
	return requests, failures, totalLatencyNs, latencySamples
}

// FailedEngines returns the IDs of engines currently excluded from
// dispatch, in registration order.
func (m *Monitor) FailedEngines() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for _, id := range m.order {
		if m.records[id].Status == StatusFailed {
			out = append(out, id)
		}
	}
	return out
}
