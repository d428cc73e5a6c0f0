package health

import (
	"errors"
	"testing"
)

func newTestMonitor() *Monitor {
	m := NewMonitor(1, 3, 5)
	m.Register("linear")
	m.Register("bucket")
	return m
}

func mustStatus(t *testing.T, m *Monitor, id string, want Status) {
	t.Helper()
	got, ok := m.Status(id)
	if !ok {
		t.Fatalf("engine %s not registered", id)
	}
	if got != want {
		t.Fatalf("status(%s) = %s, want %s", id, got, want)
	}
}

func TestRegisterStartsHealthy(t *testing.T) {
	m := newTestMonitor()
	mustStatus(t, m, "linear", StatusHealthy)
	if !m.Dispatchable("linear") {
		t.Error("healthy engine should be dispatchable")
	}
	if _, ok := m.Status("unknown"); ok {
		t.Error("unregistered engine should not report status")
	}
}

func TestDegradeOnWarnThreshold(t *testing.T) {
	m := newTestMonitor()
	m.RecordFailure("linear", errors.New("boom"))
	mustStatus(t, m, "linear", StatusDegraded)
	if !m.Dispatchable("linear") {
		t.Error("degraded engine should still be dispatchable")
	}
}

func TestFailOnFailoverThreshold(t *testing.T) {
	m := newTestMonitor()
	for i := 0; i < 3; i++ {
		m.RecordFailure("linear", errors.New("boom"))
	}
	mustStatus(t, m, "linear", StatusFailed)
	if m.Dispatchable("linear") {
		t.Error("failed engine must be excluded from dispatch")
	}
	if got := m.FailedEngines(); len(got) != 1 || got[0] != "linear" {
		t.Errorf("FailedEngines() = %v, want [linear]", got)
	}
}

func TestSuccessResetsFailureStreak(t *testing.T) {
	m := newTestMonitor()
	m.RecordFailure("linear", errors.New("boom"))
	m.RecordFailure("linear", errors.New("boom"))
	m.RecordSuccess("linear", 100)

	rec := m.Records()[0]
	if rec.ConsecutiveFailures != 0 {
		t.Errorf("consecutive failures = %d, want 0 after success", rec.ConsecutiveFailures)
	}
	// One more failure pair must not immediately fail the engine; the
	// streak restarted.
	m.RecordFailure("linear", errors.New("boom"))
	m.RecordFailure("linear", errors.New("boom"))
	mustStatus(t, m, "linear", StatusDegraded)
}

func TestLiveSuccessDoesNotReviveFailedEngine(t *testing.T) {
	m := newTestMonitor()
	for i := 0; i < 3; i++ {
		m.RecordFailure("linear", errors.New("boom"))
	}
	m.RecordSuccess("linear", 100)
	mustStatus(t, m, "linear", StatusFailed)
}

func TestProbeRecoversFailedEngine(t *testing.T) {
	m := newTestMonitor()
	for i := 0; i < 3; i++ {
		m.RecordFailure("linear", errors.New("boom"))
	}
	m.RecordProbeSuccess("linear")
	mustStatus(t, m, "linear", StatusDegraded)

	rec := m.Records()[0]
	if rec.ConsecutiveFailures != 0 {
		t.Errorf("probe recovery should reset failures, got %d", rec.ConsecutiveFailures)
	}
	if !m.Dispatchable("linear") {
		t.Error("recovered engine should be dispatchable again")
	}
}

func TestProbeIgnoredUnlessFailed(t *testing.T) {
	m := newTestMonitor()
	m.RecordFailure("linear", errors.New("boom"))
	m.RecordProbeSuccess("linear")
	mustStatus(t, m, "linear", StatusDegraded)
}

func TestRecoveryToHealthy(t *testing.T) {
	m := newTestMonitor()
	m.RecordFailure("linear", errors.New("boom"))
	mustStatus(t, m, "linear", StatusDegraded)

	for i := 0; i < 4; i++ {
		m.RecordSuccess("linear", 50)
		mustStatus(t, m, "linear", StatusDegraded)
	}
	m.RecordSuccess("linear", 50)
	mustStatus(t, m, "linear", StatusHealthy)
}

func TestInterveningFailureRestartsRecovery(t *testing.T) {
	m := newTestMonitor()
	m.RecordFailure("linear", errors.New("boom"))
	for i := 0; i < 4; i++ {
		m.RecordSuccess("linear", 50)
	}
	m.RecordFailure("linear", errors.New("boom"))
	for i := 0; i < 4; i++ {
		m.RecordSuccess("linear", 50)
	}
	mustStatus(t, m, "linear", StatusDegraded)
	m.RecordSuccess("linear", 50)
	mustStatus(t, m, "linear", StatusHealthy)
}

func TestRecordsSnapshot(t *testing.T) {
	m := newTestMonitor()
	m.RecordFailure("bucket", errors.New("io timeout"))
	m.RecordSuccess("linear", 200)

	recs := m.Records()
	if len(recs) != 2 {
		t.Fatalf("Records() len = %d, want 2", len(recs))
	}
	if recs[0].EngineID != "linear" || recs[1].EngineID != "bucket" {
		t.Errorf("records out of registration order: %v, %v", recs[0].EngineID, recs[1].EngineID)
	}
	if recs[1].LastError != "io timeout" {
		t.Errorf("last error = %q, want io timeout", recs[1].LastError)
	}
	if recs[0].AvgLatencyNs != 200 {
		t.Errorf("avg latency = %f, want 200", recs[0].AvgLatencyNs)
	}
}

func TestAggregate(t *testing.T) {
	m := newTestMonitor()
	m.RecordSuccess("linear", 100)
	m.RecordSuccess("bucket", 300)
	m.RecordFailure("bucket", errors.New("boom"))

	requests, failures, totalLatency, samples := m.Aggregate()
	if requests != 3 || failures != 1 {
		t.Errorf("Aggregate requests=%d failures=%d, want 3/1", requests, failures)
	}
	if totalLatency != 400 || samples != 2 {
		t.Errorf("Aggregate latency=%d samples=%d, want 400/2", totalLatency, samples)
	}
}
