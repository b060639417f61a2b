package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetricsPrivateRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordSessionCreated()
	m.RecordChunkReceived(2048)
	m.RecordChunkRejected("finalizing")
	m.RecordSessionFinalized(true, 12)
	m.RecordSummarization(true, 1.5)

	if got := testutil.ToFloat64(m.SessionsCreated); got != 1 {
		t.Errorf("Expected 1 session created, got %f", got)
	}
	if got := testutil.ToFloat64(m.SessionsFinalized.WithLabelValues("degraded")); got != 1 {
		t.Errorf("Expected 1 degraded finalization, got %f", got)
	}
	if got := testutil.ToFloat64(m.SummarizationFallbacks); got != 1 {
		t.Errorf("Expected 1 fallback, got %f", got)
	}

	// a second set on its own registry must not collide
	NewMetrics(prometheus.NewRegistry())
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordSessionCreated()
	m.SetActiveSessions(3)
	m.RecordHTTPRequest("GET", "/health", "200", 0.01)
	m.RecordReleaseFailure()
}
