package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNew_RegistersOnPrivateRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.SessionsStarted.Inc()
	m.Heartbeats.WithLabelValues("accepted").Inc()
	m.Heartbeats.WithLabelValues("accepted").Inc()

	if got := testutil.ToFloat64(m.SessionsStarted); got != 1 {
		t.Fatalf("expected 1 started session, got %v", got)
	}
	if got := testutil.ToFloat64(m.Heartbeats.WithLabelValues("accepted")); got != 2 {
		t.Fatalf("expected 2 accepted heartbeats, got %v", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	if len(families) == 0 {
		t.Fatalf("expected registered metric families")
	}
}

func TestNew_TwoInstancesDoNotCollide(t *testing.T) {
	New(prometheus.NewRegistry())
	New(prometheus.NewRegistry())
	NewNop()
	NewNop()
}
