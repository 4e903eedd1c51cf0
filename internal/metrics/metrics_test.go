package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveGeneration("end_marker", 3, time.Second)
	m.IncFragments()
	m.IncObserverFailure("speech")
	m.IncQueueDropped("speech")
	m.IncRejected("busy")
}

func TestMetrics_Counts(t *testing.T) {
	m := New()
	m.ObserveGeneration("end_marker", 5, 10*time.Millisecond)
	m.ObserveGeneration("end_marker", 7, 10*time.Millisecond)
	m.ObserveGeneration("cancelled", 1, time.Millisecond)
	m.IncFragments()
	m.IncFragments()
	m.IncObserverFailure("speech")
	m.IncQueueDropped("speech")
	m.IncRejected("")

	if got := testutil.ToFloat64(m.generationsTotal.WithLabelValues("end_marker")); got != 2 {
		t.Fatalf("end_marker generations = %v", got)
	}
	if got := testutil.ToFloat64(m.fragmentsTotal); got != 2 {
		t.Fatalf("fragments = %v", got)
	}
	if got := testutil.ToFloat64(m.observerFailures.WithLabelValues("speech")); got != 1 {
		t.Fatalf("observer failures = %v", got)
	}
	if got := testutil.ToFloat64(m.rejectionsTotal.WithLabelValues("unspecified")); got != 1 {
		t.Fatalf("rejections = %v", got)
	}
	if n := testutil.CollectAndCount(m.generationTokens); n != 1 {
		t.Fatalf("token histogram series = %d", n)
	}
	mfs, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(mfs) == 0 {
		t.Fatalf("nothing gathered")
	}
}
