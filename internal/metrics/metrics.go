// Package metrics holds the Prometheus collectors for generation sessions.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "modelchat"

// Metrics groups the collectors registered on Registry.
type Metrics struct {
	Registry *prometheus.Registry

	generationsTotal   *prometheus.CounterVec
	generationTokens   prometheus.Histogram
	generationDuration prometheus.Histogram
	fragmentsTotal     prometheus.Counter
	observerFailures   *prometheus.CounterVec
	queueDropped       *prometheus.CounterVec
	rejectionsTotal    *prometheus.CounterVec
}

// New creates the collectors on a fresh registry, together with the Go and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		generationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "generation",
				Name:      "total",
				Help:      "Finished generations by stop reason",
			},
			[]string{"stop_reason"},
		),
		generationTokens: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "generation",
				Name:      "tokens",
				Help:      "Tokens pulled per generation",
				Buckets:   []float64{1, 8, 32, 128, 256, 512, 1024, 2000, 4096},
			},
		),
		generationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "generation",
				Name:      "duration_seconds",
				Help:      "Wall time of a generation from prompt to stop",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
			},
		),
		fragmentsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "fanout",
				Name:      "fragments_total",
				Help:      "Fragments published to observers",
			},
		),
		observerFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "fanout",
				Name:      "observer_failures_total",
				Help:      "Observer calls that returned an error or panicked",
			},
			[]string{"observer"},
		),
		queueDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "fanout",
				Name:      "queue_dropped_total",
				Help:      "Fragments dropped because an observer queue was full",
			},
			[]string{"observer"},
		),
		rejectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "rejections_total",
				Help:      "Submissions rejected before generation started",
			},
			[]string{"reason"},
		),
	}
	m.Registry.MustRegister(
		m.generationsTotal, m.generationTokens, m.generationDuration,
		m.fragmentsTotal, m.observerFailures, m.queueDropped, m.rejectionsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveGeneration records one finished generation.
func (m *Metrics) ObserveGeneration(stopReason string, tokens int, d time.Duration) {
	if m == nil {
		return
	}
	m.generationsTotal.WithLabelValues(stopReason).Inc()
	m.generationTokens.Observe(float64(tokens))
	m.generationDuration.Observe(d.Seconds())
}

// IncFragments counts a published fragment.
func (m *Metrics) IncFragments() {
	if m == nil {
		return
	}
	m.fragmentsTotal.Inc()
}

// IncObserverFailure counts a failed observer call.
func (m *Metrics) IncObserverFailure(observer string) {
	if m == nil {
		return
	}
	m.observerFailures.WithLabelValues(observer).Inc()
}

// IncQueueDropped counts a fragment dropped by a queued observer.
func (m *Metrics) IncQueueDropped(observer string) {
	if m == nil {
		return
	}
	m.queueDropped.WithLabelValues(observer).Inc()
}

// IncRejected counts a rejected submission.
func (m *Metrics) IncRejected(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.rejectionsTotal.WithLabelValues(reason).Inc()
}
