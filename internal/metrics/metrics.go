// Package metrics exposes Prometheus instrumentation for pipeline runs,
// fetches, and LLM calls.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "civicscanner"

// Metrics holds all service collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	RunsTotal         prometheus.Counter
	RunDuration       prometheus.Histogram
	DocumentsTotal    *prometheus.CounterVec
	StageFailures     *prometheus.CounterVec
	SummarizeDuration *prometheus.HistogramVec
	FallbackTotal     prometheus.Counter
	DiscoveredLinks   prometheus.Counter
	ActiveWorkers     prometheus.Gauge
}

// New registers the collectors on reg. Tests pass a fresh prometheus.NewRegistry.
func New(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		gatherer: reg,
		RunsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Pipeline runs started",
		}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a pipeline run",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		DocumentsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_total",
			Help:      "Documents processed by outcome",
		}, []string{"outcome"}),
		StageFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_failures_total",
			Help:      "Per-document failures by the stage that was reached",
		}, []string{"stage"}),
		SummarizeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "summarize_duration_seconds",
			Help:      "LLM completion latency",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 60},
		}, []string{"model"}),
		FallbackTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summarize_fallback_total",
			Help:      "Summaries retried on the fallback model",
		}),
		DiscoveredLinks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discovered_links_total",
			Help:      "Candidate URLs produced by discovery",
		}),
		ActiveWorkers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_workers",
			Help:      "Documents currently being processed",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// RunStarted counts a run and returns a func that observes its duration.
func (m *Metrics) RunStarted() func() {
	if m == nil {
		return func() {}
	}
	m.RunsTotal.Inc()
	start := time.Now()
	return func() { m.RunDuration.Observe(time.Since(start).Seconds()) }
}

// DocumentSucceeded records a persisted document.
func (m *Metrics) DocumentSucceeded() {
	if m == nil {
		return
	}
	m.DocumentsTotal.WithLabelValues("succeeded").Inc()
}

// DocumentFailed records a failure at stage.
func (m *Metrics) DocumentFailed(stage string) {
	if m == nil {
		return
	}
	m.DocumentsTotal.WithLabelValues("failed").Inc()
	m.StageFailures.WithLabelValues(stage).Inc()
}

// ObserveCompletion records one model call.
func (m *Metrics) ObserveCompletion(model string, d time.Duration) {
	if m == nil {
		return
	}
	m.SummarizeDuration.WithLabelValues(model).Observe(d.Seconds())
}

// FallbackUsed counts a retry on the fallback model.
func (m *Metrics) FallbackUsed() {
	if m == nil {
		return
	}
	m.FallbackTotal.Inc()
}

// LinksDiscovered adds n discovered candidates.
func (m *Metrics) LinksDiscovered(n int) {
	if m == nil {
		return
	}
	m.DiscoveredLinks.Add(float64(n))
}

// WorkerBusy tracks in-flight documents; call the returned func when done.
func (m *Metrics) WorkerBusy() func() {
	if m == nil {
		return func() {}
	}
	m.ActiveWorkers.Inc()
	return m.ActiveWorkers.Dec
}
