// Package observability exposes Prometheus instrumentation for the chatflow
// core. A single Metrics value is shared by the workflow engine and the
// intent classifier; all methods are nil-safe so instrumentation stays
// optional.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics aggregates the core's Prometheus collectors.
type Metrics struct {
	stepsTotal         *prometheus.CounterVec
	stepDuration       *prometheus.HistogramVec
	classifications    *prometheus.CounterVec
	classifyDuration   prometheus.Histogram
	cacheHits          prometheus.Counter
	activeContexts     prometheus.Gauge
	validationFailures *prometheus.CounterVec
}

// NewMetrics creates and registers the collectors on the given registerer.
// Pass prometheus.DefaultRegisterer for the global registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		stepsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatflow",
			Name:      "workflow_steps_total",
			Help:      "Workflow steps executed, by workflow and outcome.",
		}, []string{"workflow", "outcome"}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "chatflow",
			Name:      "workflow_step_duration_seconds",
			Help:      "Duration of workflow step execution.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"workflow"}),
		classifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatflow",
			Name:      "classifications_total",
			Help:      "Intent classifications, by method.",
		}, []string{"method"}),
		classifyDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "chatflow",
			Name:      "classification_duration_seconds",
			Help:      "Duration of intent classification.",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5},
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chatflow",
			Name:      "classification_cache_hits_total",
			Help:      "Classification results served from the cache.",
		}),
		activeContexts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chatflow",
			Name:      "active_contexts",
			Help:      "Workflow contexts currently active.",
		}),
		validationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatflow",
			Name:      "validation_failures_total",
			Help:      "Validation failures, by workflow.",
		}, []string{"workflow"}),
	}

	reg.MustRegister(
		m.stepsTotal,
		m.stepDuration,
		m.classifications,
		m.classifyDuration,
		m.cacheHits,
		m.activeContexts,
		m.validationFailures,
	)
	return m
}

// ObserveStep records one executed step.
func (m *Metrics) ObserveStep(workflow, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.stepsTotal.WithLabelValues(workflow, outcome).Inc()
	m.stepDuration.WithLabelValues(workflow).Observe(d.Seconds())
}

// ObserveClassification records one classification.
func (m *Metrics) ObserveClassification(method string, d time.Duration) {
	if m == nil {
		return
	}
	m.classifications.WithLabelValues(method).Inc()
	m.classifyDuration.Observe(d.Seconds())
}

// ObserveCacheHit records a classification cache hit.
func (m *Metrics) ObserveCacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}

// ContextStarted increments the live context gauge.
func (m *Metrics) ContextStarted() {
	if m == nil {
		return
	}
	m.activeContexts.Inc()
}

// ContextFinished decrements the live context gauge.
func (m *Metrics) ContextFinished() {
	if m == nil {
		return
	}
	m.activeContexts.Dec()
}

// ObserveValidationFailure records a user input rejected by validation.
func (m *Metrics) ObserveValidationFailure(workflow string) {
	if m == nil {
		return
	}
	m.validationFailures.WithLabelValues(workflow).Inc()
}
