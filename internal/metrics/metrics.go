// Package metrics exposes Prometheus instrumentation for the
// retrieval pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the pipeline's Prometheus collectors.
type Metrics struct {
	QueriesTotal    *prometheus.CounterVec
	AdapterFailures *prometheus.CounterVec
	RerankFallbacks prometheus.Counter
	QueryLatency    prometheus.Histogram

	registry *prometheus.Registry
}

// New creates and registers the collectors on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		QueriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "retrieval",
			Name:      "queries_total",
			Help:      "Retrieval queries by outcome.",
		}, []string{"status"}),
		AdapterFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "retrieval",
			Name:      "adapter_failures_total",
			Help:      "Absorbed adapter failures by adapter.",
		}, []string{"adapter"}),
		RerankFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "retrieval",
			Name:      "rerank_fallback_total",
			Help:      "Rerank passes that fell back to the merged order.",
		}),
		QueryLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "retrieval",
			Name:      "query_duration_seconds",
			Help:      "End-to-end retrieval latency.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		registry: registry,
	}

	registry.MustRegister(m.QueriesTotal, m.AdapterFailures, m.RerankFallbacks, m.QueryLatency)
	return m
}

// Registry returns the registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
