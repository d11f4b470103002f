// Package metrics holds the Prometheus collectors shared by cjm packages.
//
// Collectors register with the default registry; the HTTP server exposes
// them on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Result label values.
const (
	ResultOK        = "ok"
	ResultMalformed = "malformed"
	ResultError     = "error"
)

var (
	// ingestBatches counts ingest calls by result.
	ingestBatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cjm_ingest_batches_total",
		Help: "Total ingested batches by result",
	}, []string{"result"})

	// ingestSteps counts steps upserted by the ingestion pipeline.
	ingestSteps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cjm_ingest_steps_total",
		Help: "Total journey steps upserted",
	})

	// ingestDuration tracks batch ingest latency.
	ingestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cjm_ingest_duration_seconds",
		Help:    "Batch ingest duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
	})

	// graphNodes tracks graph size per build.
	graphNodes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cjm_graph_nodes",
		Help:    "Number of nodes per built journey graph",
		Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100, 500},
	})

	// graphPlaceholders counts placeholder nodes created for dangling hand-offs.
	graphPlaceholders = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cjm_graph_placeholder_nodes_total",
		Help: "Total placeholder nodes created for hand-offs to unknown steps",
	})

	// layoutDuration tracks spring layout latency.
	layoutDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cjm_layout_duration_seconds",
		Help:    "Spring layout duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14), // 0.1ms to ~1.6s
	})
)

// ObserveIngest records one ingest call.
func ObserveIngest(result string, steps int, elapsed time.Duration) {
	ingestBatches.WithLabelValues(result).Inc()
	ingestSteps.Add(float64(steps))
	ingestDuration.Observe(elapsed.Seconds())
}

// ObserveGraph records one graph build.
func ObserveGraph(nodes, placeholders int) {
	graphNodes.Observe(float64(nodes))
	graphPlaceholders.Add(float64(placeholders))
}

// ObserveLayout records one layout run.
func ObserveLayout(elapsed time.Duration) {
	layoutDuration.Observe(elapsed.Seconds())
}
