// Package metrics defines the Prometheus collectors shared by the indexing
// and query pipelines.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// EntriesIndexed counts entries successfully written to the collection.
	EntriesIndexed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pxlex_index_entries_total",
		Help: "Entries successfully indexed",
	})

	// EntriesFailed counts per-record indexing failures by stage.
	EntriesFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pxlex_index_entries_failed_total",
		Help: "Per-record indexing failures",
	}, []string{"stage"})

	// EmbedDuration tracks embedding service call latency.
	EmbedDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pxlex_embed_duration_seconds",
		Help:    "Embedding call latency",
		Buckets: prometheus.DefBuckets,
	})

	// SearchDuration tracks vector search latency.
	SearchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pxlex_search_duration_seconds",
		Help:    "Vector search latency",
		Buckets: prometheus.DefBuckets,
	})

	// GenerateDuration tracks chat completion latency.
	GenerateDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pxlex_generate_duration_seconds",
		Help:    "Answer generation latency",
		Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	})

	// Queries counts query pipeline outcomes.
	Queries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pxlex_queries_total",
		Help: "Query pipeline runs by outcome",
	}, []string{"outcome"})
)

// Handler exposes the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
