package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	statusSuccess  = "success"
	statusFailure  = "failure"
	statusCanceled = "canceled"
)

// metrics is a container of metrics for an engine.
type metrics struct {
	queries *prometheus.CounterVec
	batches prometheus.Counter
	rows    prometheus.Counter

	queryDuration prometheus.Histogram
}

func newMetrics(r prometheus.Registerer) *metrics {
	return &metrics{
		queries: promauto.With(r).NewCounterVec(prometheus.CounterOpts{
			Name: "tabular_engine_queries_total",
			Help: "Total number of executed queries by status",
		}, []string{"status"}),
		batches: promauto.With(r).NewCounter(prometheus.CounterOpts{
			Name: "tabular_engine_batches_total",
			Help: "Total number of batches returned by queries",
		}),
		rows: promauto.With(r).NewCounter(prometheus.CounterOpts{
			Name: "tabular_engine_rows_total",
			Help: "Total number of rows returned by queries",
		}),
		queryDuration: promauto.With(r).NewHistogram(prometheus.HistogramOpts{
			Name:    "tabular_engine_query_duration_seconds",
			Help:    "Time spent executing queries, from the first read until the pipeline is exhausted, fails or is closed",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
