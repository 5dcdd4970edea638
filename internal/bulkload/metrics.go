package bulkload

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transferAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bulkload_transfer_attempts_total",
		Help: "COPY transfers started, including retries after a conflict",
	}, []string{"table"})

	transferConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bulkload_conflicts_total",
		Help: "Unique violations absorbed by the conflict loop",
	}, []string{"table"})

	rowsLoaded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bulkload_rows_total",
		Help: "Rows handled by the loader by outcome (inserted, resolved, dropped)",
	}, []string{"table", "outcome"})

	transferDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bulkload_stage_duration_seconds",
		Help:    "Wall time of a full load stage including retries",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
	}, []string{"table"})
)
