package etl

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for pipeline stages.
var (
	recordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "animal_etl_records_total",
		Help: "Records processed by pipeline stage (extracted, transformed, loaded)",
	}, []string{"stage"})

	recordFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "animal_etl_record_failures_total",
		Help: "Record failures by pipeline stage (transform, load)",
	}, []string{"stage"})

	batchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "animal_etl_batches_total",
		Help: "Batch submissions by outcome (submitted, failed)",
	}, []string{"status"})

	pagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "animal_etl_pages_total",
		Help: "Source list pages fetched",
	})

	runDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "animal_etl_run_duration_seconds",
		Help:    "Total pipeline run duration in seconds",
		Buckets: []float64{1, 5, 15, 60, 300, 900, 3600},
	})
)
