package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks detail cache hits
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "animal_detail_cache_hits_total",
			Help: "Total number of animal detail cache hits",
		},
	)

	// CacheMisses tracks detail cache misses
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "animal_detail_cache_misses_total",
			Help: "Total number of animal detail cache misses",
		},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "animal_detail_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)
)
