package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// cacheHits tracks cache hits by region.
	cacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "artie_cache_hits_total",
			Help: "Total number of cache hits by region",
		},
		[]string{"region"},
	)

	// cacheMisses tracks cache misses by region.
	cacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "artie_cache_misses_total",
			Help: "Total number of cache misses by region",
		},
		[]string{"region"},
	)

	// cacheEvictions tracks removals by region and cause.
	cacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "artie_cache_evictions_total",
			Help: "Total number of cache evictions by region and cause",
		},
		[]string{"region", "cause"}, // cause: "expired", "capacity"
	)

	// cacheEntries tracks the current entry count by region.
	cacheEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "artie_cache_entries",
			Help: "Current number of cache entries by region",
		},
		[]string{"region"},
	)

	// cachePersistErrors tracks save/load failures.
	cachePersistErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "artie_cache_persist_errors_total",
			Help: "Total number of cache persistence errors by operation",
		},
		[]string{"operation"}, // "save", "load"
	)
)
