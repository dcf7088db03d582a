package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by layer (memory, redis)
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ghub_cache_hits_total",
			Help: "Total number of user cache hits",
		},
		[]string{"layer"},
	)

	// CacheMisses tracks lookups found in no layer
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ghub_cache_misses_total",
			Help: "Total number of user cache misses",
		},
	)

	// CacheEntryAge tracks the age of users promoted from Redis
	CacheEntryAge = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ghub_cache_redis_entry_age_seconds",
			Help:    "Age of user records promoted from Redis into memory",
			Buckets: []float64{60, 3600, 86400, 7 * 86400, 30 * 86400},
		},
	)

	// CacheEntries tracks the number of users held in memory
	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ghub_cache_entries",
			Help: "Number of user records held in the memory cache",
		},
	)

	// CacheErrors tracks Redis operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ghub_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "decode"
	)
)
