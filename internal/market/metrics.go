package market

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	providerAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quote_provider_attempts_total",
			Help: "Quote provider attempts by outcome",
		},
		[]string{"provider", "outcome"},
	)

	providerLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quote_provider_latency_seconds",
			Help:    "Latency of quote provider calls that reached the network",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"provider"},
	)

	cacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quote_cache_lookups_total",
			Help: "Quote cache lookups by result",
		},
		[]string{"result"}, // "hit", "shared_hit", "miss"
	)
)
