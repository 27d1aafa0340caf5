package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Pool metrics
	PoolCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "quote_engine_pool_count",
		Help: "Total number of pools in the registry",
	})

	ReadyPoolCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "quote_engine_ready_pool_count",
		Help: "Number of active pools with a usable curve snapshot",
	})

	PoolUpdates = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quote_engine_pool_updates_total",
		Help: "Total number of pool snapshot upserts",
	})

	PoolPersistFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quote_engine_pool_persist_failures_total",
		Help: "Total number of pool snapshots that failed to persist",
	})

	// Quote metrics
	QuoteRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quote_engine_quote_requests_total",
			Help: "Total number of quote requests",
		},
		[]string{"swap_mode", "status"},
	)

	QuoteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quote_engine_quote_duration_seconds",
			Help:    "Quote duration in seconds",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		},
		[]string{"swap_mode"},
	)

	QuoteHops = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "quote_engine_quote_hops",
		Help:    "Number of hops per quoted route",
		Buckets: []float64{1, 2, 3, 4, 5, 8},
	})

	// Curve walk metrics
	SimulationSteps = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "quote_engine_simulation_steps",
		Help:    "Curve walk steps per simulated hop",
		Buckets: []float64{1, 2, 5, 10, 50, 100, 1000, 10000},
	})

	TicksCrossed = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "quote_engine_ticks_crossed",
		Help:    "Initialized ticks crossed per simulated hop",
		Buckets: []float64{0, 1, 2, 5, 10, 50, 100},
	})

	PartialFills = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quote_engine_partial_fills_total",
			Help: "Total number of simulated hops that stopped before filling",
		},
		[]string{"reason"},
	)

	// HTTP metrics
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quote_engine_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quote_engine_http_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)
