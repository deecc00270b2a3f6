package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Market metrics
	MarketCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hyperion_market_count",
		Help: "Number of markets defined in the market file",
	})

	SnapshotCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hyperion_snapshot_count",
		Help: "Number of markets with a live snapshot in the routing graph",
	})

	SnapshotUpdates = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hyperion_snapshot_updates_total",
		Help: "Total number of snapshots installed into the routing graph",
	})

	SnapshotFetchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hyperion_snapshot_fetch_failures_total",
			Help: "Total number of failed snapshot fetches",
		},
		[]string{"pair"},
	)

	SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "hyperion_sweep_duration_seconds",
		Help:    "Duration of a full snapshot sweep",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	})

	SweepsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hyperion_sweeps_skipped_total",
		Help: "Sweeps skipped because another sweep was still running",
	})

	// Snapshot cache metrics
	SnapshotCacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hyperion_snapshot_cache_requests_total",
			Help: "Snapshot cache lookups by tier and result",
		},
		[]string{"tier", "result"},
	)

	SnapshotCacheSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hyperion_snapshot_cache_size",
		Help: "Current number of entries in the in-process snapshot cache",
	})

	// Quote metrics
	QuoteRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hyperion_quote_requests_total",
			Help: "Total number of quote requests",
		},
		[]string{"anchor", "status"},
	)

	QuoteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hyperion_quote_duration_seconds",
			Help:    "Quote request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"anchor"},
	)

	NoViableSettlements = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hyperion_no_viable_settlements_total",
			Help: "Estimates that produced no viable settlement, by reason",
		},
		[]string{"reason"},
	)

	RouteHops = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "hyperion_route_hops",
		Help:    "Number of hops in routes returned by the router",
		Buckets: []float64{1, 2, 3, 4, 5, 6},
	})

	RouteSearchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "hyperion_route_search_duration_seconds",
		Help:    "Route search duration in seconds",
		Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
	})

	RouteRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hyperion_route_retries_total",
		Help: "Route searches retried after an on-demand sweep",
	})

	// HTTP metrics
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hyperion_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hyperion_http_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)
