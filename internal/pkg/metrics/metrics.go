package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "exsitu",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "exsitu",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "exsitu",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	// Viewport sync metrics
	ViewportEvents = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "exsitu",
		Subsystem: "sync",
		Name:      "viewport_events_total",
		Help:      "Total bounds-changed events received from map clients",
	})

	ViewportSuppressed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "exsitu",
		Subsystem: "sync",
		Name:      "viewport_suppressed_total",
		Help:      "Bounds events discarded because every edge moved less than the threshold",
	})

	PageFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "exsitu",
		Subsystem: "sync",
		Name:      "page_fetches_total",
		Help:      "Object page fetches by outcome",
	}, []string{"outcome"})

	PageFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "exsitu",
		Subsystem: "sync",
		Name:      "page_fetch_duration_seconds",
		Help:      "Duration of object page fetches",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	})

	StaleResponses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "exsitu",
		Subsystem: "sync",
		Name:      "stale_responses_total",
		Help:      "Page responses dropped because the viewport query changed",
	})

	ObjectsMerged = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "exsitu",
		Subsystem: "sync",
		Name:      "objects_merged_total",
		Help:      "Objects added to session collections after deduplication",
	})

	ArcsAggregated = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "exsitu",
		Subsystem: "arcs",
		Name:      "aggregated_count",
		Help:      "Number of unique arcs produced per aggregation",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
	})

	MirrorObjectsStored = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "exsitu",
		Subsystem: "mirror",
		Name:      "objects_stored_total",
		Help:      "Objects upserted into the local mirror",
	})

	StatsRefreshErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "exsitu",
		Subsystem: "stats",
		Name:      "refresh_errors_total",
		Help:      "Failed statistics refreshes",
	})

	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "exsitu",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Current number of active WebSocket map sessions",
	})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "exsitu",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"operation"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "exsitu",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"operation"})

	// Database pool metrics
	DBPoolConnsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "exsitu",
		Subsystem: "db",
		Name:      "pool_conns_open",
		Help:      "Total connections open in the database pool",
	})

	DBPoolConnsAcquired = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "exsitu",
		Subsystem: "db",
		Name:      "pool_conns_acquired",
		Help:      "Connections currently acquired from the database pool",
	})

	DBPoolConnsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "exsitu",
		Subsystem: "db",
		Name:      "pool_conns_idle",
		Help:      "Idle connections in the database pool",
	})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)
		httpResponseSize.WithLabelValues(method, path).Observe(float64(len(c.Response().Body())))

		return err
	}
}

// Handler returns a Fiber handler serving Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}

// PoolStat is the subset of pgxpool.Stat reported as metrics.
type PoolStat interface {
	AcquiredConns() int32
	IdleConns() int32
	TotalConns() int32
}

// UpdateDBPoolMetrics copies mirror database pool statistics into gauges.
func UpdateDBPoolMetrics(s PoolStat) {
	DBPoolConnsAcquired.Set(float64(s.AcquiredConns()))
	DBPoolConnsIdle.Set(float64(s.IdleConns()))
	DBPoolConnsOpen.Set(float64(s.TotalConns()))
}
