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
		Namespace: "groundwatch",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "groundwatch",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 10},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "groundwatch",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	// Map session metrics
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "groundwatch",
		Subsystem: "map",
		Name:      "active_sessions",
		Help:      "Map page sessions currently held in memory",
	})

	NavigationsIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "groundwatch",
		Subsystem: "map",
		Name:      "navigations_issued_total",
		Help:      "Pending navigations recorded, by producer",
	}, []string{"source"})

	NavigationsApplied = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "groundwatch",
		Subsystem: "map",
		Name:      "navigations_applied_total",
		Help:      "Pending navigations taken and applied by a viewport consumer",
	})

	ViewportFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "groundwatch",
		Subsystem: "map",
		Name:      "viewport_placeholders_total",
		Help:      "Viewport consumers that degraded to a static placeholder",
	})

	GeocodeRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "groundwatch",
		Subsystem: "geocode",
		Name:      "requests_total",
		Help:      "Geocoder lookups by outcome",
	}, []string{"outcome"})

	StaleGeocodes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "groundwatch",
		Subsystem: "geocode",
		Name:      "stale_responses_total",
		Help:      "Geocoder responses discarded because a newer search superseded them",
	})

	LLMDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "groundwatch",
		Subsystem: "llm",
		Name:      "request_duration_seconds",
		Help:      "Duration of generative-language calls",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"operation", "outcome"})

	ActiveMapSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "groundwatch",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Current number of connected map sockets",
	})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "groundwatch",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"operation"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "groundwatch",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"operation"})

	AnalysesArchived = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "groundwatch",
		Subsystem: "archive",
		Name:      "analyses_total",
		Help:      "Analyses written to the archive, by kind",
	}, []string{"kind"})

	// Database pool metrics
	DBPoolConnsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "groundwatch",
		Subsystem: "db",
		Name:      "pool_conns_open",
		Help:      "Total connections open in the database pool",
	})

	DBPoolConnsAcquired = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "groundwatch",
		Subsystem: "db",
		Name:      "pool_conns_acquired",
		Help:      "Connections currently acquired from the database pool",
	})

	DBPoolConnsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "groundwatch",
		Subsystem: "db",
		Name:      "pool_conns_idle",
		Help:      "Idle connections in the database pool",
	})
)

// ObserveLLM records the duration of a language-model call.
func ObserveLLM(operation string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	LLMDuration.WithLabelValues(operation, outcome).Observe(time.Since(start).Seconds())
}

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		// Route pattern keeps session IDs out of the label set.
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
	handler := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	return func(c *fiber.Ctx) error {
		handler(c.Context())
		return nil
	}
}

// PoolStat is the subset of pgxpool.Stat the pool gauges read.
type PoolStat interface {
	AcquiredConns() int32
	IdleConns() int32
	TotalConns() int32
}

// UpdateDBPoolMetrics copies pool statistics into the pool gauges.
func UpdateDBPoolMetrics(s PoolStat) {
	DBPoolConnsAcquired.Set(float64(s.AcquiredConns()))
	DBPoolConnsIdle.Set(float64(s.IdleConns()))
	DBPoolConnsOpen.Set(float64(s.TotalConns()))
}
