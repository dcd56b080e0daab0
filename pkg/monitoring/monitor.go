package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	XPAwardCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "academy_xp_awards_total",
			Help: "Total number of XP award transactions",
		},
		[]string{"source_type", "mode"}, // mode: remote / local
	)

	SyncFallbackCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "academy_sync_fallbacks_total",
			Help: "Remote writes downgraded to local-only operation",
		},
	)

	OutboxDrainCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "academy_outbox_drained_total",
			Help: "Pending local writes replayed to the remote store",
		},
	)

	MergeWriteCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "academy_merge_writes_total",
			Help: "Writes performed by cache/remote merge passes",
		},
	)
)

func Init() {
	prometheus.MustRegister(RequestCounter)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(XPAwardCounter)
	prometheus.MustRegister(SyncFallbackCounter)
	prometheus.MustRegister(OutboxDrainCounter)
	prometheus.MustRegister(MergeWriteCounter)
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
