package monitoring

import (
	"strconv"
	"sync"
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
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 15},
		},
		[]string{"method", "endpoint"},
	)

	EvidenceTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evidence_transitions_total",
			Help: "Evidence status changes by origin and target status",
		},
		[]string{"from", "to"},
	)

	EvidenceUploads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evidence_uploads_total",
			Help: "Evidence uploads by result",
		},
		[]string{"result"},
	)

	PortfolioCompilations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portfolio_compilations_total",
			Help: "Portfolio compilation attempts by qualification and result",
		},
		[]string{"qualification", "result"},
	)
)

var registerOnce sync.Once

func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			RequestDuration,
			EvidenceTransitions,
			EvidenceUploads,
			PortfolioCompilations,
		)
	})
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		// one series for every unmatched path
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}

		RequestCounter.WithLabelValues(
			c.Request.Method,
			endpoint,
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			endpoint,
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
