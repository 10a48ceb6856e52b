package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTPMetrics holds the Prometheus instruments of the HTTP server
type HTTPMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	responseSize    *prometheus.HistogramVec
	activeRequests  prometheus.Gauge
}

// NewHTTPMetrics registers the HTTP instruments on reg under prefix
func NewHTTPMetrics(reg prometheus.Registerer, prefix string) *HTTPMetrics {
	factory := promauto.With(reg)
	labels := []string{"method", "route", "status"}
	return &HTTPMetrics{
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_http_requests_total",
			Help: "Total number of HTTP requests",
		}, labels),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    prefix + "_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, labels),
		responseSize: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    prefix + "_http_response_size_bytes",
			Help:    "Size of HTTP responses in bytes",
			Buckets: prometheus.ExponentialBuckets(100, 4, 8),
		}, []string{"method", "route"}),
		activeRequests: factory.NewGauge(prometheus.GaugeOpts{
			Name: prefix + "_http_active_requests",
			Help: "Number of HTTP requests currently being served",
		}),
	}
}

// Middleware records one observation per request. Routes are labelled by
// their pattern; unmatched paths share the "unmatched" label.
func (m *HTTPMetrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		m.activeRequests.Inc()
		defer m.activeRequests.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())

		m.requestsTotal.WithLabelValues(method, route, status).Inc()
		m.requestDuration.WithLabelValues(method, route, status).Observe(time.Since(start).Seconds())
		if size := c.Writer.Size(); size > 0 {
			m.responseSize.WithLabelValues(method, route).Observe(float64(size))
		}
	}
}
