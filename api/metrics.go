package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "epimap",
			Name:      "api_requests_total",
			Help:      "Total number of API requests by path, method and status",
		},
		[]string{"path", "method", "status"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "epimap",
			Name:      "api_request_duration_seconds",
			Help:      "API request duration in seconds",
			Buckets:   []float64{0.005, 0.02, 0.05, 0.1, 0.5, 1.0, 5.0, 30.0},
		},
		[]string{"path"},
	)

	staleTransitionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "epimap",
			Name:      "workflow_stale_transitions_total",
			Help:      "Suppressed duplicate workflow transition signals",
		},
	)

	compositeBuildsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "epimap",
			Name:      "raster_composite_builds_total",
			Help:      "Composite rasters built (cache misses)",
		},
	)
)

func requestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		requestsTotal.WithLabelValues(path, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		requestDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())
	}
}
