package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"stock-trader/metrics"
)

// Metrics records request count and latency per route template.
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		m.RequestCount.WithLabelValues(route, c.Request.Method, status).Inc()
		m.RequestDuration.WithLabelValues(route, c.Request.Method, status).Observe(time.Since(start).Seconds())
	}
}
