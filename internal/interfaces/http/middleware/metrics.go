package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/scribemed/clinsight/internal/infrastructure/monitoring/prometheus"
)

// Metrics records request count and latency per route template.  Unmatched
// routes are bucketed under a single label so probing cannot explode the
// cardinality.
func Metrics(m *prometheus.AppMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.RecordHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
