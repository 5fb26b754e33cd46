// Package metrics records Prometheus request metrics for gin routes.
package metrics

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	obsmetrics "github.com/lexintake/console/pkg/observability/metrics"
)

// UnmatchedRoute labels requests that matched no registered route.
const UnmatchedRoute = "unmatched"

// Metrics tracks in-flight requests and records duration and count per route template.
func Metrics(reg *obsmetrics.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		reg.IncrementInFlight()
		defer reg.DecrementInFlight()

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = UnmatchedRoute
		}
		status := c.Writer.Status()
		if status == 0 {
			status = http.StatusOK
		}
		reg.RecordHTTPMetrics(c.Request.Method, route, status, time.Since(start))
	}
}
