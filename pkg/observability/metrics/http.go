package metrics

import (
	"strconv"
	"time"
)

// RecordHTTPMetrics updates the duration histogram and request counter.
// path should be the route template, not the raw URL, to bound cardinality.
func (r *Registry) RecordHTTPMetrics(method, path string, status int, duration time.Duration) {
	statusStr := strconv.Itoa(status)
	r.httpRequestDuration.WithLabelValues(method, path, statusStr).Observe(duration.Seconds())
	r.httpRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
}

// IncrementInFlight increments the in-flight requests gauge.
func (r *Registry) IncrementInFlight() {
	r.httpRequestsInFlight.Inc()
}

// DecrementInFlight decrements the in-flight requests gauge.
func (r *Registry) DecrementInFlight() {
	r.httpRequestsInFlight.Dec()
}
