package metrics

import "time"

// RecordStorageSelection counts a storage backend construction attempt.
func (r *Registry) RecordStorageSelection(variant, outcome string) {
	r.storageSelections.WithLabelValues(variant, outcome).Inc()
}

// RecordStorageOperation observes the duration of one storage call.
func (r *Registry) RecordStorageOperation(variant, operation, outcome string, duration time.Duration) {
	r.storageOperationDuration.WithLabelValues(variant, operation, outcome).Observe(duration.Seconds())
}

// RecordSidecarProbe counts a sidecar health probe.
func (r *Registry) RecordSidecarProbe(result string) {
	r.sidecarProbes.WithLabelValues(result).Inc()
}
