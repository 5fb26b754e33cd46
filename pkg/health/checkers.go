package health

import (
	"context"
	"time"

	"github.com/lexintake/console/pkg/objectstore"
)

// Checkable is implemented by components with their own health probe.
type Checkable interface {
	HealthCheck(ctx context.Context) error
}

// AdapterChecker adapts a Checkable into a Checker with a timeout.
type AdapterChecker struct {
	name    string
	adapter Checkable
	timeout time.Duration
}

// NewAdapterChecker creates a checker for adapter. A zero timeout means five seconds.
func NewAdapterChecker(name string, adapter Checkable, timeout time.Duration) *AdapterChecker {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &AdapterChecker{
		name:    name,
		adapter: adapter,
		timeout: timeout,
	}
}

// Check runs the adapter's probe.
func (c *AdapterChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()

	checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.adapter.HealthCheck(checkCtx); err != nil {
		return CheckResult{
			Name:      c.name,
			Status:    StatusUnhealthy,
			Error:     err.Error(),
			Timestamp: time.Now(),
			Duration:  time.Since(start),
		}
	}
	return CheckResult{
		Name:      c.name,
		Status:    StatusHealthy,
		Message:   "OK",
		Timestamp: time.Now(),
		Duration:  time.Since(start),
	}
}

// Name returns the check name.
func (c *AdapterChecker) Name() string {
	return c.name
}

// CustomChecker builds a Checker from a function.
type CustomChecker struct {
	name      string
	checkFunc func(ctx context.Context) (Status, string, error)
}

// NewCustomChecker creates a checker; checkFunc returns (status, message, error).
func NewCustomChecker(name string, checkFunc func(ctx context.Context) (Status, string, error)) *CustomChecker {
	return &CustomChecker{
		name:      name,
		checkFunc: checkFunc,
	}
}

// Check executes the check function.
func (c *CustomChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	status, message, err := c.checkFunc(ctx)

	result := CheckResult{
		Name:      c.name,
		Status:    status,
		Message:   message,
		Timestamp: time.Now(),
		Duration:  time.Since(start),
	}
	if err != nil {
		result.Error = err.Error()
	}
	return result
}

// Name returns the check name.
func (c *CustomChecker) Name() string {
	return c.name
}

// SelectedStorage exposes the storage selection without forcing construction.
type SelectedStorage interface {
	Selected() (objectstore.Service, bool)
}

// NewStorageChecker reports on the selected storage backend. Before the first storage
// request the check is degraded rather than constructing a backend itself.
func NewStorageChecker(selector SelectedStorage, timeout time.Duration) *CustomChecker {
	if timeout == 0 {
		timeout = 3 * time.Second
	}
	return NewCustomChecker("storage", func(ctx context.Context) (Status, string, error) {
		svc, ok := selector.Selected()
		if !ok {
			return StatusDegraded, "storage backend not selected yet", nil
		}
		checkCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if err := svc.HealthCheck(checkCtx); err != nil {
			return StatusUnhealthy, svc.Variant().String(), err
		}
		return StatusHealthy, svc.Variant().String(), nil
	})
}

// SidecarProbe is the subset of the environment detector used by NewSidecarChecker.
type SidecarProbe interface {
	IsManagedEnvironment() bool
	IsSidecarAvailable(ctx context.Context) bool
}

// NewSidecarChecker reports sidecar reachability. Off the managed host the sidecar is
// not expected and the check is healthy; an unreachable sidecar on the managed host
// is degraded.
func NewSidecarChecker(probe SidecarProbe) *CustomChecker {
	return NewCustomChecker("sidecar", func(ctx context.Context) (Status, string, error) {
		if !probe.IsManagedEnvironment() {
			return StatusHealthy, "not running on managed host", nil
		}
		if !probe.IsSidecarAvailable(ctx) {
			return StatusDegraded, "sidecar not reachable", nil
		}
		return StatusHealthy, "sidecar reachable", nil
	})
}
