// Package environment detects whether the console runs on the managed host and whether
// the host's loopback sidecar is reachable.
//
// Managed mode is signalled by the mere presence of a process-identity variable
// (REPL_ID by default); its value is ignored, so an empty value still counts.
// The sidecar probe is bounded by a one second timeout and never returns an error:
// every failure reads as "not available".
package environment

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/lexintake/console/pkg/observability/logger"
)

const (
	// ManagedEnvVar is the process-identity variable set by the managed host.
	ManagedEnvVar = "REPL_ID"
	// DefaultSidecarURL is the loopback address of the managed host's sidecar.
	DefaultSidecarURL = "http://127.0.0.1:1106"
	// HealthPath is probed on the sidecar to decide availability.
	HealthPath = "/health"
	// DefaultProbeTimeout bounds a single sidecar probe.
	DefaultProbeTimeout = 1000 * time.Millisecond
)

// Environment names reported by EnvironmentName. Diagnostic only.
const (
	NameManaged = "managed"
	NameLocal   = "local"
)

// Signal is a point-in-time snapshot of the environment detection.
type Signal struct {
	Managed bool   `json:"managed"`
	Name    string `json:"name"`
	EnvVar  string `json:"env_var"`
}

// ProbeRecorder receives the outcome of each sidecar probe.
type ProbeRecorder interface {
	RecordSidecarProbe(result string)
}

// Probe outcomes passed to ProbeRecorder.
const (
	ProbeSkipped     = "skipped"
	ProbeAvailable   = "available"
	ProbeUnavailable = "unavailable"
)

// Detector evaluates the managed-host signal and probes the sidecar.
// A Detector is safe for concurrent use.
type Detector struct {
	envVar       string
	lookupEnv    func(string) (string, bool)
	client       *http.Client
	sidecarURL   string
	probeTimeout time.Duration
	log          logger.Logger
	recorder     ProbeRecorder
}

// Option configures a Detector.
type Option func(*Detector)

// WithEnvVar overrides the variable whose presence signals managed mode.
func WithEnvVar(name string) Option {
	return func(d *Detector) {
		if name = strings.TrimSpace(name); name != "" {
			d.envVar = name
		}
	}
}

// WithLookupEnv replaces os.LookupEnv, mainly for tests.
func WithLookupEnv(lookup func(string) (string, bool)) Option {
	return func(d *Detector) {
		if lookup != nil {
			d.lookupEnv = lookup
		}
	}
}

// WithHTTPClient sets the client used for the sidecar probe.
func WithHTTPClient(client *http.Client) Option {
	return func(d *Detector) {
		if client != nil {
			d.client = client
		}
	}
}

// WithSidecarURL overrides the sidecar base URL.
func WithSidecarURL(rawURL string) Option {
	return func(d *Detector) {
		if rawURL = strings.TrimSpace(rawURL); rawURL != "" {
			d.sidecarURL = strings.TrimSuffix(rawURL, "/")
		}
	}
}

// WithProbeTimeout overrides the probe timeout.
func WithProbeTimeout(timeout time.Duration) Option {
	return func(d *Detector) {
		if timeout > 0 {
			d.probeTimeout = timeout
		}
	}
}

// WithLogger sets the logger used for probe diagnostics.
func WithLogger(log logger.Logger) Option {
	return func(d *Detector) {
		if log != nil {
			d.log = log
		}
	}
}

// WithProbeRecorder reports every probe outcome to r.
func WithProbeRecorder(r ProbeRecorder) Option {
	return func(d *Detector) {
		d.recorder = r
	}
}

// NewDetector creates a Detector reading the real process environment unless overridden.
func NewDetector(opts ...Option) *Detector {
	d := &Detector{
		envVar:       ManagedEnvVar,
		lookupEnv:    os.LookupEnv,
		client:       &http.Client{},
		sidecarURL:   DefaultSidecarURL,
		probeTimeout: DefaultProbeTimeout,
		log:          logger.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// IsManagedEnvironment reports whether the managed-host variable is present.
func (d *Detector) IsManagedEnvironment() bool {
	_, present := d.lookupEnv(d.envVar)
	return present
}

// EnvironmentName returns NameManaged or NameLocal.
func (d *Detector) EnvironmentName() string {
	if d.IsManagedEnvironment() {
		return NameManaged
	}
	return NameLocal
}

// Signal returns a snapshot of the detection result.
func (d *Detector) Signal() Signal {
	managed := d.IsManagedEnvironment()
	name := NameLocal
	if managed {
		name = NameManaged
	}
	return Signal{Managed: managed, Name: name, EnvVar: d.envVar}
}

// SidecarURL returns the configured sidecar base URL.
func (d *Detector) SidecarURL() string {
	return d.sidecarURL
}

// IsSidecarAvailable reports whether the sidecar answered its health endpoint with a
// 2xx status within the probe timeout. Outside managed mode it returns false without
// touching the network. The result is never cached.
func (d *Detector) IsSidecarAvailable(ctx context.Context) bool {
	if !d.IsManagedEnvironment() {
		d.record(ProbeSkipped)
		return false
	}
	if ctx == nil {
		ctx = context.Background()
	}

	probeCtx, cancel := context.WithTimeout(ctx, d.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, d.sidecarURL+HealthPath, nil)
	if err != nil {
		d.log.Debug("sidecar probe request invalid", "url", d.sidecarURL, "error", err)
		d.record(ProbeUnavailable)
		return false
	}

	resp, err := d.client.Do(req)
	if err != nil {
		d.log.Debug("sidecar probe failed", "url", d.sidecarURL, "error", err)
		d.record(ProbeUnavailable)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		d.log.Debug("sidecar probe returned non-success status", "url", d.sidecarURL, "status", resp.StatusCode)
		d.record(ProbeUnavailable)
		return false
	}

	d.record(ProbeAvailable)
	return true
}

func (d *Detector) record(result string) {
	if d.recorder != nil {
		d.recorder.RecordSidecarProbe(result)
	}
}

var defaultDetector = NewDetector()

// Default returns the package-level detector that reads the real process environment.
func Default() *Detector {
	return defaultDetector
}

// IsManagedEnvironment reports whether the process runs on the managed host.
func IsManagedEnvironment() bool {
	return defaultDetector.IsManagedEnvironment()
}

// IsSidecarAvailable probes the default sidecar endpoint.
func IsSidecarAvailable(ctx context.Context) bool {
	return defaultDetector.IsSidecarAvailable(ctx)
}

// EnvironmentName returns the diagnostic name of the current environment.
func EnvironmentName() string {
	return defaultDetector.EnvironmentName()
}
