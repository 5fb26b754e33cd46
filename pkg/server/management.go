package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lexintake/console/pkg/config"
	"github.com/lexintake/console/pkg/environment"
	"github.com/lexintake/console/pkg/health"
	"github.com/lexintake/console/pkg/middleware/logging"
	"github.com/lexintake/console/pkg/middleware/recovery"
	"github.com/lexintake/console/pkg/middleware/requestid"
	"github.com/lexintake/console/pkg/objectstore"
	"github.com/lexintake/console/pkg/observability/logger"
	"github.com/lexintake/console/pkg/observability/metrics"
	"github.com/lexintake/console/pkg/version"
)

// EnvironmentProbe is the part of the environment detector reported on /environment.
type EnvironmentProbe interface {
	Signal() environment.Signal
	IsSidecarAvailable(ctx context.Context) bool
}

// StorageSelection reports the storage selector state without forcing a selection.
type StorageSelection interface {
	State() objectstore.State
	Variant() objectstore.Variant
}

// ManagementOptions are the collaborators behind the management endpoints.
type ManagementOptions struct {
	Health      *health.Registry
	Metrics     *metrics.Registry
	Version     version.Info
	Environment EnvironmentProbe
	Storage     StorageSelection
}

// EnvironmentReport is the body of GET /environment.
type EnvironmentReport struct {
	Signal           environment.Signal `json:"signal"`
	SidecarAvailable bool               `json:"sidecar_available"`
	Storage          StorageReport      `json:"storage"`
}

// StorageReport describes the selector state.
type StorageReport struct {
	State   string `json:"state"`
	Variant string `json:"variant,omitempty"`
}

// ManagementServer serves health, readiness, metrics and diagnostics on a separate port
// from the public API.
type ManagementServer struct {
	*Server
	engine *gin.Engine
	opts   ManagementOptions
}

// NewManagementServer creates the management server and registers its endpoints:
//   - /health: liveness, always 200
//   - /ready: readiness from the health registry, 503 when a check is unhealthy
//   - /metrics: Prometheus text format
//   - /version: build metadata
//   - /environment: managed-host signal, sidecar reachability and storage selection
func NewManagementServer(cfg config.ManagementConfig, log logger.Logger, opts ManagementOptions) *ManagementServer {
	if log == nil {
		log = logger.NewNop()
	}
	if opts.Health == nil {
		opts.Health = health.NewRegistry()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewRegistry()
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(
		requestid.RequestID(),
		logging.Logging(log, "/health", "/metrics"),
		recovery.Recovery(log),
	)

	s := &ManagementServer{
		Server: NewServer("management", Config{
			Port:         cfg.Port,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  60 * time.Second,
		}, engine, log),
		engine: engine,
		opts:   opts,
	}
	s.registerEndpoints()
	return s
}

func (s *ManagementServer) registerEndpoints() {
	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/ready", s.handleReady)
	s.engine.GET("/metrics", gin.WrapH(s.opts.Metrics.Handler()))
	s.engine.GET("/version", s.handleVersion)
	s.engine.GET("/environment", s.handleEnvironment)
}

// Router returns the gin engine for registering extra routes.
func (s *ManagementServer) Router() *gin.Engine {
	return s.engine
}

func (s *ManagementServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": health.StatusHealthy})
}

// handleReady reports 503 only for unhealthy checks; degraded components, such as a
// storage backend not selected yet, still accept traffic.
func (s *ManagementServer) handleReady(c *gin.Context) {
	result := s.opts.Health.Check(c.Request.Context())
	if !result.IsReady() {
		c.JSON(http.StatusServiceUnavailable, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *ManagementServer) handleVersion(c *gin.Context) {
	c.JSON(http.StatusOK, s.opts.Version)
}

func (s *ManagementServer) handleEnvironment(c *gin.Context) {
	var report EnvironmentReport
	if s.opts.Environment != nil {
		report.Signal = s.opts.Environment.Signal()
		report.SidecarAvailable = s.opts.Environment.IsSidecarAvailable(c.Request.Context())
	}
	report.Storage.State = objectstore.StateUnselected.String()
	if s.opts.Storage != nil {
		report.Storage.State = s.opts.Storage.State().String()
		report.Storage.Variant = s.opts.Storage.Variant().String()
	}
	c.JSON(http.StatusOK, report)
}
