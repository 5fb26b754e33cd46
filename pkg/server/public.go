package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"github.com/lexintake/console/pkg/config"
	"github.com/lexintake/console/pkg/middleware/logging"
	"github.com/lexintake/console/pkg/middleware/metrics"
	"github.com/lexintake/console/pkg/middleware/recovery"
	"github.com/lexintake/console/pkg/middleware/requestid"
	"github.com/lexintake/console/pkg/middleware/tracing"
	"github.com/lexintake/console/pkg/observability/logger"
	obsmetrics "github.com/lexintake/console/pkg/observability/metrics"
)

// PublicServer serves the console API and media.
//
// The middleware stack is applied in this order:
//  1. Request ID
//  2. Tracing
//  3. Logging
//  4. Recovery
//  5. Metrics
//  6. Request size limit
type PublicServer struct {
	*Server
	engine *gin.Engine
}

// PublicOptions are the optional collaborators of the public server.
type PublicOptions struct {
	Metrics        *obsmetrics.Registry
	TracerProvider trace.TracerProvider
}

// NewPublicServer creates the public server. Routes are added through Router.
func NewPublicServer(cfg config.HTTPConfig, log logger.Logger, opts PublicOptions) *PublicServer {
	if log == nil {
		log = logger.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(
		requestid.RequestID(),
		tracing.Tracing(tracing.Config{TracerProvider: opts.TracerProvider}),
		logging.Logging(log),
		recovery.Recovery(log),
	)
	if opts.Metrics != nil {
		engine.Use(metrics.Metrics(opts.Metrics))
	}
	if cfg.MaxRequestSize > 0 {
		engine.Use(maxRequestSize(cfg.MaxRequestSize))
	}

	return &PublicServer{
		Server: NewServer("public", Config{
			Port:         cfg.Port,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		}, engine, log),
		engine: engine,
	}
}

// Router returns the gin engine for registering routes.
func (s *PublicServer) Router() *gin.Engine {
	return s.engine
}

func maxRequestSize(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > limit {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
				"error":      "validation_error",
				"code":       "validation.request_too_large",
				"message":    "request body exceeds the size limit",
				"request_id": requestid.Get(c),
			})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}
