// Package api exposes the console over HTTP with gin.
package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lexintake/console/internal/console"
	"github.com/lexintake/console/pkg/auth"
	"github.com/lexintake/console/pkg/controller"
	"github.com/lexintake/console/pkg/middleware/authn"
	"github.com/lexintake/console/pkg/middleware/ratelimit"
	"github.com/lexintake/console/pkg/observability/logger"
)

// Services are the console features served over HTTP.
type Services struct {
	Auth      *console.AuthService
	Intakes   *console.IntakeService
	Attorneys *console.AttorneyService
	Blog      *console.BlogService
	Media     *console.MediaService
	SMTP      *console.SMTPService
	Dashboard *console.DashboardService
}

// Config configures the handlers.
type Config struct {
	// Validator checks admin bearer tokens.
	Validator auth.JWTValidator
	// LoginLimiter throttles POST /api/admin/login per client IP. Nil disables it.
	LoginLimiter ratelimit.RateLimiter
	// RedirectMedia sends presigned URLs for GET /media/*key when the backend supports them.
	RedirectMedia bool
	Logger        logger.Logger
}

// Handler serves the console routes.
type Handler struct {
	svc Services
	cfg Config
	log logger.Logger
}

// New creates the handler set.
func New(svc Services, cfg Config) *Handler {
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}
	return &Handler{svc: svc, cfg: cfg, log: log}
}

// Register mounts every console route on r.
func (h *Handler) Register(r gin.IRouter) {
	r.POST("/api/intake", h.createIntake)
	r.GET("/api/blog", h.listPublishedPosts)
	r.GET("/api/blog/:slug", h.getPublishedPost)
	r.GET("/media/*key", h.serveMedia)

	login := []gin.HandlerFunc{}
	if h.cfg.LoginLimiter != nil {
		login = append(login, ratelimit.RateLimit(h.cfg.LoginLimiter, ratelimit.ClientIP))
	}
	r.POST("/api/admin/login", append(login, h.login)...)

	admin := r.Group("/api/admin", authn.Authenticate(h.cfg.Validator, auth.RoleAdmin))
	admin.GET("/dashboard", h.dashboard)

	admin.GET("/smtp", h.getSMTP)
	admin.PUT("/smtp", h.updateSMTP)
	admin.POST("/smtp/test", h.testSMTP)

	admin.GET("/requests", h.listIntakes)
	admin.GET("/requests/:id", h.getIntake)
	admin.DELETE("/requests/:id", h.deleteIntake)
	admin.POST("/requests/:id/status", h.updateIntakeStatus)
	admin.POST("/requests/:id/assign", h.assignIntake)

	admin.GET("/attorneys", h.listAttorneys)
	admin.POST("/attorneys", h.onboardAttorney)
	admin.GET("/attorneys/:id", h.getAttorney)
	admin.POST("/attorneys/:id/activate", h.activateAttorney)
	admin.POST("/attorneys/:id/suspend", h.suspendAttorney)
	admin.PUT("/attorneys/:id/photo", h.uploadAttorneyPhoto)

	admin.GET("/posts", h.listPosts)
	admin.POST("/posts", h.createPost)
	admin.GET("/posts/:id", h.getPost)
	admin.PUT("/posts/:id", h.updatePost)
	admin.DELETE("/posts/:id", h.deletePost)
	admin.POST("/posts/:id/publish", h.publishPost)
	admin.POST("/posts/:id/unpublish", h.unpublishPost)
	admin.PUT("/posts/:id/cover", h.uploadPostCover)

	admin.GET("/media", h.listMedia)
}

// fail writes err as a JSON error response.
func (h *Handler) fail(c *gin.Context, err error) {
	controller.Error(c, toAppError(err))
}

// toAppError gives domain errors their HTTP presentation. Other errors stay opaque.
func toAppError(err error) error {
	var e *console.Error
	if !errors.As(err, &e) {
		return err
	}
	status := http.StatusInternalServerError
	switch e.Kind {
	case console.KindValidation:
		status = http.StatusBadRequest
	case console.KindNotFound:
		status = http.StatusNotFound
	case console.KindConflict:
		status = http.StatusConflict
	case console.KindUnauthorized:
		status = http.StatusUnauthorized
	case console.KindUnavailable:
		status = http.StatusServiceUnavailable
	}
	return &controller.AppError{Code: e.Code, Message: e.Message, HTTPStatus: status, Cause: err}
}

func pathID(c *gin.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, &controller.AppError{
			Code:       "validation.id",
			Message:    "id must be a UUID",
			HTTPStatus: http.StatusBadRequest,
		}
	}
	return id, nil
}

func queryInt(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, controller.NewValidationError(name+" must be a non-negative integer", nil)
	}
	return n, nil
}
