package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lexintake/console/pkg/observability/logger"
)

// SuccessResponse represents a successful response with data
type SuccessResponse struct {
	Data      any       `json:"data"`
	Meta      *PageMeta `json:"meta,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
}

// PageMeta describes one page of a listing.
type PageMeta struct {
	Page  int `json:"page"`
	Size  int `json:"size"`
	Total int `json:"total"`
}

// Success sends data with HTTP 200 OK.
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, SuccessResponse{
		Data:      data,
		RequestID: logger.RequestIDFromContext(c.Request.Context()),
	})
}

// Page sends one page of a listing with HTTP 200 OK.
func Page(c *gin.Context, data any, meta PageMeta) {
	c.JSON(http.StatusOK, SuccessResponse{
		Data:      data,
		Meta:      &meta,
		RequestID: logger.RequestIDFromContext(c.Request.Context()),
	})
}

// Created sends data with HTTP 201 Created.
func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, SuccessResponse{
		Data:      data,
		RequestID: logger.RequestIDFromContext(c.Request.Context()),
	})
}

// NoContent sends HTTP 204 with no body.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error maps err with MapError, records it on the gin context for the logging
// middleware and aborts the chain.
func Error(c *gin.Context, err error) {
	_ = c.Error(err)
	status, body := MapError(c.Request.Context(), err)
	c.AbortWithStatusJSON(status, body)
}
