// Package requestid assigns every request an identifier for log and response correlation.
package requestid

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lexintake/console/pkg/observability/logger"
)

// Header is the HTTP header carrying the request ID.
const Header = "X-Request-ID"

// ContextKey is the gin context key holding the request ID.
const ContextKey = "request_id"

const maxLength = 128

// RequestID keeps a well-formed incoming X-Request-ID or generates a UUID, echoes it in
// the response and stores it in both the gin and request contexts.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(Header)
		if !valid(id) {
			id = uuid.NewString()
		}

		c.Set(ContextKey, id)
		c.Header(Header, id)
		c.Request = c.Request.WithContext(logger.ContextWithRequestID(c.Request.Context(), id))

		c.Next()
	}
}

// Get returns the request ID for c, or "".
func Get(c *gin.Context) string {
	if id := c.GetString(ContextKey); id != "" {
		return id
	}
	return logger.RequestIDFromContext(c.Request.Context())
}

func valid(id string) bool {
	if id == "" || len(id) > maxLength {
		return false
	}
	for _, r := range id {
		if r < 0x21 || r > 0x7e {
			return false
		}
	}
	return true
}
