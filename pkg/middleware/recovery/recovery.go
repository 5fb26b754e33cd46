// Package recovery turns handler panics into logged 500 responses.
package recovery

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/lexintake/console/pkg/middleware/requestid"
	"github.com/lexintake/console/pkg/observability/logger"
)

// Recovery recovers from panics, logs them with the stack trace and answers 500 unless
// a response was already written.
func Recovery(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			if r == http.ErrAbortHandler {
				panic(r)
			}

			id := requestid.Get(c)
			log.Error("panic recovered",
				"request_id", id,
				"panic", r,
				"stack", string(debug.Stack()),
			)

			if c.Writer.Written() {
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":      "internal_server_error",
				"message":    "an unexpected error occurred",
				"request_id": id,
			})
		}()

		c.Next()
	}
}
