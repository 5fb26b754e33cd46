// Package authn guards routes with bearer tokens validated by an auth.JWTValidator.
package authn

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/lexintake/console/pkg/auth"
	"github.com/lexintake/console/pkg/middleware/requestid"
)

// ClaimsKey is the gin context key for validated claims.
const ClaimsKey = "claims"

type claimsKey struct{}

// Authenticate validates the Authorization bearer token and, when roles are given,
// requires the claims to carry at least one of them. Missing or invalid tokens get 401,
// insufficient roles 403.
func Authenticate(validator auth.JWTValidator, roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abort(c, http.StatusUnauthorized, "unauthorized", "missing authorization header")
			return
		}

		scheme, token, ok := strings.Cut(header, " ")
		token = strings.TrimSpace(token)
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			abort(c, http.StatusUnauthorized, "unauthorized", "invalid authorization header format")
			return
		}

		claims, err := validator.Validate(c.Request.Context(), token)
		if err != nil {
			abort(c, http.StatusUnauthorized, "unauthorized", "invalid token")
			return
		}

		if len(roles) > 0 && !hasAnyRole(claims, roles) {
			abort(c, http.StatusForbidden, "forbidden", "insufficient role")
			return
		}

		c.Set(ClaimsKey, claims)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), claimsKey{}, claims))
		c.Next()
	}
}

// ClaimsFrom returns the claims stored by Authenticate.
func ClaimsFrom(c *gin.Context) (*auth.Claims, bool) {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*auth.Claims)
	return claims, ok
}

// ClaimsFromContext returns the claims carried by a request context.
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*auth.Claims)
	return claims, ok
}

func hasAnyRole(claims *auth.Claims, roles []string) bool {
	for _, role := range roles {
		if claims.HasRole(role) {
			return true
		}
	}
	return false
}

func abort(c *gin.Context, status int, category, message string) {
	if status == http.StatusUnauthorized {
		c.Header("WWW-Authenticate", `Bearer realm="console"`)
	}
	c.AbortWithStatusJSON(status, gin.H{
		"error":      category,
		"message":    message,
		"request_id": requestid.Get(c),
	})
}
