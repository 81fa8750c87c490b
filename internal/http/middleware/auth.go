// Token-gate middleware.
//
// This file implements the shared-secret gates in front of the sync trigger
// and the analytics/chat surface. A gate compares the presented token against
// the configured one in constant time; an empty configured token disables the
// gate (dev convenience, mirrors the rest of the config defaults).
package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// RequireToken returns a Gin middleware that admits a request only when it
// presents the configured token, either as "Authorization: Bearer <token>" or
// in the named fallback header (e.g. "X-Sync-Token").
//
// Comparison is constant-time. When token is empty the gate is disabled and
// every request passes.
//
// The middleware emits:
//
//	HTTP/1.1 401 Unauthorized
//	{
//	  "request_id": "<uuid>",
//	  "code":       "unauthorized",
//	  "message":    "missing or invalid token"
//	}
func RequireToken(token, fallbackHeader string) gin.HandlerFunc {
	if token == "" {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		presented := bearerToken(c.GetHeader("Authorization"))
		if presented == "" && fallbackHeader != "" {
			presented = strings.TrimSpace(c.GetHeader(fallbackHeader))
		}

		if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"request_id": c.Writer.Header().Get("X-Request-ID"),
				"code":       "unauthorized",
				"message":    "missing or invalid token",
			})
			return
		}
		c.Next()
	}
}

// bearerToken extracts the credential from an "Authorization: Bearer x" value.
func bearerToken(h string) string {
	h = strings.TrimSpace(h)
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
