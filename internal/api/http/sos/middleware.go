package sos

import (
	"github.com/gin-gonic/gin"

	"github.com/careline/sos-beacon/internal/auth"
)

// callerHeader carries the authenticated caller id, set by the gateway in
// front of this service.
const callerHeader = "X-Caller-Id"

// identityMiddleware attaches the caller identity to the request context.
// A missing header leaves the request anonymous; endpoints that require an
// identity reject it themselves.
func identityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID := c.GetHeader(callerHeader); userID != "" {
			ctx := auth.ContextWithIdentity(c.Request.Context(), auth.Identity{UserID: userID})
			c.Request = c.Request.WithContext(ctx)
		}

		c.Next()
	}
}
