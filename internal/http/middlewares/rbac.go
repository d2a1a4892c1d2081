package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/urwriter/marketplace/internal/domain/user"
)

// RequireRole lets the request through when the caller holds every bit of
// required. Must run after RequireAuth.
func (m *AuthMiddleware) RequireRole(required user.RoleMask) gin.HandlerFunc {
	return func(c *gin.Context) {
		flags, ok := RoleFlagsFromContext(c)
		if !ok {
			abortWithError(c, http.StatusUnauthorized, "unauthorized", "Missing identity context")
			return
		}
		if !flags.Has(required) {
			abortWithError(c, http.StatusForbidden, "forbidden", "Requires role: "+strings.Join(required.Names(), "+"))
			return
		}
		c.Next()
	}
}
