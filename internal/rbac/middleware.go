package rbac

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"go-timeclock/internal/shared/response"
)

// Authorize checks the authenticated role against the policy table.
func Authorize(enforcer *Enforcer, resource, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := strings.ToUpper(strings.TrimSpace(c.GetString("role")))
		if role == "" {
			response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Missing role in auth context", nil)
			c.Abort()
			return
		}

		allowed, err := enforcer.Enforce(role, resource, action)
		if err != nil {
			response.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Authorization check failed", nil)
			c.Abort()
			return
		}
		if !allowed {
			response.Error(c, http.StatusForbidden, "FORBIDDEN", "You do not have permission to perform this action", nil)
			c.Abort()
			return
		}

		c.Next()
	}
}
