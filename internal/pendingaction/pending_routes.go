package pendingaction

import (
	"github.com/gin-gonic/gin"

	"go-timeclock/internal/middleware"
	"go-timeclock/internal/rbac"
)

func RegisterRoutes(r *gin.RouterGroup, h *Handler, enforcer *rbac.Enforcer) {
	sync := r.Group("/sync")
	sync.Use(middleware.AuthMiddleware())
	{
		sync.GET("/pending", h.Status)
		sync.POST("/drain", rbac.Authorize(enforcer, "sync", "drain"), h.Drain)
	}
}
