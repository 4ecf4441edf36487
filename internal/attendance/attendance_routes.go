package attendance

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"go-timeclock/internal/middleware"
	"go-timeclock/internal/rbac"
)

func RegisterRoutes(r *gin.RouterGroup, h *Handler, enforcer *rbac.Enforcer, rdb *redis.Client) {
	attendances := r.Group("/attendances")
	attendances.Use(middleware.AuthMiddleware())
	attendances.Use(middleware.RateLimitByUser(rate.Every(time.Second), 5))
	if rdb != nil {
		attendances.Use(middleware.Idempotency(rdb))
	}
	{
		attendances.GET("", rbac.Authorize(enforcer, "attendance", "read"), h.GetAll)
		attendances.GET("/today", rbac.Authorize(enforcer, "attendance", "read"), h.GetToday)
		attendances.POST("/clock-in", rbac.Authorize(enforcer, "attendance", "clock"), h.ClockIn)
		attendances.POST("/clock-out", rbac.Authorize(enforcer, "attendance", "clock"), h.ClockOut)
		attendances.POST("/break-start", rbac.Authorize(enforcer, "attendance", "clock"), h.BreakStart)
		attendances.POST("/break-end", rbac.Authorize(enforcer, "attendance", "clock"), h.BreakEnd)
		attendances.DELETE("/:id/clock-out", rbac.Authorize(enforcer, "attendance", "revoke"), h.RevokeClockOut)
	}
}
