package payroll

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"go-timeclock/internal/middleware"
	"go-timeclock/internal/rbac"
)

func RegisterRoutes(r *gin.RouterGroup, h *Handler, enforcer *rbac.Enforcer, rdb *redis.Client) {
	payrolls := r.Group("/payrolls")
	payrolls.Use(middleware.AuthMiddleware())
	payrolls.Use(middleware.ExtractUserID())
	if rdb != nil {
		payrolls.Use(middleware.Idempotency(rdb))
	}
	{
		payrolls.GET("", rbac.Authorize(enforcer, "payroll", "read"), h.GetAll)
		payrolls.GET("/:id", rbac.Authorize(enforcer, "payroll", "read"), h.GetByID)
		payrolls.POST("", rbac.Authorize(enforcer, "payroll", "write"), h.Create)
		payrolls.PUT("/:id", rbac.Authorize(enforcer, "payroll", "write"), h.Update)
		payrolls.POST("/:id/status", rbac.Authorize(enforcer, "payroll", "approve"), h.ChangeStatus)
		payrolls.DELETE("/:id", rbac.Authorize(enforcer, "payroll", "write"), h.Delete)
		payrolls.GET("/worked-hours/:employee_id", rbac.Authorize(enforcer, "payroll", "read"), h.WorkedHours)
	}
}
