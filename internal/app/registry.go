package app

import (
	"database/sql"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"go-timeclock/internal/attendance"
	"go-timeclock/internal/messaging/kafka"
	"go-timeclock/internal/middleware"
	"go-timeclock/internal/payroll"
	"go-timeclock/internal/pendingaction"
	"go-timeclock/internal/rbac"
	"go-timeclock/internal/timesheet"
	"go-timeclock/internal/upstream"
)

func registerModules(
	router *gin.Engine,
	db *sql.DB,
	gormDB *gorm.DB,
	rdb *redis.Client,
	client upstream.Client,
) error {
	// --- Repositories ---
	attendanceRepo := attendance.NewRepository(gormDB)
	payrollRepo := payroll.NewRepository(gormDB)
	pendingRepo := pendingaction.NewRepository(db)
	outboxRepo := kafka.NewOutboxRepository(db)
	timesheetRepo := timesheet.NewRepository(gormDB)

	// --- RBAC Core ---
	enforcer, err := rbac.NewEnforcer()
	if err != nil {
		return err
	}

	// --- Services ---
	drainer := pendingaction.NewDrainer(pendingRepo, client)
	attendanceService := attendance.NewService(db, attendanceRepo, pendingRepo, outboxRepo, client, attendanceCooldown())
	pendingService := pendingaction.NewService(pendingRepo, drainer)
	payrollService := payroll.NewService(db, payrollRepo, outboxRepo, timesheetRepo, client)

	// --- Handlers ---
	attendanceHandler := attendance.NewHandler(attendanceService)
	pendingHandler := pendingaction.NewHandler(pendingService)
	payrollHandler := payroll.NewHandler(payrollService)

	// --- Routes Registration ---
	router.Use(middleware.RequestID())
	router.Use(middleware.ContextLogger(zap.L()))
	router.Use(middleware.RateLimitByIP(rate.Limit(20), 40))

	api := router.Group("/api/v1")
	{
		attendance.RegisterRoutes(api, attendanceHandler, enforcer, rdb)
		pendingaction.RegisterRoutes(api, pendingHandler, enforcer)
		payroll.RegisterRoutes(api, payrollHandler, enforcer, rdb)
	}

	return nil
}
