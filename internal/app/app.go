package app

import (
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"go-timeclock/internal/shared/connection"
	"go-timeclock/internal/upstream"
)

// BuildApp wires infrastructure and registers every module on the router.
func BuildApp(router *gin.Engine) error {
	gormDB, err := connection.ConnectGORMWithRetry(
		os.Getenv("DB_HOST"),
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
		os.Getenv("DB_PORT"),
		os.Getenv("DB_SSLMODE"),
		5,
	)
	if err != nil {
		return err
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		return err
	}

	redisClient, err := connection.ConnectRedisWithRetry(os.Getenv("REDIS_ADDR"), 5)
	if err != nil {
		return err
	}

	upstreamBaseURL := os.Getenv("UPSTREAM_BASE_URL")
	if upstreamBaseURL == "" {
		return fmt.Errorf("UPSTREAM_BASE_URL is required")
	}
	client := upstream.NewClient(upstreamBaseURL, upstreamTimeout())

	return registerModules(router, sqlDB, gormDB, redisClient, client)
}

func upstreamTimeout() time.Duration {
	raw := os.Getenv("UPSTREAM_TIMEOUT")
	if raw == "" {
		return 0
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0
	}
	return d
}

func attendanceCooldown() time.Duration {
	raw := os.Getenv("ATTENDANCE_COOLDOWN")
	if raw == "" {
		return 0
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0
	}
	return d
}
