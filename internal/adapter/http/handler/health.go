package handler

import (
	"context"
	"net/http"
	"time"

	"economy-core/internal/core/ports"

	"github.com/gin-gonic/gin"
)

const healthCheckTimeout = 2 * time.Second

// HealthCheck returns a deep health handler that pings every dependency.
// Any failed check turns the response into a 503 with per-dependency detail.
func HealthCheck(degraded ports.DegradedMonitor, checkers ...ports.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := http.StatusOK
		checks := make(map[string]string, len(checkers)+1)

		for _, checker := range checkers {
			ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
			err := checker.Ping(ctx)
			cancel()
			if err != nil {
				checks[checker.Name()] = "down: " + err.Error()
				status = http.StatusServiceUnavailable
			} else {
				checks[checker.Name()] = "up"
			}
		}

		if degraded != nil && degraded.Degraded() {
			checks["engine"] = "degraded"
			status = http.StatusServiceUnavailable
		}

		overall := "ok"
		if status != http.StatusOK {
			overall = "unavailable"
		}

		c.JSON(status, gin.H{
			"status": overall,
			"checks": checks,
		})
	}
}
