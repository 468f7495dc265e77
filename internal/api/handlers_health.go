package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mescon/Cachearr/internal/config"
	"github.com/mescon/Cachearr/internal/logger"
)

// formatUptime returns a human-readable uptime string
func formatUptime(uptime time.Duration) string {
	days := int(uptime.Hours()) / 24
	hours := int(uptime.Hours()) % 24
	minutes := int(uptime.Minutes()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}

// handleHealth is unauthenticated so container health checks work without a key.
// It reports "degraded" with HTTP 503 when the database cannot be read.
func (s *RESTServer) handleHealth(c *gin.Context) {
	status := "healthy"
	code := http.StatusOK

	resp := gin.H{
		"version":           config.Version,
		"uptime":            formatUptime(time.Since(s.startTime)),
		"websocket_clients": s.hub.ClientCount(),
	}

	if s.store != nil {
		stats, err := s.store.Stats()
		if err != nil {
			logger.Debugf("Health check database error: %v", err)
			status = "degraded"
			code = http.StatusServiceUnavailable
			resp["database"] = "error"
		} else {
			resp["database"] = "ok"
			resp["database_stats"] = stats
		}
	}
	if s.pipeline != nil {
		resp["run_in_progress"] = s.pipeline.Running()
	}
	if s.scheduler != nil {
		if next := s.scheduler.NextRun(); !next.IsZero() {
			resp["next_run"] = next.Format(time.RFC3339)
		}
	}

	resp["status"] = status
	c.JSON(code, resp)
}
