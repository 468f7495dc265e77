package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mescon/Cachearr/internal/logger"
)

// Standard error messages (don't leak internal details)
const (
	ErrMsgDatabaseError      = "Database error"
	ErrMsgInvalidRequest     = "Invalid request"
	ErrMsgInternalError      = "Internal server error"
	ErrMsgRunNotFound        = "Run not found"
	ErrMsgReportNotFound     = "Report not found"
	ErrMsgRunInProgress      = "A run is already in progress"
	ErrMsgServiceUnavailable = "Service unavailable"
)

// respondWithError sends a JSON error response and logs the actual error
func respondWithError(c *gin.Context, status int, publicMsg string, err error) {
	if err != nil {
		logger.Debugf("%s: %v", publicMsg, err)
	}
	c.JSON(status, gin.H{"error": publicMsg})
}

// respondDatabaseError handles database errors consistently
func respondDatabaseError(c *gin.Context, err error) {
	respondWithError(c, http.StatusInternalServerError, ErrMsgDatabaseError, err)
}

func respondNotFound(c *gin.Context, publicMsg string) {
	c.JSON(http.StatusNotFound, gin.H{"error": publicMsg})
}

// respondServiceUnavailable handles service unavailable errors
func respondServiceUnavailable(c *gin.Context, service string) {
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": service + " not available"})
}
