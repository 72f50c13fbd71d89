package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/workpass/internal/monitoring"
	"github.com/charlesng35/workpass/pkg/errors"
	"github.com/charlesng35/workpass/pkg/response"
)

// Health returns a simple status payload useful for liveness checks.
func Health() gin.HandlerFunc {
	return func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	}
}

// Readiness runs the dependency probes. Only a down dependency fails it.
func Readiness(health *monitoring.HealthManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		report := health.Evaluate(requestContext(c))
		if !report.Ready {
			response.Error(c, errors.New("NOT_READY", "A required dependency is unavailable", http.StatusServiceUnavailable).
				WithDetails(map[string]any{"checks": report.Checks}))
			return
		}
		response.Success(c, http.StatusOK, report)
	}
}
