package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/charlesng35/workpass/internal/app"
	"github.com/charlesng35/workpass/internal/handlers"
	"github.com/charlesng35/workpass/internal/monitoring"
	"github.com/charlesng35/workpass/internal/monitoring/checks"
)

func registerHealthRoutes(r *gin.Engine, db *gorm.DB, cfg *app.Config, readiness []monitoring.Check) {
	if cfg == nil || !cfg.Monitoring.Health.Enabled {
		r.GET("/health", disabledHealthHandler)
		r.GET("/health/ready", disabledHealthHandler)
		return
	}

	r.GET("/health", handlers.Health())
	health := monitoring.NewHealthManager(checks.Database(db))
	for _, check := range readiness {
		health.Register(check)
	}
	r.GET("/health/ready", handlers.Readiness(health))
}

func disabledHealthHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"success": false,
		"status":  "disabled",
	})
}
