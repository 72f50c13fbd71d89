package api

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/charlesng35/workpass/internal/app"
	"github.com/charlesng35/workpass/internal/handlers"
	"github.com/charlesng35/workpass/internal/middleware"
	"github.com/charlesng35/workpass/internal/monitoring"
)

// NewRouter builds the Gin engine, wires middleware and registers every route.
// The database probe is always part of readiness; callers add probes for
// optional backends they configured.
func NewRouter(db *gorm.DB, svc *Services, cfg *app.Config, rateStore middleware.RateStore, readiness ...monitoring.Check) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if svc == nil {
		return nil, fmt.Errorf("services must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if rateStore == nil {
		rateStore = middleware.NewMemoryRateStore()
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Telemetry())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins...))

	registerHealthRoutes(r, db, cfg, readiness)

	limits := cfg.Server.RateLimit
	limit := func(scope string) gin.HandlerFunc {
		return middleware.RateLimit(rateStore, scope, limits.Requests, limits.Window)
	}

	requireAuth := middleware.Auth(svc.JWT)
	api := r.Group("/api")

	registerAuthRoutes(api, handlers.NewAuthHandler(svc.Auth, svc.Signup, svc.Resets), limit)
	registerVerificationRoutes(api, verificationRouteDeps{
		OTP:         handlers.NewOTPHandler(svc.OTP),
		Profile:     handlers.NewProfileHandler(svc.Users, svc.Companies, svc.Manual),
		Waitlist:    handlers.NewWaitlistHandler(svc.Waitlist),
		RequireAuth: requireAuth,
		Members:     middleware.RequireVerifiedMember(svc.Users),
		Limit:       limit,
	})
	registerAdminRoutes(api, adminRouteDeps{
		Manual:      handlers.NewManualReviewHandler(svc.Manual),
		Waitlist:    handlers.NewWaitlistHandler(svc.Waitlist),
		Users:       handlers.NewUserHandler(svc.Users),
		Companies:   handlers.NewCompanyHandler(svc.Companies),
		Audit:       handlers.NewAuditHandler(svc.Audit),
		RequireAuth: requireAuth,
	})

	// Metrics endpoint
	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := strings.TrimSpace(cfg.Monitoring.Prometheus.Endpoint)
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	// NotFound fallback
	r.HandleMethodNotAllowed = true
	r.NoRoute(middleware.NotFoundHandler)
	r.NoMethod(middleware.MethodNotAllowedHandler)

	return r, nil
}
