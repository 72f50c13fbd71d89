package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/workpass/internal/handlers"
	"github.com/charlesng35/workpass/internal/middleware"
)

type adminRouteDeps struct {
	Manual      *handlers.ManualReviewHandler
	Waitlist    *handlers.WaitlistHandler
	Users       *handlers.UserHandler
	Companies   *handlers.CompanyHandler
	Audit       *handlers.AuditHandler
	RequireAuth gin.HandlerFunc
}

func registerAdminRoutes(api *gin.RouterGroup, deps adminRouteDeps) {
	admin := api.Group("/admin", deps.RequireAuth, middleware.RequireAdmin())

	requests := admin.Group("/verification/requests")
	{
		requests.GET("", deps.Manual.List)
		requests.GET("/:id", deps.Manual.Get)
		requests.POST("/:id/approve", deps.Manual.Approve)
		requests.POST("/:id/reject", deps.Manual.Reject)
	}

	waitlist := admin.Group("/waitlist")
	{
		waitlist.GET("", deps.Waitlist.List)
		waitlist.GET("/:id", deps.Waitlist.Get)
		waitlist.POST("/:id/approve", deps.Waitlist.Approve)
		waitlist.POST("/:id/reject", deps.Waitlist.Reject)
	}

	users := admin.Group("/users")
	{
		users.GET("", deps.Users.List)
		users.GET("/:id", deps.Users.Get)
		users.PATCH("/:id", deps.Users.Update)
		users.DELETE("/:id", deps.Users.Delete)
	}

	admin.GET("/companies", deps.Companies.List)
	admin.GET("/audit", deps.Audit.List)
}
