package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/workpass/internal/handlers"
)

type verificationRouteDeps struct {
	OTP         *handlers.OTPHandler
	Profile     *handlers.ProfileHandler
	Waitlist    *handlers.WaitlistHandler
	RequireAuth gin.HandlerFunc
	Members     gin.HandlerFunc
	Limit       func(scope string) gin.HandlerFunc
}

func registerVerificationRoutes(api *gin.RouterGroup, deps verificationRouteDeps) {
	otp := api.Group("/otp")
	{
		otp.POST("/request", deps.Limit("otp"), deps.OTP.Request)
		otp.POST("/verify", deps.RequireAuth, deps.Limit("otp"), deps.OTP.Verify)
	}

	api.POST("/waitlist", deps.Limit("waitlist"), deps.Waitlist.Submit)

	me := api.Group("/me", deps.RequireAuth)
	{
		me.GET("", deps.Profile.Me)
		me.GET("/access", deps.Profile.Access)
		me.POST("/onboarding", deps.Profile.CompleteOnboarding)
		me.GET("/company", deps.Members, deps.Profile.Company)
	}

	requests := api.Group("/verification/requests", deps.RequireAuth)
	{
		requests.GET("", deps.Profile.ListVerificationRequests)
		requests.POST("", deps.Profile.SubmitVerification)
	}
}
