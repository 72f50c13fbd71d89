package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/workpass/internal/handlers"
)

func registerAuthRoutes(api *gin.RouterGroup, handler *handlers.AuthHandler, limit func(scope string) gin.HandlerFunc) {
	auth := api.Group("/auth")
	{
		auth.POST("/register", limit("register"), handler.Register)
		auth.POST("/signup", limit("signup"), handler.StartSignup)
		auth.POST("/signup/complete", limit("signup"), handler.CompleteSignup)
		auth.POST("/login", limit("login"), handler.Login)
		auth.POST("/password/forgot", limit("password"), handler.ForgotPassword)
		auth.POST("/password/reset", limit("password"), handler.ResetPassword)
	}
}
