package routes

import (
	"poolmate/internal/handlers"
	"poolmate/internal/middleware"

	"github.com/gin-gonic/gin"
)

// SetupAuthRoutes sets up registration, login and profile routes
func SetupAuthRoutes(r *gin.RouterGroup, authHandler *handlers.AuthHandler, jwtSecret string) {
	auth := r.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.GET("/me", middleware.AuthRequired(jwtSecret), authHandler.Me)
	}
}
