package routes

import (
	"poolmate/internal/handlers"
	"poolmate/internal/middleware"

	"github.com/gin-gonic/gin"
)

// SetupRideRoutes sets up ride discovery and membership routes
func SetupRideRoutes(r *gin.RouterGroup, rideHandler *handlers.RideHandler, jwtSecret string) {
	rides := r.Group("/rides")

	// Public discovery
	rides.GET("/available", rideHandler.ListAvailable)
	rides.GET("/nearby", rideHandler.ListNearby)
	rides.GET("/:id", rideHandler.GetRide)

	protected := rides.Group("")
	protected.Use(middleware.AuthRequired(jwtSecret))
	{
		protected.POST("", rideHandler.CreateRide)
		protected.POST("/create", rideHandler.CreateRide)
		protected.PATCH("/edit", rideHandler.EditRide)
		protected.POST("/join", rideHandler.JoinRide)
		protected.POST("/leave", rideHandler.LeaveRide)
		protected.POST("/remove-member", rideHandler.RemoveMember)
		protected.POST("/delete", rideHandler.DeleteRide)

		protected.GET("/my-created", rideHandler.MyCreated)
		protected.GET("/my-joined", rideHandler.MyJoined)
		protected.GET("/:id/events", rideHandler.Events)
	}
}
