package tableholds

import (
	"github.com/gin-gonic/gin"
)

func SetupHoldRoutes(rg *gin.RouterGroup, controller *Controller, auth gin.HandlerFunc) {

	// PUBLIC HOLD STATE

	holds := rg.Group("/bars/:barId/holds")
	{
		holds.GET("", controller.GetHeld)       // GET /api/v1/bars/:barId/holds?date=&time=
		holds.GET("/stream", controller.Stream) // GET /api/v1/bars/:barId/holds/stream
	}

	// SESSION HOLD OPERATIONS

	sessionHolds := rg.Group("/bars/:barId/holds")
	sessionHolds.Use(auth)
	{
		sessionHolds.POST("", controller.Hold)            // POST /api/v1/bars/:barId/holds
		sessionHolds.POST("/release", controller.Release) // POST /api/v1/bars/:barId/holds/release
	}
}
