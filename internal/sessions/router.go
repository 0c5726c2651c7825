package sessions

import (
	"github.com/gin-gonic/gin"
)

// SetupSessionRoutes registers the session routes. Opening a session needs
// no authentication: the customer id comes from the app's own sign-in.
func SetupSessionRoutes(rg *gin.RouterGroup, controller *Controller) {
	sessions := rg.Group("/sessions")
	{
		sessions.POST("", controller.Open) // POST /api/v1/sessions
	}
}
