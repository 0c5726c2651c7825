package bars

import (
	"github.com/gin-gonic/gin"
)

func SetupBarRoutes(rg *gin.RouterGroup, controller *Controller) {

	// PUBLIC CATALOGUE

	bars := rg.Group("/bars/:barId")
	{
		bars.GET("/schedule", controller.GetSchedule)      // GET /api/v1/bars/:barId/schedule
		bars.GET("/slots", controller.GetSlots)            // GET /api/v1/bars/:barId/slots?date=
		bars.GET("/table-types", controller.GetTableTypes) // GET /api/v1/bars/:barId/table-types
		bars.GET("/tables", controller.GetTables)          // GET /api/v1/bars/:barId/tables?table_type_id=&date=&time=
	}
}
