package bookings

import (
	"github.com/gin-gonic/gin"
)

// SetupBookingRoutes configures all booking-related routes
func SetupBookingRoutes(rg *gin.RouterGroup, controller *Controller, auth gin.HandlerFunc) {
	bookings := rg.Group("/bookings")
	bookings.Use(auth)
	{
		bookings.POST("", controller.SubmitBooking) // POST /api/v1/bookings
		bookings.GET("/:id", controller.GetBooking) // GET /api/v1/bookings/:id
	}
}

// Route definitions for reference:
//
// BOOKING SUBMISSION
// POST   /api/v1/bookings       - Book the tables this session holds
// Request body: { "key": {"bar_id","date","time"}, "tables": [{"id"}], "guest_count": 4, "note": "" }
//
// BOOKING RETRIEVAL
// GET    /api/v1/bookings/:id   - Get a booking made by this session
//
// Key Flow After Table Holding:
// 1. Session holds tables with POST /bars/:barId/holds
// 2. Session submits the booking with POST /bookings
// 3. Service checks booked status and hold ownership, then records the booking
// 4. Holds are consumed; other sessions see the tables as booked on their next lookup
