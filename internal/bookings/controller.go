package bookings

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"barbuddy/internal/reservation"
	"barbuddy/internal/shared/middleware"
	"barbuddy/internal/shared/utils/response"
	"barbuddy/internal/tableholds"
)

type Controller struct {
	service Service
}

func NewController(service Service) *Controller {
	return &Controller{service: service}
}

// SubmitBooking handles POST /api/v1/bookings
func (c *Controller) SubmitBooking(ctx *gin.Context) {
	var draft reservation.BookingDraft
	if err := ctx.ShouldBindJSON(&draft); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	confirmation, err := c.service.SubmitBooking(ctx.Request.Context(), draft, middleware.HolderID(ctx), middleware.CustomerID(ctx))
	if err != nil {
		statusCode := http.StatusInternalServerError
		switch {
		case errors.Is(err, ErrInvalidDraft):
			statusCode = http.StatusBadRequest
		case errors.Is(err, tableholds.ErrNotHeldByCaller):
			statusCode = http.StatusConflict
		case errors.Is(err, reservation.ErrNotAvailable):
			statusCode = http.StatusGone
		}
		response.RespondJSON(ctx, "error", statusCode, "Failed to submit booking", nil, err.Error())
		return
	}

	response.RespondJSON(ctx, "success", http.StatusCreated, "Booking confirmed", confirmation, nil)
}

// GetBooking handles GET /api/v1/bookings/:id
func (c *Controller) GetBooking(ctx *gin.Context) {
	booking, err := c.service.GetBooking(ctx.Request.Context(), ctx.Param("id"), middleware.HolderID(ctx))
	if err != nil {
		if errors.Is(err, ErrBookingNotFound) {
			response.RespondJSON(ctx, "error", http.StatusNotFound, "Booking not found", nil, nil)
			return
		}
		response.RespondJSON(ctx, "error", http.StatusInternalServerError, "Failed to get booking", nil, err.Error())
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Booking retrieved successfully", booking, nil)
}
