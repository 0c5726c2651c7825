package bars

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"barbuddy/internal/reservation"
	"barbuddy/internal/shared/utils/response"
)

type Controller struct {
	service Service
}

func NewController(service Service) *Controller {
	return &Controller{service: service}
}

func (c *Controller) GetSchedule(ctx *gin.Context) {
	sched, err := c.service.GetSchedule(ctx.Request.Context(), ctx.Param("barId"))
	if err != nil {
		response.RespondJSON(ctx, "error", statusFor(err), "Failed to get schedule", nil, err.Error())
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Schedule retrieved successfully", sched, nil)
}

func (c *Controller) GetSlots(ctx *gin.Context) {
	var query SlotsQuery
	if err := ctx.ShouldBindQuery(&query); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Date is required", nil, err.Error())
		return
	}

	slots, err := c.service.GetSlots(ctx.Request.Context(), ctx.Param("barId"), query.Date)
	if err != nil {
		response.RespondJSON(ctx, "error", statusFor(err), "Failed to get time slots", nil, err.Error())
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Time slots retrieved successfully", slots, nil)
}

func (c *Controller) GetTableTypes(ctx *gin.Context) {
	types, err := c.service.GetTableTypes(ctx.Request.Context(), ctx.Param("barId"))
	if err != nil {
		response.RespondJSON(ctx, "error", statusFor(err), "Failed to get table types", nil, err.Error())
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Table types retrieved successfully", types, nil)
}

func (c *Controller) GetTables(ctx *gin.Context) {
	var query TablesQuery
	if err := ctx.ShouldBindQuery(&query); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Date and time are required", nil, err.Error())
		return
	}

	key, err := reservation.NewReservationKey(ctx.Param("barId"), query.Date, query.Time)
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid reservation key", nil, err.Error())
		return
	}

	tables, err := c.service.GetTables(ctx.Request.Context(), key, query.TableTypeID)
	if err != nil {
		response.RespondJSON(ctx, "error", statusFor(err), "Failed to get tables", nil, err.Error())
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Tables retrieved successfully", tables, nil)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrBarNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidDate):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
