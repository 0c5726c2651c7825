package tableholds

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"barbuddy/internal/metrics"
	"barbuddy/internal/reservation"
	"barbuddy/internal/shared/middleware"
	"barbuddy/internal/shared/utils/response"
)

const defaultHeartbeat = 25 * time.Second

type Controller struct {
	service   Service
	metrics   *metrics.Metrics
	heartbeat time.Duration
}

func NewController(service Service, m *metrics.Metrics) *Controller {
	return &Controller{service: service, metrics: m, heartbeat: defaultHeartbeat}
}

//  TABLE HOLDING

func (c *Controller) Hold(ctx *gin.Context) {
	var req HoldRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request data", nil, err.Error())
		return
	}

	key, err := reservation.NewReservationKey(ctx.Param("barId"), req.Date, req.Time)
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid reservation key", nil, err.Error())
		return
	}

	hold, err := c.service.Hold(ctx.Request.Context(), key, req.TableID, middleware.HolderID(ctx))
	if err != nil {
		statusCode := http.StatusInternalServerError
		switch {
		case errors.Is(err, reservation.ErrAlreadyHeld):
			statusCode = http.StatusConflict
		case errors.Is(err, reservation.ErrNotAvailable):
			statusCode = http.StatusGone
		case errors.Is(err, ErrTableNotFound):
			statusCode = http.StatusNotFound
		}
		response.RespondJSON(ctx, "error", statusCode, "Failed to hold table", nil, err.Error())
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Table held successfully", hold, nil)
}

func (c *Controller) Release(ctx *gin.Context) {
	var req HoldRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request data", nil, err.Error())
		return
	}

	key, err := reservation.NewReservationKey(ctx.Param("barId"), req.Date, req.Time)
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid reservation key", nil, err.Error())
		return
	}

	if err := c.service.Release(ctx.Request.Context(), key, req.TableID, middleware.HolderID(ctx)); err != nil {
		response.RespondJSON(ctx, "error", http.StatusInternalServerError, "Failed to release table", nil, err.Error())
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Table released successfully", nil, nil)
}

func (c *Controller) GetHeld(ctx *gin.Context) {
	var query HeldQuery
	if err := ctx.ShouldBindQuery(&query); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Date and time are required", nil, err.Error())
		return
	}

	key, err := reservation.NewReservationKey(ctx.Param("barId"), query.Date, query.Time)
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid reservation key", nil, err.Error())
		return
	}

	held, err := c.service.Held(ctx.Request.Context(), key)
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusInternalServerError, "Failed to get held tables", nil, err.Error())
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Held tables retrieved successfully", held, nil)
}

//  REALTIME STREAM

// Stream relays the bar's hold and release events as server-sent events
func (c *Controller) Stream(ctx *gin.Context) {
	sub, err := c.service.Subscribe(ctx.Request.Context(), ctx.Param("barId"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusServiceUnavailable, "Realtime stream unavailable", nil, err.Error())
		return
	}
	defer sub.Close()
	defer c.metrics.StreamOpened()()

	ctx.Header("Content-Type", "text/event-stream")
	ctx.Header("Cache-Control", "no-cache")
	ctx.Header("Connection", "keep-alive")
	ctx.Header("X-Accel-Buffering", "no")
	ctx.Writer.WriteHeaderNow()
	ctx.Writer.Flush()

	heartbeat := time.NewTicker(c.heartbeat)
	defer heartbeat.Stop()

	ctx.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return false
			}
			ctx.SSEvent(string(ev.Type), ev)
			return true
		case <-heartbeat.C:
			ctx.SSEvent("ping", time.Now().Unix())
			return true
		case <-ctx.Request.Context().Done():
			return false
		}
	})
}
