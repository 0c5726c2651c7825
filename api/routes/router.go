// api/routes/router.go
package routes

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"barbuddy/internal/bars"
	"barbuddy/internal/bookings"
	"barbuddy/internal/metrics"
	"barbuddy/internal/notifications"
	"barbuddy/internal/realtime"
	"barbuddy/internal/sessions"
	"barbuddy/internal/shared/config"
	"barbuddy/internal/shared/database"
	"barbuddy/internal/shared/middleware"
	"barbuddy/internal/tableholds"
	"barbuddy/pkg/cache"
	"barbuddy/pkg/logger"
)

const serviceName = "barbuddy-reservation"

// Router holds all route dependencies
type Router struct {
	config    *config.Config
	db        *database.DB
	log       *logger.Logger
	metrics   *metrics.Metrics
	events    notifications.Producer
	holdStore *tableholds.HoldStore

	// Shared between route groups
	bookingRepo bookings.Repository
	barService  bars.Service
	holdService tableholds.Service
	sessionAuth gin.HandlerFunc
}

// NewRouter creates a new router instance. m may be nil when metrics are disabled.
func NewRouter(cfg *config.Config, db *database.DB, holdStore *tableholds.HoldStore,
	events notifications.Producer, m *metrics.Metrics, log *logger.Logger) *Router {
	return &Router{
		config:    cfg,
		db:        db,
		log:       log,
		metrics:   m,
		events:    events,
		holdStore: holdStore,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	// Health check and basic info endpoints
	r.setupHealthRoutes(engine)

	r.bookingRepo = bookings.NewRepository(r.db.PostgreSQL)
	r.sessionAuth = middleware.SessionAuth(r.config, r.log)

	// API routes
	api := engine.Group(r.config.GetAPIBasePath())
	{
		r.setupSessionRoutes(api)

		// Bars before holds: the hold service checks tables against the catalogue
		r.setupBarRoutes(api)
		r.setupHoldRoutes(api)

		// Holds before bookings: a booking consumes holds
		r.setupBookingRoutes(api)
	}
}

// setupHealthRoutes sets up health check, status and metrics routes
func (r *Router) setupHealthRoutes(engine *gin.Engine) {
	engine.GET("/health", func(c *gin.Context) {
		if err := r.db.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "unhealthy",
				"error":     err.Error(),
				"timestamp": time.Now(),
				"service":   serviceName,
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"service":   serviceName,
		})
	})

	engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
			"version": r.config.APIVersion,
		})
	})

	engine.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "operational",
			"api_version": r.config.APIVersion,
			"hold_ttl":    r.holdStore.TTL().String(),
			"timestamp":   time.Now(),
		})
	})

	if r.metrics != nil {
		engine.GET(r.config.Metrics.Path, gin.WrapH(r.metrics.Handler()))
	}
}

// setupSessionRoutes configures session token issuance
func (r *Router) setupSessionRoutes(rg *gin.RouterGroup) {
	sessionService := sessions.NewService(r.config, r.log)
	sessions.SetupSessionRoutes(rg, sessions.NewController(sessionService))
}

// setupBarRoutes configures the bar catalogue routes
func (r *Router) setupBarRoutes(rg *gin.RouterGroup) {
	barRepo := bars.NewRepository(r.db.PostgreSQL)
	cacheService := cache.NewService(r.db.Redis, r.log)
	r.barService = bars.NewService(barRepo, r.bookingRepo, cacheService, r.config.SlotInterval, r.log)

	bars.SetupBarRoutes(rg, bars.NewController(r.barService))
}

// setupHoldRoutes configures table hold routes and the realtime stream
func (r *Router) setupHoldRoutes(rg *gin.RouterGroup) {
	r.holdService = tableholds.NewService(r.holdStore, tableholds.Collaborators{
		Catalog:   r.barService,
		Booked:    r.bookingRepo,
		Publisher: realtime.NewRedisPublisher(r.db.Redis),
		Transport: realtime.NewRedisTransport(r.db.Redis, r.log),
		Events:    r.events,
		Metrics:   r.metrics,
	}, r.log)

	tableholds.SetupHoldRoutes(rg, tableholds.NewController(r.holdService, r.metrics), r.sessionAuth)
}

// setupBookingRoutes configures booking submission routes
func (r *Router) setupBookingRoutes(rg *gin.RouterGroup) {
	bookingService := bookings.NewService(r.bookingRepo, r.holdService, r.events, r.metrics, r.log)
	bookings.SetupBookingRoutes(rg, bookings.NewController(bookingService), r.sessionAuth)
}
