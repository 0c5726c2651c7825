package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"barbuddy/api/routes"
	"barbuddy/internal/metrics"
	"barbuddy/internal/notifications"
	"barbuddy/internal/shared/config"
	"barbuddy/internal/shared/database"
	"barbuddy/internal/shared/middleware"
	"barbuddy/internal/tableholds"
	"barbuddy/pkg/logger"
	"barbuddy/pkg/ratelimit"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	appLogger := logger.GetDefault()

	// Smart environment loading
	if err := godotenv.Load(); err != nil {
		// Check if we're in production/container mode
		if os.Getenv("GIN_MODE") == "release" || os.Getenv("DOCKER_CONTAINER") == "true" {
			appLogger.Info("Production environment: using container environment variables")
		} else {
			appLogger.Info("No .env file found, using system environment variables")
		}
	} else {
		appLogger.Info("Development environment: loaded .env file")
	}

	cfg := config.Load()

	// Set Gin mode (debug/release) before building the logger so it picks the right format
	gin.SetMode(cfg.GinMode)
	appLogger = logger.NewWithLevel(cfg.LogLevel)
	logger.SetDefault(appLogger)
	appLogger.Info("Starting reservation service",
		slog.String("version", Version),
		slog.String("build_time", BuildTime),
		slog.String("commit", GitCommit),
	)

	db, err := database.InitDB(context.Background(), cfg, appLogger)
	if err != nil {
		appLogger.Error("Failed to connect to databases", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Hold scripts are loaded up front so the first hold does not pay for it
	holdStore := tableholds.NewHoldStore(db.Redis, cfg.Redis.HoldTTL)
	preloadCtx, preloadCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := holdStore.PreloadScripts(preloadCtx); err != nil {
		// Scripts will be loaded on first use
		appLogger.Warn("Failed to preload hold scripts", slog.Any("error", err))
	} else {
		appLogger.Info("Hold scripts preloaded", slog.Duration("hold_ttl", cfg.Redis.HoldTTL))
	}
	preloadCancel()

	// Domain events
	var events notifications.Producer = notifications.NoopProducer{}
	if cfg.Kafka.Enabled {
		producerConfig := notifications.DefaultKafkaProducerConfig()
		producerConfig.Brokers = cfg.Kafka.Brokers
		producerConfig.ClientID = cfg.Kafka.ClientID
		producerConfig.HoldTopic = cfg.Kafka.HoldTopic
		producerConfig.BookingTopic = cfg.Kafka.BookingTopic

		kafkaProducer, err := notifications.NewKafkaEventProducer(producerConfig, appLogger)
		if err != nil {
			appLogger.Error("Failed to initialize Kafka producer, continuing without domain events", slog.Any("error", err))
		} else {
			events = kafkaProducer
			appLogger.Info("Kafka producer initialized", slog.Any("brokers", cfg.Kafka.Brokers))
		}
	} else {
		appLogger.Info("Kafka disabled, domain events will not be published")
	}
	defer func() {
		if err := events.Close(); err != nil {
			appLogger.Error("Error closing event producer", slog.Any("error", err))
		}
	}()

	var serviceMetrics *metrics.Metrics
	if cfg.Metrics.Enabled {
		serviceMetrics = metrics.New("barbuddy-reservation")
	}

	// Initialize Rate Limiter
	var rateLimiter *ratelimit.RateLimiter
	if cfg.RateLimit.Enabled {
		rateLimiter = ratelimit.NewRateLimiter(db.Redis, &ratelimit.Config{
			Enabled:         cfg.RateLimit.Enabled,
			WindowDuration:  cfg.RateLimit.WindowDuration,
			DefaultRequests: cfg.RateLimit.DefaultRequests,
			PublicRequests:  cfg.RateLimit.PublicRequests,
			SessionRequests: cfg.RateLimit.SessionRequests,
			HoldRequests:    cfg.RateLimit.HoldRequests,
			BookingRequests: cfg.RateLimit.BookingRequests,
			HealthRequests:  cfg.RateLimit.HealthRequests,
			WhitelistedIPs:  cfg.RateLimit.WhitelistedIPs,
		})
		appLogger.Info("Rate limiter initialized",
			slog.Duration("window", cfg.RateLimit.WindowDuration),
			slog.Int("hold_requests", cfg.RateLimit.HoldRequests),
			slog.Int("booking_requests", cfg.RateLimit.BookingRequests),
		)
	} else {
		appLogger.Info("Rate limiting disabled")
	}

	engine := setupRouter(cfg, db, holdStore, events, serviceMetrics, rateLimiter, appLogger)

	// No WriteTimeout: hold streams stay open for as long as the client listens
	srv := &http.Server{
		Addr:           cfg.GetServerAddress(),
		Handler:        engine,
		ReadTimeout:    cfg.ReadTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxHeaderBytes: cfg.MaxHeaderBytes,
	}

	go func() {
		appLogger.Info("Server running",
			slog.String("address", cfg.GetServerAddress()),
			slog.String("health_check", fmt.Sprintf("http://localhost:%s/health", cfg.Port)),
			slog.String("api_base", cfg.GetAPIBasePath()),
			slog.Bool("kafka", cfg.Kafka.Enabled),
			slog.Bool("metrics", cfg.Metrics.Enabled),
			slog.Bool("rate_limiting", cfg.RateLimit.Enabled),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Server failed", slog.Any("error", err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Forced shutdown", slog.Any("error", err))
	}

	appLogger.Info("Server exited gracefully")
}

func setupRouter(cfg *config.Config, db *database.DB, holdStore *tableholds.HoldStore, events notifications.Producer,
	m *metrics.Metrics, rateLimiter *ratelimit.RateLimiter, appLogger *logger.Logger) *gin.Engine {
	engine := gin.New()

	// Logs requests + recovers from panics
	engine.Use(middleware.RequestLogger(appLogger), gin.Recovery())
	if m != nil {
		engine.Use(m.Middleware())
	}

	// CORS configuration
	engine.Use(cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			return true // allow every origin dynamically
		},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	if rateLimiter != nil {
		engine.Use(ratelimit.Middleware(rateLimiter, appLogger))
	}

	appRouter := routes.NewRouter(cfg, db, holdStore, events, m, appLogger)
	appRouter.SetupRoutes(engine)

	return engine
}
