package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// Logger wraps slog.Logger with reservation-specific helpers
type Logger struct {
	*slog.Logger
}

// New creates a logger writing to stdout at the LOG_LEVEL level
func New() *Logger {
	return NewWithLevel(os.Getenv("LOG_LEVEL"))
}

// NewWithLevel creates a stdout logger at the named level
func NewWithLevel(levelStr string) *Logger {
	level := getLogLevel(levelStr)

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	// Text output is easier to read in development, JSON in production
	var handler slog.Handler
	if gin.Mode() == gin.DebugMode {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return NewWithHandler(handler)
}

// NewWithHandler creates a logger on top of an arbitrary slog handler
func NewWithHandler(handler slog.Handler) *Logger {
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewNop creates a logger that discards everything
func NewNop() *Logger {
	return NewWithHandler(slog.NewTextHandler(io.Discard, nil))
}

// getLogLevel converts string to slog.Level
func getLogLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithSession adds the holder (session) id to logger context
func (l *Logger) WithSession(holderID string) *Logger {
	return &Logger{
		Logger: l.Logger.With(slog.String("holder_id", holderID)),
	}
}

// WithError adds error to logger context
func (l *Logger) WithError(err error) *Logger {
	return &Logger{
		Logger: l.Logger.With(slog.String("error", err.Error())),
	}
}

// WithFields adds multiple fields to logger context
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, slog.Any(k, v))
	}
	return &Logger{
		Logger: l.Logger.With(args...),
	}
}

// HTTP logging methods

// LogHTTPRequest logs an HTTP request
func (l *Logger) LogHTTPRequest(c *gin.Context, duration time.Duration) {
	l.Logger.InfoContext(c.Request.Context(),
		"HTTP Request",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("query", c.Request.URL.RawQuery),
		slog.Int("status", c.Writer.Status()),
		slog.Duration("duration", duration),
		slog.String("ip", c.ClientIP()),
		slog.String("user_agent", c.Request.UserAgent()),
		slog.Int("size", c.Writer.Size()),
	)
}

// Hold logging methods

// LogHoldAcquired logs a successful table hold
func (l *Logger) LogHoldAcquired(ctx context.Context, key, tableID, holderID string) {
	l.Logger.InfoContext(ctx,
		"Hold Acquired",
		slog.String("key", key),
		slog.String("table_id", tableID),
		slog.String("holder_id", holderID),
	)
}

// LogHoldRejected logs a refused hold attempt
func (l *Logger) LogHoldRejected(ctx context.Context, key, tableID, reason string) {
	l.Logger.InfoContext(ctx,
		"Hold Rejected",
		slog.String("key", key),
		slog.String("table_id", tableID),
		slog.String("reason", reason),
	)
}

// LogHoldReleased logs a table release
func (l *Logger) LogHoldReleased(ctx context.Context, key, tableID, holderID string) {
	l.Logger.InfoContext(ctx,
		"Hold Released",
		slog.String("key", key),
		slog.String("table_id", tableID),
		slog.String("holder_id", holderID),
	)
}

// LogReleaseFailed logs a release that could not be confirmed. Release
// failures are never retried; the backend hold expiry covers them.
func (l *Logger) LogReleaseFailed(ctx context.Context, key, tableID string, err error) {
	l.Logger.WarnContext(ctx,
		"Release Failed",
		slog.String("key", key),
		slog.String("table_id", tableID),
		slog.String("error", err.Error()),
	)
}

// LogMassRelease logs the outcome of releasing every held table at once
func (l *Logger) LogMassRelease(ctx context.Context, key, trigger string, released, failed int) {
	l.Logger.InfoContext(ctx,
		"Mass Release",
		slog.String("key", key),
		slog.String("trigger", trigger),
		slog.Int("released", released),
		slog.Int("failed", failed),
	)
}

// LogRealtimeDropped logs a realtime event that was not applied
func (l *Logger) LogRealtimeDropped(ctx context.Context, eventType, tableID, reason string) {
	l.Logger.DebugContext(ctx,
		"Realtime Event Dropped",
		slog.String("type", eventType),
		slog.String("table_id", tableID),
		slog.String("reason", reason),
	)
}

// Booking logging methods

// LogBookingSubmitted logs a booking submission outcome
func (l *Logger) LogBookingSubmitted(ctx context.Context, key string, tables int, bookingID string, err error) {
	if err != nil {
		l.Logger.WarnContext(ctx,
			"Booking Submission Failed",
			slog.String("key", key),
			slog.Int("tables", tables),
			slog.String("error", err.Error()),
		)
		return
	}
	l.Logger.InfoContext(ctx,
		"Booking Submitted",
		slog.String("key", key),
		slog.Int("tables", tables),
		slog.String("booking_id", bookingID),
	)
}

// Security logging methods

// LogAuthFailure logs failed authentication
func (l *Logger) LogAuthFailure(ctx context.Context, reason, ip string) {
	l.Logger.WarnContext(ctx,
		"Authentication Failure",
		slog.String("reason", reason),
		slog.String("ip", ip),
	)
}

// LogRateLimitExceeded logs rate limit exceeded
func (l *Logger) LogRateLimitExceeded(ctx context.Context, ip, endpoint string) {
	l.Logger.WarnContext(ctx,
		"Rate Limit Exceeded",
		slog.String("ip", ip),
		slog.String("endpoint", endpoint),
	)
}

// Helper methods for common patterns

// DebugWithContext logs a debug message with context
func (l *Logger) DebugWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, slog.Any(k, v))
	}
	l.Logger.DebugContext(ctx, msg, args...)
}

// Global logger instance (can be replaced with dependency injection)
var defaultLogger = New()

// GetDefault returns the default logger instance
func GetDefault() *Logger {
	return defaultLogger
}

// SetDefault sets the default logger instance
func SetDefault(logger *Logger) {
	defaultLogger = logger
}
