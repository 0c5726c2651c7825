package tableholds

import (
	"context"
	"errors"
	"time"

	"barbuddy/internal/reservation"
)

var (
	// ErrTableNotFound is returned for a table outside the bar's catalogue
	ErrTableNotFound = errors.New("table not found")

	// ErrNotHeldByCaller is returned when a booking references a table the caller does not hold
	ErrNotHeldByCaller = errors.New("table is not held by caller")
)

// TableCatalog answers whether a table belongs to a bar
type TableCatalog interface {
	TableExists(ctx context.Context, barID, tableID string) (bool, error)
}

// BookedLookup answers whether a table is already booked for a key
type BookedLookup interface {
	IsBooked(ctx context.Context, key reservation.ReservationKey, tableID string) (bool, error)
}

// HoldRequest identifies one table of one reservation key
type HoldRequest struct {
	TableID string `json:"table_id" binding:"required"`
	Date    string `json:"date" binding:"required"`
	Time    string `json:"time" binding:"required"`
}

// HeldQuery selects the reservation key of a held-tables snapshot
type HeldQuery struct {
	Date string `form:"date" binding:"required"`
	Time string `form:"time" binding:"required"`
}

type HoldResponse struct {
	TableID   string    `json:"table_id"`
	HolderID  string    `json:"holder_id"`
	Refreshed bool      `json:"refreshed"`
	ExpiresAt time.Time `json:"expires_at"`
	TTL       int       `json:"ttl_seconds"`
}
