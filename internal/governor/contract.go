package governor

import (
	"context"
	"errors"
	"time"

	"barbuddy/internal/availability"
	"barbuddy/internal/reservation"
)

// HoldClient is the part of the reservation service the governor drives
type HoldClient interface {
	Hold(ctx context.Context, key reservation.ReservationKey, tableID string) error
	Release(ctx context.Context, key reservation.ReservationKey, tableID string) error
	QueryHeld(ctx context.Context, key reservation.ReservationKey) ([]reservation.HeldTable, error)
	FindAvailable(ctx context.Context, key reservation.ReservationKey, tableTypeID string) ([]reservation.Table, error)
}

// Trigger names the event that invalidates the current holds
type Trigger string

const (
	DateChanged         Trigger = "date_changed"
	TimeChanged         Trigger = "time_changed"
	TableTypeChanged    Trigger = "table_type_changed"
	FocusLost           Trigger = "focus_lost"
	Backgrounded        Trigger = "backgrounded"
	BackNavigation      Trigger = "back_navigation"
	Cancelled           Trigger = "cancelled"
	SubmissionSucceeded Trigger = "submission_succeeded"
	SubmissionFailed    Trigger = "submission_failed"
)

// keepsContext reports whether the trigger keeps the key and catalogue so
// the screen can resume with a resync
func (t Trigger) keepsContext() bool {
	return t == FocusLost || t == Backgrounded
}

// ErrInvalidated is returned when a hold response arrives after the
// reservation context it was issued for has been torn down
var ErrInvalidated = errors.New("reservation context changed while request was in flight")

// Config tunes the governor
type Config struct {
	SelfID         string
	MaxTables      int
	ReleaseTimeout time.Duration
}

const defaultReleaseTimeout = 3 * time.Second

// Update is published to listeners after every state change
type Update struct {
	Key       reservation.ReservationKey  `json:"key"`
	Tables    []availability.TableStatus  `json:"tables"`
	Selection []reservation.SelectedTable `json:"selection"`
	Reason    string                      `json:"reason"`
}

// Listener receives view updates
type Listener func(Update)
