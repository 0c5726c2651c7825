package realtime

import (
	"context"

	"barbuddy/internal/reservation"
)

// EventType distinguishes hold and release broadcasts
type EventType string

const (
	EventHeld     EventType = "held"
	EventReleased EventType = "released"
)

// Event is a hold or release broadcast for one table of one reservation key
type Event struct {
	Type     EventType `json:"type"`
	TableID  string    `json:"table_id"`
	HolderID string    `json:"holder_id"`
	BarID    string    `json:"bar_id"`
	Date     string    `json:"date"`
	Time     string    `json:"time"`
}

// NewEvent builds an event scoped to key
func NewEvent(typ EventType, key reservation.ReservationKey, tableID, holderID string) Event {
	return Event{
		Type:     typ,
		TableID:  tableID,
		HolderID: holderID,
		BarID:    key.BarID,
		Date:     key.Date,
		Time:     key.Time,
	}
}

// Key returns the reservation key the event belongs to
func (e Event) Key() reservation.ReservationKey {
	return reservation.ReservationKey{BarID: e.BarID, Date: e.Date, Time: e.Time}
}

// Subscription is a live per-bar event feed. Events is closed when the
// subscription drops or is closed; Err then reports why it dropped.
type Subscription interface {
	Events() <-chan Event
	Err() error
	Close() error
}

// Transport opens per-bar subscriptions
type Transport interface {
	Subscribe(ctx context.Context, barID string) (Subscription, error)
}

// Publisher broadcasts events to every subscriber of the event's bar
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}
