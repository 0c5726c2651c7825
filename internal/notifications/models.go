package notifications

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"barbuddy/internal/reservation"
)

// HoldEventType names the lifecycle step of a table hold
type HoldEventType string

const (
	HoldEventHeld     HoldEventType = "TABLE_HELD"
	HoldEventReleased HoldEventType = "TABLE_RELEASED"
	HoldEventConsumed HoldEventType = "TABLE_CONSUMED"
)

// HoldEvent is published to the table-holds topic
type HoldEvent struct {
	ID         uuid.UUID     `json:"id"`
	Type       HoldEventType `json:"type"`
	BarID      string        `json:"bar_id"`
	Date       string        `json:"date"`
	Time       string        `json:"time"`
	TableID    string        `json:"table_id"`
	HolderID   string        `json:"holder_id"`
	OccurredAt time.Time     `json:"occurred_at"`
}

func NewHoldEvent(typ HoldEventType, key reservation.ReservationKey, tableID, holderID string) *HoldEvent {
	return &HoldEvent{
		ID:         uuid.New(),
		Type:       typ,
		BarID:      key.BarID,
		Date:       key.Date,
		Time:       key.Time,
		TableID:    tableID,
		HolderID:   holderID,
		OccurredAt: time.Now().UTC(),
	}
}

// Events of one bar share a partition so consumers see them in order
func (e *HoldEvent) GetPartitionKey() string {
	return e.BarID
}

func (e *HoldEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// BookingConfirmedEvent is published to the bookings topic
type BookingConfirmedEvent struct {
	ID          uuid.UUID                `json:"id"`
	BookingID   string                   `json:"booking_id"`
	BookingRef  string                   `json:"booking_ref"`
	BarID       string                   `json:"bar_id"`
	Date        string                   `json:"date"`
	Time        string                   `json:"time"`
	TableIDs    []string                 `json:"table_ids"`
	HolderID    string                   `json:"holder_id"`
	CustomerID  string                   `json:"customer_id"`
	GuestCount  int                      `json:"guest_count"`
	Drinks      []reservation.DrinkOrder `json:"drinks,omitempty"`
	VoucherCode string                   `json:"voucher_code,omitempty"`
	OccurredAt  time.Time                `json:"occurred_at"`
}

func (e *BookingConfirmedEvent) GetPartitionKey() string {
	return e.BarID
}

func (e *BookingConfirmedEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}
