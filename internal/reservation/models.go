package reservation

import (
	"fmt"
	"time"
)

// MaxTables is the maximum number of tables one session may hold at once
const MaxTables = 5

// Date and time formats used in reservation keys
const (
	DateFormat = "2006-01-02" // YYYY-MM-DD
	TimeFormat = "15:04"      // HH:MM
)

// ReservationKey is the unit of contention: every hold, release, query and
// realtime event is scoped to one (bar, date, time) tuple.
type ReservationKey struct {
	BarID string `json:"bar_id"`
	Date  string `json:"date"`
	Time  string `json:"time"`
}

// NewReservationKey builds a key and validates its date and time parts
func NewReservationKey(barID, date, clock string) (ReservationKey, error) {
	key := ReservationKey{BarID: barID, Date: date, Time: clock}
	if err := key.Validate(); err != nil {
		return ReservationKey{}, err
	}
	return key, nil
}

// Validate checks that every component of the key is present and well-formed
func (k ReservationKey) Validate() error {
	if k.BarID == "" {
		return fmt.Errorf("reservation key: bar id is required")
	}
	if _, err := time.Parse(DateFormat, k.Date); err != nil {
		return fmt.Errorf("reservation key: invalid date %q", k.Date)
	}
	if _, err := time.Parse(TimeFormat, k.Time); err != nil {
		return fmt.Errorf("reservation key: invalid time %q", k.Time)
	}
	return nil
}

// IsZero reports whether no key has been chosen yet
func (k ReservationKey) IsZero() bool {
	return k == ReservationKey{}
}

func (k ReservationKey) String() string {
	return k.BarID + "@" + k.Date + "T" + k.Time
}

// Table is a bookable physical table. Identity is ID.
type Table struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	TableTypeID   string  `json:"table_type_id"`
	TableTypeName string  `json:"table_type_name"`
	MinGuests     int     `json:"min_guests"`
	MaxGuests     int     `json:"max_guests"`
	MinimumSpend  float64 `json:"minimum_spend"`
	Booked        bool    `json:"booked"`
}

// HeldTable is one entry of a held-tables snapshot
type HeldTable struct {
	TableID  string `json:"table_id"`
	HolderID string `json:"holder_id"`
}

// SelectedTable is a table the current session holds and intends to book
type SelectedTable struct {
	ID            string `json:"id" validate:"required"`
	Name          string `json:"name"`
	TableTypeID   string `json:"table_type_id"`
	TableTypeName string `json:"table_type_name"`
}

// DrinkOrder is one line of an optional drink pre-order
type DrinkOrder struct {
	DrinkID  string `json:"drink_id" validate:"required"`
	Quantity int    `json:"quantity" validate:"min=1,max=50"`
}

// BookingDraft is assembled at submission time only
type BookingDraft struct {
	Key         ReservationKey  `json:"key"`
	Tables      []SelectedTable `json:"tables" validate:"required,min=1,max=5,dive"`
	GuestCount  int             `json:"guest_count" validate:"min=1,max=99"`
	Note        string          `json:"note" validate:"max=500"`
	Drinks      []DrinkOrder    `json:"drinks,omitempty" validate:"omitempty,dive"`
	VoucherCode string          `json:"voucher_code,omitempty" validate:"omitempty,max=32"`
}

// TableIDs returns the ids of the draft's tables in order
func (d BookingDraft) TableIDs() []string {
	ids := make([]string, 0, len(d.Tables))
	for _, t := range d.Tables {
		ids = append(ids, t.ID)
	}
	return ids
}

// BookingConfirmation is returned by the reservation service on success
type BookingConfirmation struct {
	BookingID  string `json:"booking_id"`
	BookingRef string `json:"booking_ref"`
}
