package bookings

import (
	"time"

	"github.com/google/uuid"
)

// Booking is a confirmed reservation of one or more tables for a key
type Booking struct {
	ID          uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	BookingRef  string    `gorm:"unique;not null" json:"booking_ref"`
	BarID       uuid.UUID `gorm:"type:uuid;index;not null" json:"bar_id"`
	Date        string    `gorm:"type:varchar(10);not null" json:"date"`
	Time        string    `gorm:"type:varchar(5);not null" json:"time"`
	HolderID    string    `gorm:"type:varchar(64);index;not null" json:"holder_id"`
	CustomerID  string    `gorm:"type:varchar(64);index" json:"customer_id"`
	GuestCount  int       `gorm:"not null" json:"guest_count"`
	Note        string    `gorm:"type:varchar(500)" json:"note,omitempty"`
	VoucherCode string    `gorm:"type:varchar(32)" json:"voucher_code,omitempty"`
	Status      Status    `gorm:"type:varchar(20);check:status IN ('CONFIRMED');default:'CONFIRMED'" json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Relationships
	Tables []BookedTable  `json:"tables,omitempty" gorm:"foreignKey:BookingID;constraint:OnDelete:CASCADE;"`
	Drinks []BookingDrink `json:"drinks,omitempty" gorm:"foreignKey:BookingID;constraint:OnDelete:CASCADE;"`
}

// BookedTable marks a table as taken for one (bar, date, time). The unique
// index is the last line of defence against double booking.
type BookedTable struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	BookingID uuid.UUID `gorm:"type:uuid;index;not null" json:"booking_id"`
	BarID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_booked_table_slot,priority:1" json:"bar_id"`
	TableID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_booked_table_slot,priority:2" json:"table_id"`
	Date      string    `gorm:"type:varchar(10);not null;uniqueIndex:idx_booked_table_slot,priority:3" json:"date"`
	Time      string    `gorm:"type:varchar(5);not null;uniqueIndex:idx_booked_table_slot,priority:4" json:"time"`
	CreatedAt time.Time `json:"created_at"`
}

// BookingDrink is one line of a drink pre-order
type BookingDrink struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	BookingID uuid.UUID `gorm:"type:uuid;index;not null" json:"booking_id"`
	DrinkID   string    `gorm:"type:varchar(64);not null" json:"drink_id"`
	Quantity  int       `gorm:"not null;check:quantity > 0" json:"quantity"`
}

// TableName sets the table name for Booking
func (Booking) TableName() string {
	return "bookings"
}

// TableName sets the table name for BookedTable
func (BookedTable) TableName() string {
	return "booked_tables"
}

// TableName sets the table name for BookingDrink
func (BookingDrink) TableName() string {
	return "booking_drinks"
}

// TableIDs returns the booked table ids as strings
func (b *Booking) TableIDs() []string {
	ids := make([]string, 0, len(b.Tables))
	for _, t := range b.Tables {
		ids = append(ids, t.TableID.String())
	}
	return ids
}
