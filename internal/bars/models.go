package bars

import (
	"time"

	"github.com/google/uuid"
)

type Bar struct {
	ID                  uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Name                string    `gorm:"not null" json:"name"`
	Timezone            string    `gorm:"not null;default:'UTC'" json:"timezone"`
	SlotIntervalMinutes int       `gorm:"not null;default:60" json:"slot_interval_minutes"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`

	OpeningHours []OpeningHour `gorm:"foreignKey:BarID;constraint:OnDelete:CASCADE" json:"opening_hours,omitempty"`
	TableTypes   []TableType   `gorm:"foreignKey:BarID;constraint:OnDelete:CASCADE" json:"table_types,omitempty"`
}

// OpeningHour is one weekday of a bar's week. Close at or before Open means
// the bar closes after midnight.
type OpeningHour struct {
	ID      uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	BarID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_opening_hours_bar_weekday" json:"bar_id"`
	Weekday int       `gorm:"not null;uniqueIndex:idx_opening_hours_bar_weekday;check:weekday BETWEEN 0 AND 6" json:"weekday"`
	Open    string    `gorm:"type:varchar(8);not null" json:"open"`
	Close   string    `gorm:"type:varchar(8);not null" json:"close"`
}

type TableType struct {
	ID           uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	BarID        uuid.UUID `gorm:"type:uuid;not null;index" json:"bar_id"`
	Name         string    `gorm:"not null" json:"name"`
	MinimumSpend float64   `gorm:"type:decimal(10,2);default:0" json:"minimum_spend"`
	CreatedAt    time.Time `json:"created_at"`
}

type BarTable struct {
	ID          uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	BarID       uuid.UUID `gorm:"type:uuid;not null;index" json:"bar_id"`
	TableTypeID uuid.UUID `gorm:"type:uuid;not null;index" json:"table_type_id"`
	Name        string    `gorm:"not null" json:"name"`
	MinGuests   int       `gorm:"not null;default:1" json:"min_guests"`
	MaxGuests   int       `gorm:"not null;default:4" json:"max_guests"`
	IsActive    bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`

	TableType TableType `gorm:"foreignKey:TableTypeID" json:"table_type"`
}

func (BarTable) TableName() string {
	return "bar_tables"
}
