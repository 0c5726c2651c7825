package database

import (
	"fmt"

	"gorm.io/gorm"

	"barbuddy/internal/bars"
	"barbuddy/internal/bookings"
)

func Migrate(db *gorm.DB) error {
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`).Error; err != nil {
		return fmt.Errorf("failed to enable uuid-ossp: %w", err)
	}

	err := db.AutoMigrate(
		&bars.Bar{},
		&bars.OpeningHour{},
		&bars.TableType{},
		&bars.BarTable{},
		&bookings.Booking{},
		&bookings.BookedTable{},
		&bookings.BookingDrink{},
	)
	if err != nil {
		return err
	}

	return MigrateConstraints(db)
}
