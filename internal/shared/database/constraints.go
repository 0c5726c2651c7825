package database

import (
	"gorm.io/gorm"
)

// MigrateConstraints adds the indexes the booking path depends on
func MigrateConstraints(db *gorm.DB) error {
	// A table can be booked once per bar, date and time
	err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_booked_table_slot
		ON booked_tables (bar_id, table_id, date, time);
	`).Error
	if err != nil {
		return err
	}

	// Booked status lookups for a whole reservation key
	err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_booked_tables_key
		ON booked_tables (bar_id, date, time);
	`).Error
	if err != nil {
		return err
	}

	// Table listings by type
	err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_bar_tables_bar_type_active
		ON bar_tables (bar_id, table_type_id)
		WHERE is_active;
	`).Error
	if err != nil {
		return err
	}

	return nil
}
