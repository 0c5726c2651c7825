package bookings

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"barbuddy/internal/reservation"
)

// ErrTableAlreadyBooked is returned when the booked_tables unique index rejects an insert
var ErrTableAlreadyBooked = errors.New("table already booked for this slot")

type Repository interface {
	// Core booking operations
	CreateBooking(ctx context.Context, booking *Booking) error
	GetBookingByID(ctx context.Context, id uuid.UUID) (*Booking, error)

	// Booked status per reservation key
	BookedTableIDs(ctx context.Context, key reservation.ReservationKey) ([]string, error)
	IsBooked(ctx context.Context, key reservation.ReservationKey, tableID string) (bool, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// CreateBooking stores the booking with its tables and drinks in one
// transaction. A table booked concurrently for the same slot fails the whole
// booking with ErrTableAlreadyBooked.
func (r *repository) CreateBooking(ctx context.Context, booking *Booking) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tables := booking.Tables
		drinks := booking.Drinks

		if err := tx.Omit("Tables", "Drinks").Create(booking).Error; err != nil {
			return fmt.Errorf("failed to create booking: %w", err)
		}

		for i := range tables {
			tables[i].BookingID = booking.ID
		}
		if err := tx.Create(&tables).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrTableAlreadyBooked
			}
			return fmt.Errorf("failed to record booked tables: %w", err)
		}

		if len(drinks) > 0 {
			for i := range drinks {
				drinks[i].BookingID = booking.ID
			}
			if err := tx.Create(&drinks).Error; err != nil {
				return fmt.Errorf("failed to record drinks: %w", err)
			}
		}

		booking.Tables = tables
		booking.Drinks = drinks
		return nil
	})
}

func (r *repository) GetBookingByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	var booking Booking
	err := r.db.WithContext(ctx).
		Preload("Tables").
		Preload("Drinks").
		Where("id = ?", id).
		First(&booking).Error
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

// BookedTableIDs lists the tables booked for key. A bar id that is not a
// UUID cannot have bookings.
func (r *repository) BookedTableIDs(ctx context.Context, key reservation.ReservationKey) ([]string, error) {
	barID, err := uuid.Parse(key.BarID)
	if err != nil {
		return nil, nil
	}

	var tableIDs []uuid.UUID
	err = r.db.WithContext(ctx).
		Model(&BookedTable{}).
		Where("bar_id = ? AND date = ? AND time = ?", barID, key.Date, key.Time).
		Order("table_id").
		Pluck("table_id", &tableIDs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list booked tables: %w", err)
	}

	ids := make([]string, 0, len(tableIDs))
	for _, id := range tableIDs {
		ids = append(ids, id.String())
	}
	return ids, nil
}

func (r *repository) IsBooked(ctx context.Context, key reservation.ReservationKey, tableID string) (bool, error) {
	barID, err := uuid.Parse(key.BarID)
	if err != nil {
		return false, nil
	}
	tableUUID, err := uuid.Parse(tableID)
	if err != nil {
		return false, nil
	}

	var count int64
	err = r.db.WithContext(ctx).
		Model(&BookedTable{}).
		Where("bar_id = ? AND table_id = ? AND date = ? AND time = ?", barID, tableUUID, key.Date, key.Time).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check booked table: %w", err)
	}
	return count > 0, nil
}
