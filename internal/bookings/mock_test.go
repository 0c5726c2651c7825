package bookings

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"barbuddy/internal/notifications"
	"barbuddy/internal/reservation"
)

type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) CreateBooking(ctx context.Context, booking *Booking) error {
	args := m.Called(ctx, booking)
	return args.Error(0)
}

func (m *mockRepository) GetBookingByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	args := m.Called(ctx, id)
	booking, _ := args.Get(0).(*Booking)
	return booking, args.Error(1)
}

func (m *mockRepository) BookedTableIDs(ctx context.Context, key reservation.ReservationKey) ([]string, error) {
	args := m.Called(ctx, key)
	ids, _ := args.Get(0).([]string)
	return ids, args.Error(1)
}

func (m *mockRepository) IsBooked(ctx context.Context, key reservation.ReservationKey, tableID string) (bool, error) {
	args := m.Called(ctx, key, tableID)
	return args.Bool(0), args.Error(1)
}

type mockHoldService struct {
	mock.Mock
}

func (m *mockHoldService) VerifyHeld(ctx context.Context, key reservation.ReservationKey, tableIDs []string, holderID string) error {
	args := m.Called(ctx, key, tableIDs, holderID)
	return args.Error(0)
}

func (m *mockHoldService) Consume(ctx context.Context, key reservation.ReservationKey, tableIDs []string, holderID string) error {
	args := m.Called(ctx, key, tableIDs, holderID)
	return args.Error(0)
}

type recordingProducer struct {
	notifications.NoopProducer
	mu        sync.Mutex
	confirmed []*notifications.BookingConfirmedEvent
}

func (p *recordingProducer) PublishBookingConfirmed(_ context.Context, ev *notifications.BookingConfirmedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.confirmed = append(p.confirmed, ev)
	return nil
}
