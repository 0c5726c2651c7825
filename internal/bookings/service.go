package bookings

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"barbuddy/internal/metrics"
	"barbuddy/internal/notifications"
	"barbuddy/internal/reservation"
	"barbuddy/internal/tableholds"
	"barbuddy/pkg/logger"
)

var (
	// ErrInvalidDraft is returned for a draft that fails validation
	ErrInvalidDraft = errors.New("invalid booking draft")

	// ErrBookingNotFound is returned when the booking does not exist or belongs to another session
	ErrBookingNotFound = errors.New("booking not found")
)

// HoldService is the part of the hold service a booking needs
type HoldService interface {
	VerifyHeld(ctx context.Context, key reservation.ReservationKey, tableIDs []string, holderID string) error
	Consume(ctx context.Context, key reservation.ReservationKey, tableIDs []string, holderID string) error
}

// Service interface defines the contract for booking business logic
type Service interface {
	SubmitBooking(ctx context.Context, draft reservation.BookingDraft, holderID, customerID string) (*reservation.BookingConfirmation, error)
	GetBooking(ctx context.Context, bookingID, holderID string) (*Booking, error)
}

type service struct {
	repo     Repository
	holds    HoldService
	events   notifications.Producer
	metrics  *metrics.Metrics
	validate *validator.Validate
	log      *logger.Logger
	now      func() time.Time
}

// NewService creates a new booking service instance. events and m may be nil.
func NewService(repo Repository, holds HoldService, events notifications.Producer, m *metrics.Metrics, log *logger.Logger) Service {
	if events == nil {
		events = notifications.NoopProducer{}
	}
	return &service{
		repo:     repo,
		holds:    holds,
		events:   events,
		metrics:  m,
		validate: validator.New(),
		log:      log,
		now:      time.Now,
	}
}

// SubmitBooking turns the caller's holds into a booking. Every table must be
// free and held by holderID; on success the holds are consumed.
func (s *service) SubmitBooking(ctx context.Context, draft reservation.BookingDraft, holderID, customerID string) (*reservation.BookingConfirmation, error) {
	booking, err := s.submit(ctx, draft, holderID, customerID)
	s.log.LogBookingSubmitted(ctx, draft.Key.String(), len(draft.Tables), bookingIDOf(booking), err)
	s.metrics.ObserveBooking(bookingOutcome(err))
	if err != nil {
		return nil, err
	}

	return &reservation.BookingConfirmation{
		BookingID:  booking.ID.String(),
		BookingRef: booking.BookingRef,
	}, nil
}

func (s *service) submit(ctx context.Context, draft reservation.BookingDraft, holderID, customerID string) (*Booking, error) {
	booking, err := s.buildBooking(draft, holderID, customerID)
	if err != nil {
		return nil, err
	}
	key := draft.Key
	tableIDs := draft.TableIDs()

	// Step 1: none of the tables may be booked already
	for _, tableID := range tableIDs {
		booked, err := s.repo.IsBooked(ctx, key, tableID)
		if err != nil {
			return nil, err
		}
		if booked {
			return nil, fmt.Errorf("%w: table %s", reservation.ErrNotAvailable, tableID)
		}
	}

	// Step 2: every table must be held by this session
	if err := s.holds.VerifyHeld(ctx, key, tableIDs, holderID); err != nil {
		return nil, err
	}

	// Step 3: record the booking
	ref, err := generateBookingReference(s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to generate booking reference: %w", err)
	}
	booking.BookingRef = ref

	if err := s.repo.CreateBooking(ctx, booking); err != nil {
		if errors.Is(err, ErrTableAlreadyBooked) {
			return nil, fmt.Errorf("%w: %v", reservation.ErrNotAvailable, err)
		}
		return nil, err
	}

	// Step 4: the holds have served their purpose; leftovers expire by TTL
	if err := s.holds.Consume(ctx, key, tableIDs, holderID); err != nil {
		s.log.WithError(err).WarnContext(ctx, "Failed to consume holds after booking",
			"booking_id", booking.ID.String(), "key", key.String())
	}

	// Step 5: announce it
	event := &notifications.BookingConfirmedEvent{
		ID:          uuid.New(),
		BookingID:   booking.ID.String(),
		BookingRef:  booking.BookingRef,
		BarID:       key.BarID,
		Date:        key.Date,
		Time:        key.Time,
		TableIDs:    tableIDs,
		HolderID:    holderID,
		CustomerID:  customerID,
		GuestCount:  draft.GuestCount,
		Drinks:      draft.Drinks,
		VoucherCode: draft.VoucherCode,
		OccurredAt:  s.now().UTC(),
	}
	if err := s.events.PublishBookingConfirmed(ctx, event); err != nil {
		s.log.WithError(err).WarnContext(ctx, "Failed to publish booking event", "booking_id", booking.ID.String())
	}

	return booking, nil
}

// buildBooking validates draft and maps it onto the storage model
func (s *service) buildBooking(draft reservation.BookingDraft, holderID, customerID string) (*Booking, error) {
	if err := s.validate.Struct(draft); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDraft, err)
	}
	if err := draft.Key.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDraft, err)
	}
	barID, err := uuid.Parse(draft.Key.BarID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid bar id", ErrInvalidDraft)
	}

	booking := &Booking{
		ID:          uuid.New(),
		BarID:       barID,
		Date:        draft.Key.Date,
		Time:        draft.Key.Time,
		HolderID:    holderID,
		CustomerID:  customerID,
		GuestCount:  draft.GuestCount,
		Note:        draft.Note,
		VoucherCode: draft.VoucherCode,
		Status:      StatusConfirmed,
	}

	seen := make(map[uuid.UUID]bool, len(draft.Tables))
	for _, t := range draft.Tables {
		tableID, err := uuid.Parse(t.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid table id %q", ErrInvalidDraft, t.ID)
		}
		if seen[tableID] {
			return nil, fmt.Errorf("%w: table %s listed twice", ErrInvalidDraft, t.ID)
		}
		seen[tableID] = true

		booking.Tables = append(booking.Tables, BookedTable{
			BarID:   barID,
			TableID: tableID,
			Date:    draft.Key.Date,
			Time:    draft.Key.Time,
		})
	}

	for _, d := range draft.Drinks {
		booking.Drinks = append(booking.Drinks, BookingDrink{DrinkID: d.DrinkID, Quantity: d.Quantity})
	}

	return booking, nil
}

func (s *service) GetBooking(ctx context.Context, bookingID, holderID string) (*Booking, error) {
	id, err := uuid.Parse(bookingID)
	if err != nil {
		return nil, ErrBookingNotFound
	}

	booking, err := s.repo.GetBookingByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	if booking.HolderID != holderID {
		return nil, ErrBookingNotFound
	}
	return booking, nil
}

func bookingIDOf(b *Booking) string {
	if b == nil {
		return ""
	}
	return b.ID.String()
}

func bookingOutcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, tableholds.ErrNotHeldByCaller):
		return metrics.OutcomeConflict
	case errors.Is(err, reservation.ErrNotAvailable):
		return metrics.OutcomeUnavailable
	default:
		return metrics.OutcomeError
	}
}

// generateBookingReference generates a human-readable booking reference
func generateBookingReference(now time.Time) (string, error) {
	timestamp := now.Format("20060102")

	// Generate 6 random uppercase letters
	const letters = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	randomPart := make([]byte, 6)

	for i := range randomPart {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(letters))))
		if err != nil {
			return "", err
		}
		randomPart[i] = letters[num.Int64()]
	}

	return fmt.Sprintf("BAR-%s-%s", timestamp, string(randomPart)), nil
}
