package bookings

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"barbuddy/internal/reservation"
	"barbuddy/internal/tableholds"
	"barbuddy/pkg/logger"
)

const holder = "holder-1"

var (
	barID   = "11111111-1111-1111-1111-111111111111"
	table1  = "44444444-4444-4444-4444-444444444441"
	table2  = "44444444-4444-4444-4444-444444444442"
	testKey = reservation.ReservationKey{BarID: barID, Date: "2026-10-23", Time: "22:00"}
)

func newDraft(tableIDs ...string) reservation.BookingDraft {
	draft := reservation.BookingDraft{Key: testKey, GuestCount: 4, Note: "birthday"}
	for _, id := range tableIDs {
		draft.Tables = append(draft.Tables, reservation.SelectedTable{ID: id})
	}
	return draft
}

type serviceFixture struct {
	service  Service
	repo     *mockRepository
	holds    *mockHoldService
	producer *recordingProducer
}

func newFixture() *serviceFixture {
	f := &serviceFixture{
		repo:     &mockRepository{},
		holds:    &mockHoldService{},
		producer: &recordingProducer{},
	}
	f.service = NewService(f.repo, f.holds, f.producer, nil, logger.NewNop())
	return f
}

func TestService_SubmitBooking(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	tableIDs := []string{table1, table2}

	f.repo.On("IsBooked", ctx, testKey, table1).Return(false, nil)
	f.repo.On("IsBooked", ctx, testKey, table2).Return(false, nil)
	f.holds.On("VerifyHeld", ctx, testKey, tableIDs, holder).Return(nil)
	f.repo.On("CreateBooking", ctx, mock.MatchedBy(func(b *Booking) bool {
		return b.HolderID == holder &&
			b.CustomerID == "cust-9" &&
			b.GuestCount == 4 &&
			b.Status == StatusConfirmed &&
			assert.ObjectsAreEqual(tableIDs, b.TableIDs())
	})).Return(nil)
	f.holds.On("Consume", ctx, testKey, tableIDs, holder).Return(nil)

	confirmation, err := f.service.SubmitBooking(ctx, newDraft(table1, table2), holder, "cust-9")
	require.NoError(t, err)

	_, err = uuid.Parse(confirmation.BookingID)
	assert.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^BAR-\d{8}-[A-Z]{6}$`), confirmation.BookingRef)

	require.Len(t, f.producer.confirmed, 1)
	event := f.producer.confirmed[0]
	assert.Equal(t, confirmation.BookingID, event.BookingID)
	assert.Equal(t, tableIDs, event.TableIDs)
	assert.Equal(t, barID, event.GetPartitionKey())

	f.repo.AssertExpectations(t)
	f.holds.AssertExpectations(t)
}

func TestService_SubmitBookingRejectsBookedTable(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.repo.On("IsBooked", ctx, testKey, table1).Return(true, nil)

	_, err := f.service.SubmitBooking(ctx, newDraft(table1), holder, "")
	assert.ErrorIs(t, err, reservation.ErrNotAvailable)

	f.holds.AssertNotCalled(t, "VerifyHeld", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.repo.AssertNotCalled(t, "CreateBooking", mock.Anything, mock.Anything)
	assert.Empty(t, f.producer.confirmed)
}

func TestService_SubmitBookingRequiresHolds(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.repo.On("IsBooked", ctx, testKey, table1).Return(false, nil)
	f.holds.On("VerifyHeld", ctx, testKey, []string{table1}, holder).
		Return(tableholds.ErrNotHeldByCaller)

	_, err := f.service.SubmitBooking(ctx, newDraft(table1), holder, "")
	assert.ErrorIs(t, err, tableholds.ErrNotHeldByCaller)
	f.repo.AssertNotCalled(t, "CreateBooking", mock.Anything, mock.Anything)
}

func TestService_SubmitBookingLosesRaceOnUniqueIndex(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.repo.On("IsBooked", ctx, testKey, table1).Return(false, nil)
	f.holds.On("VerifyHeld", ctx, testKey, []string{table1}, holder).Return(nil)
	f.repo.On("CreateBooking", ctx, mock.Anything).Return(ErrTableAlreadyBooked)

	_, err := f.service.SubmitBooking(ctx, newDraft(table1), holder, "")
	assert.ErrorIs(t, err, reservation.ErrNotAvailable)
	f.holds.AssertNotCalled(t, "Consume", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestService_SubmitBookingSurvivesConsumeFailure(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.repo.On("IsBooked", ctx, testKey, table1).Return(false, nil)
	f.holds.On("VerifyHeld", ctx, testKey, []string{table1}, holder).Return(nil)
	f.repo.On("CreateBooking", ctx, mock.Anything).Return(nil)
	f.holds.On("Consume", ctx, testKey, []string{table1}, holder).Return(errors.New("redis down"))

	confirmation, err := f.service.SubmitBooking(ctx, newDraft(table1), holder, "")
	require.NoError(t, err)
	assert.NotEmpty(t, confirmation.BookingRef)
}

func TestService_SubmitBookingValidation(t *testing.T) {
	tests := []struct {
		name  string
		draft reservation.BookingDraft
	}{
		{"no tables", newDraft()},
		{"duplicate table", newDraft(table1, table1)},
		{"table id not a uuid", newDraft("t1")},
		{"too many tables", newDraft(uuid.NewString(), uuid.NewString(), uuid.NewString(), uuid.NewString(), uuid.NewString(), uuid.NewString())},
		{"bad time", func() reservation.BookingDraft {
			d := newDraft(table1)
			d.Key.Time = "25:00"
			return d
		}()},
		{"bar id not a uuid", func() reservation.BookingDraft {
			d := newDraft(table1)
			d.Key.BarID = "bar-1"
			return d
		}()},
		{"no guests", func() reservation.BookingDraft {
			d := newDraft(table1)
			d.GuestCount = 0
			return d
		}()},
		{"drink without quantity", func() reservation.BookingDraft {
			d := newDraft(table1)
			d.Drinks = []reservation.DrinkOrder{{DrinkID: "negroni"}}
			return d
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			_, err := f.service.SubmitBooking(context.Background(), tt.draft, holder, "")
			assert.ErrorIs(t, err, ErrInvalidDraft)
			f.repo.AssertNotCalled(t, "IsBooked", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestService_GetBooking(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	id := uuid.New()
	other := uuid.New()

	f.repo.On("GetBookingByID", ctx, id).Return(&Booking{ID: id, HolderID: holder}, nil)
	f.repo.On("GetBookingByID", ctx, other).Return(nil, gorm.ErrRecordNotFound)

	booking, err := f.service.GetBooking(ctx, id.String(), holder)
	require.NoError(t, err)
	assert.Equal(t, id, booking.ID)

	_, err = f.service.GetBooking(ctx, id.String(), "someone-else")
	assert.ErrorIs(t, err, ErrBookingNotFound)

	_, err = f.service.GetBooking(ctx, other.String(), holder)
	assert.ErrorIs(t, err, ErrBookingNotFound)

	_, err = f.service.GetBooking(ctx, "not-a-uuid", holder)
	assert.ErrorIs(t, err, ErrBookingNotFound)
}
