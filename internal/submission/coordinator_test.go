package submission

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"barbuddy/internal/reservation"
	"barbuddy/pkg/logger"
)

var testKey = reservation.ReservationKey{BarID: "bar-1", Date: "2026-10-23", Time: "22:00"}

type mockSubmitter struct {
	mock.Mock
}

func (m *mockSubmitter) SubmitBooking(ctx context.Context, draft reservation.BookingDraft) (*reservation.BookingConfirmation, error) {
	args := m.Called(ctx, draft)
	confirmation, _ := args.Get(0).(*reservation.BookingConfirmation)
	return confirmation, args.Error(1)
}

type mockOwner struct {
	mock.Mock
}

func (m *mockOwner) BeginSubmission() (reservation.ReservationKey, []reservation.SelectedTable, error) {
	args := m.Called()
	selected, _ := args.Get(1).([]reservation.SelectedTable)
	return args.Get(0).(reservation.ReservationKey), selected, args.Error(2)
}

func (m *mockOwner) CompleteSubmission(ctx context.Context, key reservation.ReservationKey, tableIDs []string, err error) {
	m.Called(ctx, key, tableIDs, err)
}

func selection() []reservation.SelectedTable {
	return []reservation.SelectedTable{{ID: "t1", Name: "T1"}, {ID: "t2", Name: "T2"}}
}

func TestCoordinator_Success(t *testing.T) {
	submitter := &mockSubmitter{}
	owner := &mockOwner{}
	owner.On("BeginSubmission").Return(testKey, selection(), nil)
	owner.On("CompleteSubmission", mock.Anything, testKey, []string{"t1", "t2"}, nil).Return()
	submitter.On("SubmitBooking", mock.Anything, mock.MatchedBy(func(d reservation.BookingDraft) bool {
		return d.Key == testKey && d.GuestCount == 6 && len(d.Tables) == 2 &&
			len(d.Drinks) == 1 && d.Drinks[0].Quantity == 3
	})).Return(&reservation.BookingConfirmation{BookingID: "b1", BookingRef: "BB-1"}, nil)

	c := NewCoordinator(submitter, owner, logger.NewNop())
	confirmation, err := c.Submit(context.Background(), Request{
		GuestCount: 6,
		Drinks: []reservation.DrinkOrder{
			{DrinkID: "d1", Quantity: 1},
			{DrinkID: "d1", Quantity: 2},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, "b1", confirmation.BookingID)
	assert.False(t, c.InFlight())
	owner.AssertExpectations(t)
	submitter.AssertExpectations(t)
}

func TestCoordinator_FailureIsTyped(t *testing.T) {
	submitter := &mockSubmitter{}
	owner := &mockOwner{}
	rejected := &reservation.SubmissionError{Retryable: false, Status: 409, Reason: "table t1 is not held"}
	owner.On("BeginSubmission").Return(testKey, selection(), nil)
	owner.On("CompleteSubmission", mock.Anything, testKey, []string{"t1", "t2"}, rejected).Return()
	submitter.On("SubmitBooking", mock.Anything, mock.Anything).Return(nil, rejected)

	c := NewCoordinator(submitter, owner, logger.NewNop())
	_, err := c.Submit(context.Background(), Request{GuestCount: 2})

	assert.ErrorIs(t, err, reservation.ErrSubmissionFailed)
	assert.False(t, reservation.IsRetryable(err))
	owner.AssertExpectations(t)
}

func TestCoordinator_PlainErrorBecomesRetryable(t *testing.T) {
	submitter := &mockSubmitter{}
	owner := &mockOwner{}
	owner.On("BeginSubmission").Return(testKey, selection(), nil)
	owner.On("CompleteSubmission", mock.Anything, testKey, mock.Anything, mock.Anything).Return()
	submitter.On("SubmitBooking", mock.Anything, mock.Anything).Return(nil, errors.New("connection reset"))

	c := NewCoordinator(submitter, owner, logger.NewNop())
	_, err := c.Submit(context.Background(), Request{GuestCount: 2})

	assert.True(t, reservation.IsRetryable(err))
}

func TestCoordinator_InvalidDraftNotSubmitted(t *testing.T) {
	submitter := &mockSubmitter{}
	owner := &mockOwner{}
	owner.On("BeginSubmission").Return(testKey, selection(), nil)
	owner.On("CompleteSubmission", mock.Anything, testKey, []string(nil), mock.Anything).Return()

	c := NewCoordinator(submitter, owner, logger.NewNop())
	_, err := c.Submit(context.Background(), Request{GuestCount: 0})

	assert.ErrorIs(t, err, reservation.ErrSubmissionFailed)
	assert.True(t, reservation.IsRetryable(err))
	submitter.AssertNotCalled(t, "SubmitBooking", mock.Anything, mock.Anything)
	owner.AssertExpectations(t)
}

func TestCoordinator_BeginFailure(t *testing.T) {
	owner := &mockOwner{}
	owner.On("BeginSubmission").Return(reservation.ReservationKey{}, nil, reservation.ErrEmptySelection)

	c := NewCoordinator(&mockSubmitter{}, owner, logger.NewNop())
	_, err := c.Submit(context.Background(), Request{GuestCount: 2})

	assert.ErrorIs(t, err, reservation.ErrEmptySelection)
	owner.AssertNotCalled(t, "CompleteSubmission", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCoordinator_SingleFlight(t *testing.T) {
	submitter := &mockSubmitter{}
	owner := &mockOwner{}
	started := make(chan struct{})
	proceed := make(chan struct{})

	owner.On("BeginSubmission").Return(testKey, selection(), nil).Once()
	owner.On("CompleteSubmission", mock.Anything, testKey, mock.Anything, nil).Return()
	submitter.On("SubmitBooking", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		close(started)
		<-proceed
	}).Return(&reservation.BookingConfirmation{BookingID: "b1"}, nil)

	c := NewCoordinator(submitter, owner, logger.NewNop())

	done := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background(), Request{GuestCount: 2})
		done <- err
	}()
	<-started

	assert.True(t, c.InFlight())
	_, err := c.Submit(context.Background(), Request{GuestCount: 2})
	assert.ErrorIs(t, err, reservation.ErrSubmissionInFlight)

	close(proceed)
	require.NoError(t, <-done)
	submitter.AssertNumberOfCalls(t, "SubmitBooking", 1)
	owner.AssertNumberOfCalls(t, "BeginSubmission", 1)
}
