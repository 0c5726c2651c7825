package reservation

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReservationKey(t *testing.T) {
	key, err := NewReservationKey("bar-1", "2026-10-19", "22:00")
	require.NoError(t, err)
	assert.Equal(t, "bar-1@2026-10-19T22:00", key.String())
	assert.False(t, key.IsZero())

	_, err = NewReservationKey("", "2026-10-19", "22:00")
	assert.Error(t, err)

	_, err = NewReservationKey("bar-1", "19/10/2026", "22:00")
	assert.Error(t, err)

	_, err = NewReservationKey("bar-1", "2026-10-19", "25:00")
	assert.Error(t, err)
}

func TestSubmissionError_Unwrap(t *testing.T) {
	err := fmt.Errorf("submit: %w", &SubmissionError{Retryable: true, Status: 503, Reason: "unavailable"})

	assert.ErrorIs(t, err, ErrSubmissionFailed)
	assert.True(t, IsRetryable(err))
	assert.False(t, IsRetryable(&SubmissionError{Status: 409, Reason: "not held"}))
	assert.True(t, IsRetryable(fmt.Errorf("%w: timeout", ErrTransient)))
	assert.False(t, IsRetryable(errors.New("other")))
}

func TestBookingDraft_TableIDs(t *testing.T) {
	draft := BookingDraft{Tables: []SelectedTable{{ID: "t1"}, {ID: "t2"}}}
	assert.Equal(t, []string{"t1", "t2"}, draft.TableIDs())
}
