package reservation

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyHeld is returned when another session holds the table
	ErrAlreadyHeld = errors.New("table is already held by another session")

	// ErrNotAvailable is returned when the table is booked for the key
	ErrNotAvailable = errors.New("table is not available")

	// ErrLimitReached is returned client-side when the selection is full; no call is made
	ErrLimitReached = errors.New("table selection limit reached")

	// ErrTransient is returned on network or service failure; callers decide whether to retry
	ErrTransient = errors.New("reservation service unavailable")

	// ErrSubmissionFailed is returned when the backend rejects the final booking
	ErrSubmissionFailed = errors.New("booking submission failed")

	// ErrSubmissionInFlight is returned when a submission is already outstanding
	ErrSubmissionInFlight = errors.New("booking submission already in progress")

	// ErrNoReservationKey is returned when date, time and table type have not all been chosen
	ErrNoReservationKey = errors.New("no reservation key selected")

	// ErrTablePending is returned when a request for the table is still in flight
	ErrTablePending = errors.New("table request already in progress")

	// ErrEmptySelection is returned when submitting without any held table
	ErrEmptySelection = errors.New("no tables selected")

	// ErrUnknownTable is returned for a table that is not part of the current view
	ErrUnknownTable = errors.New("unknown table")
)

// SubmissionError describes a failed booking submission. Retryable is true when
// the same selection may be submitted again (transport or server failure) and
// false when the search must be restarted (tables lost or booked).
type SubmissionError struct {
	Retryable bool
	Status    int
	Reason    string
}

func (e *SubmissionError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("booking submission failed (status %d): %s", e.Status, e.Reason)
	}
	return "booking submission failed: " + e.Reason
}

// Unwrap lets errors.Is match ErrSubmissionFailed
func (e *SubmissionError) Unwrap() error {
	return ErrSubmissionFailed
}

// IsRetryable reports whether err is a submission failure that may be retried as is
func IsRetryable(err error) bool {
	var subErr *SubmissionError
	if errors.As(err, &subErr) {
		return subErr.Retryable
	}
	return errors.Is(err, ErrTransient)
}
