package submission

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/go-playground/validator/v10"

	"barbuddy/internal/reservation"
	"barbuddy/pkg/logger"
)

// Submitter sends the final booking to the reservation service
type Submitter interface {
	SubmitBooking(ctx context.Context, draft reservation.BookingDraft) (*reservation.BookingConfirmation, error)
}

// SelectionOwner hands out the selection for submission and takes the outcome back
type SelectionOwner interface {
	BeginSubmission() (reservation.ReservationKey, []reservation.SelectedTable, error)
	CompleteSubmission(ctx context.Context, key reservation.ReservationKey, tableIDs []string, err error)
}

// Request carries the booking details the user entered
type Request struct {
	GuestCount  int
	Note        string
	Drinks      []reservation.DrinkOrder
	VoucherCode string
}

// Coordinator submits a booking at most once at a time. The selected
// tables and any drink pre-order go out as one request; the outcome is
// all or nothing.
type Coordinator struct {
	submitter Submitter
	owner     SelectionOwner
	validate  *validator.Validate
	log       *logger.Logger

	inFlight atomic.Bool
}

// NewCoordinator creates a coordinator
func NewCoordinator(submitter Submitter, owner SelectionOwner, log *logger.Logger) *Coordinator {
	if log == nil {
		log = logger.GetDefault()
	}
	return &Coordinator{
		submitter: submitter,
		owner:     owner,
		validate:  validator.New(),
		log:       log,
	}
}

// InFlight reports whether a submission is outstanding
func (c *Coordinator) InFlight() bool {
	return c.inFlight.Load()
}

// Submit books the current selection. A second call while one is
// outstanding fails with ErrSubmissionInFlight without side effects.
// Failures are returned as *reservation.SubmissionError and leave the
// selection held.
func (c *Coordinator) Submit(ctx context.Context, req Request) (*reservation.BookingConfirmation, error) {
	if !c.inFlight.CompareAndSwap(false, true) {
		return nil, reservation.ErrSubmissionInFlight
	}
	defer c.inFlight.Store(false)

	key, selected, err := c.owner.BeginSubmission()
	if err != nil {
		return nil, err
	}

	draft := reservation.BookingDraft{
		Key:         key,
		Tables:      selected,
		GuestCount:  req.GuestCount,
		Note:        req.Note,
		Drinks:      mergeDrinks(req.Drinks),
		VoucherCode: req.VoucherCode,
	}

	if err := c.validate.Struct(draft); err != nil {
		subErr := &reservation.SubmissionError{Retryable: true, Reason: fmt.Sprintf("invalid booking: %v", err)}
		c.owner.CompleteSubmission(ctx, key, nil, subErr)
		return nil, subErr
	}

	confirmation, err := c.submitter.SubmitBooking(ctx, draft)
	if err != nil {
		var subErr *reservation.SubmissionError
		if !errors.As(err, &subErr) {
			subErr = &reservation.SubmissionError{Retryable: true, Reason: err.Error()}
		}
		err = subErr
	}

	c.owner.CompleteSubmission(ctx, key, draft.TableIDs(), err)

	bookingID := ""
	if confirmation != nil {
		bookingID = confirmation.BookingID
	}
	c.log.LogBookingSubmitted(ctx, key.String(), len(draft.Tables), bookingID, err)

	if err != nil {
		return nil, err
	}
	return confirmation, nil
}

// mergeDrinks folds repeated drink ids into one line each, keeping first-seen order
func mergeDrinks(drinks []reservation.DrinkOrder) []reservation.DrinkOrder {
	if len(drinks) == 0 {
		return nil
	}
	index := make(map[string]int, len(drinks))
	merged := make([]reservation.DrinkOrder, 0, len(drinks))
	for _, d := range drinks {
		if i, ok := index[d.DrinkID]; ok {
			merged[i].Quantity += d.Quantity
			continue
		}
		index[d.DrinkID] = len(merged)
		merged = append(merged, d)
	}
	return merged
}
