package tableholds

import (
	"context"
	"fmt"
	"time"

	"barbuddy/internal/metrics"
	"barbuddy/internal/notifications"
	"barbuddy/internal/realtime"
	"barbuddy/internal/reservation"
	"barbuddy/pkg/logger"
)

type Service interface {
	// Hold locks a table for holderID until released, consumed or expired
	Hold(ctx context.Context, key reservation.ReservationKey, tableID, holderID string) (*HoldResponse, error)
	// Release is idempotent; releasing a table the caller does not hold is a no-op
	Release(ctx context.Context, key reservation.ReservationKey, tableID, holderID string) error
	Held(ctx context.Context, key reservation.ReservationKey) ([]reservation.HeldTable, error)

	// Booking support
	VerifyHeld(ctx context.Context, key reservation.ReservationKey, tableIDs []string, holderID string) error
	Consume(ctx context.Context, key reservation.ReservationKey, tableIDs []string, holderID string) error

	Subscribe(ctx context.Context, barID string) (realtime.Subscription, error)
}

// Collaborators are the hold service's outbound dependencies. Events and
// Metrics may be nil.
type Collaborators struct {
	Catalog   TableCatalog
	Booked    BookedLookup
	Publisher realtime.Publisher
	Transport realtime.Transport
	Events    notifications.Producer
	Metrics   *metrics.Metrics
}

type service struct {
	store     *HoldStore
	catalog   TableCatalog
	booked    BookedLookup
	publisher realtime.Publisher
	transport realtime.Transport
	events    notifications.Producer
	metrics   *metrics.Metrics
	log       *logger.Logger
}

func NewService(store *HoldStore, deps Collaborators, log *logger.Logger) Service {
	events := deps.Events
	if events == nil {
		events = notifications.NoopProducer{}
	}

	return &service{
		store:     store,
		catalog:   deps.Catalog,
		booked:    deps.Booked,
		publisher: deps.Publisher,
		transport: deps.Transport,
		events:    events,
		metrics:   deps.Metrics,
		log:       log,
	}
}

//  HOLDING

func (s *service) Hold(ctx context.Context, key reservation.ReservationKey, tableID, holderID string) (*HoldResponse, error) {
	exists, err := s.catalog.TableExists(ctx, key.BarID, tableID)
	if err != nil {
		s.metrics.ObserveHold(metrics.OutcomeError)
		return nil, fmt.Errorf("failed to look up table: %w", err)
	}
	if !exists {
		s.metrics.ObserveHold(metrics.OutcomeNotFound)
		s.log.LogHoldRejected(ctx, key.String(), tableID, "unknown table")
		return nil, ErrTableNotFound
	}

	result, err := s.store.Acquire(ctx, key, tableID, holderID)
	if err != nil {
		s.metrics.ObserveHold(metrics.OutcomeError)
		return nil, err
	}
	if !result.Acquired {
		s.metrics.ObserveHold(metrics.OutcomeConflict)
		s.log.LogHoldRejected(ctx, key.String(), tableID, "held by another session")
		return nil, reservation.ErrAlreadyHeld
	}

	// Checked after acquiring: a booking commits before it consumes its holds,
	// so a hold taken after the consume always sees the booked row.
	booked, err := s.booked.IsBooked(ctx, key, tableID)
	if err != nil {
		if !result.Refreshed {
			s.undoHold(ctx, key, tableID, holderID)
		}
		s.metrics.ObserveHold(metrics.OutcomeError)
		return nil, fmt.Errorf("failed to check booked status: %w", err)
	}
	if booked {
		s.undoHold(ctx, key, tableID, holderID)
		s.metrics.ObserveHold(metrics.OutcomeUnavailable)
		s.log.LogHoldRejected(ctx, key.String(), tableID, "already booked")
		return nil, reservation.ErrNotAvailable
	}

	if result.Refreshed {
		s.metrics.ObserveHold(metrics.OutcomeRefreshed)
	} else {
		s.metrics.ObserveHold(metrics.OutcomeOK)
		s.log.LogHoldAcquired(ctx, key.String(), tableID, holderID)
		s.broadcast(ctx, realtime.EventHeld, notifications.HoldEventHeld, key, tableID, holderID)
	}

	ttl := s.store.TTL()
	return &HoldResponse{
		TableID:   tableID,
		HolderID:  holderID,
		Refreshed: result.Refreshed,
		ExpiresAt: time.Now().Add(ttl).UTC(),
		TTL:       int(ttl.Seconds()),
	}, nil
}

func (s *service) undoHold(ctx context.Context, key reservation.ReservationKey, tableID, holderID string) {
	if _, err := s.store.Release(ctx, key, tableID, holderID); err != nil {
		s.log.LogReleaseFailed(ctx, key.String(), tableID, err)
	}
}

func (s *service) Release(ctx context.Context, key reservation.ReservationKey, tableID, holderID string) error {
	released, err := s.store.Release(ctx, key, tableID, holderID)
	if err != nil {
		s.metrics.ObserveRelease(metrics.OutcomeError)
		return err
	}

	if !released {
		s.metrics.ObserveRelease(metrics.OutcomeNoop)
		return nil
	}

	s.metrics.ObserveRelease(metrics.OutcomeOK)
	s.log.LogHoldReleased(ctx, key.String(), tableID, holderID)
	s.broadcast(ctx, realtime.EventReleased, notifications.HoldEventReleased, key, tableID, holderID)
	return nil
}

func (s *service) Held(ctx context.Context, key reservation.ReservationKey) ([]reservation.HeldTable, error) {
	return s.store.Held(ctx, key)
}

//  BOOKING SUPPORT

func (s *service) VerifyHeld(ctx context.Context, key reservation.ReservationKey, tableIDs []string, holderID string) error {
	holders, err := s.store.Holders(ctx, key, tableIDs)
	if err != nil {
		return err
	}

	for _, tableID := range tableIDs {
		if holders[tableID] != holderID {
			return fmt.Errorf("%w: table %s", ErrNotHeldByCaller, tableID)
		}
	}
	return nil
}

// Consume removes the holds of a confirmed booking. Nothing is broadcast on
// the realtime channel: the tables are booked, not available again.
func (s *service) Consume(ctx context.Context, key reservation.ReservationKey, tableIDs []string, holderID string) error {
	if err := s.store.Consume(ctx, key, tableIDs, holderID); err != nil {
		return err
	}

	s.metrics.ObserveConsumed(len(tableIDs))
	for _, tableID := range tableIDs {
		event := notifications.NewHoldEvent(notifications.HoldEventConsumed, key, tableID, holderID)
		if err := s.events.PublishHoldEvent(ctx, event); err != nil {
			s.log.WithError(err).WarnContext(ctx, "Failed to publish hold event", "table_id", tableID)
		}
	}
	return nil
}

//  REALTIME

func (s *service) Subscribe(ctx context.Context, barID string) (realtime.Subscription, error) {
	return s.transport.Subscribe(ctx, barID)
}

// broadcast fans a hold change out to realtime subscribers and Kafka. Both
// are best effort: the hold itself is already committed.
func (s *service) broadcast(ctx context.Context, typ realtime.EventType, eventType notifications.HoldEventType,
	key reservation.ReservationKey, tableID, holderID string) {

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, realtime.NewEvent(typ, key, tableID, holderID)); err != nil {
			s.log.WithError(err).WarnContext(ctx, "Failed to publish realtime event", "table_id", tableID)
		}
	}

	if err := s.events.PublishHoldEvent(ctx, notifications.NewHoldEvent(eventType, key, tableID, holderID)); err != nil {
		s.log.WithError(err).WarnContext(ctx, "Failed to publish hold event", "table_id", tableID)
	}
}
