package bookingflow

import (
	"context"
	"sync"
	"time"

	"barbuddy/internal/realtime"
	"barbuddy/internal/reservation"
	"barbuddy/internal/schedule"
)

// memoryService is a shared in-memory reservation service. Each session
// gets its own view of it through forHolder.
type memoryService struct {
	mu        sync.Mutex
	tables    []reservation.Table
	holds     map[reservation.ReservationKey]map[string]string
	booked    map[reservation.ReservationKey]map[string]bool
	releases  int
	broker    *memoryBroker
	schedule  schedule.BarSchedule
	bookingID int
}

func newMemoryService(broker *memoryBroker, tables []reservation.Table) *memoryService {
	return &memoryService{
		tables: tables,
		holds:  make(map[reservation.ReservationKey]map[string]string),
		booked: make(map[reservation.ReservationKey]map[string]bool),
		broker: broker,
		schedule: schedule.BarSchedule{
			BarID: "bar-1",
			Days: map[time.Weekday]schedule.DaySchedule{
				time.Friday: {Open: "22:00", Close: "02:00"},
			},
		},
	}
}

func (m *memoryService) forHolder(holderID string) *memoryBackend {
	return &memoryBackend{svc: m, holderID: holderID}
}

func (m *memoryService) releaseCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.releases
}

type memoryBackend struct {
	svc      *memoryService
	holderID string
}

func (b *memoryBackend) Hold(ctx context.Context, key reservation.ReservationKey, tableID string) error {
	m := b.svc
	m.mu.Lock()
	if m.booked[key][tableID] {
		m.mu.Unlock()
		return reservation.ErrNotAvailable
	}
	if m.holds[key] == nil {
		m.holds[key] = make(map[string]string)
	}
	if holder, ok := m.holds[key][tableID]; ok && holder != b.holderID {
		m.mu.Unlock()
		return reservation.ErrAlreadyHeld
	}
	m.holds[key][tableID] = b.holderID
	m.mu.Unlock()

	m.broker.publish(realtime.NewEvent(realtime.EventHeld, key, tableID, b.holderID))
	return nil
}

func (b *memoryBackend) Release(ctx context.Context, key reservation.ReservationKey, tableID string) error {
	m := b.svc
	m.mu.Lock()
	m.releases++
	if m.holds[key][tableID] != b.holderID {
		m.mu.Unlock()
		return nil
	}
	delete(m.holds[key], tableID)
	m.mu.Unlock()

	m.broker.publish(realtime.NewEvent(realtime.EventReleased, key, tableID, b.holderID))
	return nil
}

func (b *memoryBackend) QueryHeld(ctx context.Context, key reservation.ReservationKey) ([]reservation.HeldTable, error) {
	m := b.svc
	m.mu.Lock()
	defer m.mu.Unlock()
	held := []reservation.HeldTable{}
	for id, holder := range m.holds[key] {
		held = append(held, reservation.HeldTable{TableID: id, HolderID: holder})
	}
	return held, nil
}

func (b *memoryBackend) FindAvailable(ctx context.Context, key reservation.ReservationKey, tableTypeID string) ([]reservation.Table, error) {
	m := b.svc
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []reservation.Table{}
	for _, t := range m.tables {
		if t.TableTypeID != tableTypeID {
			continue
		}
		t.Booked = m.booked[key][t.ID]
		out = append(out, t)
	}
	return out, nil
}

func (b *memoryBackend) SubmitBooking(ctx context.Context, draft reservation.BookingDraft) (*reservation.BookingConfirmation, error) {
	m := b.svc
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range draft.Tables {
		if m.holds[draft.Key][t.ID] != b.holderID {
			return nil, &reservation.SubmissionError{Status: 409, Reason: "table " + t.ID + " is not held by this session"}
		}
	}
	if m.booked[draft.Key] == nil {
		m.booked[draft.Key] = make(map[string]bool)
	}
	for _, t := range draft.Tables {
		m.booked[draft.Key][t.ID] = true
		delete(m.holds[draft.Key], t.ID)
	}
	m.bookingID++
	return &reservation.BookingConfirmation{BookingID: "booking-1", BookingRef: "BB-0001"}, nil
}

func (b *memoryBackend) GetSchedule(ctx context.Context, barID string) (*schedule.BarSchedule, error) {
	sched := b.svc.schedule
	return &sched, nil
}

// memoryBroker fans events out to every open subscription
type memoryBroker struct {
	mu   sync.Mutex
	subs map[*memorySubscription]bool
}

func newMemoryBroker() *memoryBroker {
	return &memoryBroker{subs: make(map[*memorySubscription]bool)}
}

func (b *memoryBroker) Subscribe(ctx context.Context, barID string) (realtime.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub := &memorySubscription{broker: b, events: make(chan realtime.Event, 64)}
	b.subs[sub] = true
	return sub, nil
}

func (b *memoryBroker) publish(ev realtime.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		select {
		case sub.events <- ev:
		default:
		}
	}
}

type memorySubscription struct {
	broker *memoryBroker
	events chan realtime.Event
	once   sync.Once
}

func (s *memorySubscription) Events() <-chan realtime.Event { return s.events }
func (s *memorySubscription) Err() error                    { return nil }
func (s *memorySubscription) Close() error {
	s.once.Do(func() {
		s.broker.mu.Lock()
		delete(s.broker.subs, s)
		s.broker.mu.Unlock()
		close(s.events)
	})
	return nil
}
