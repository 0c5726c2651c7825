package bookingflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"barbuddy/internal/governor"
	"barbuddy/internal/realtime"
	"barbuddy/internal/reservation"
	"barbuddy/internal/schedule"
	"barbuddy/internal/submission"
	"barbuddy/pkg/logger"
)

// Backend is everything a booking session needs from the reservation service
type Backend interface {
	governor.HoldClient
	submission.Submitter
	GetSchedule(ctx context.Context, barID string) (*schedule.BarSchedule, error)
}

// Config identifies the session and tunes its governor
type Config struct {
	BarID          string
	HolderID       string
	MaxTables      int
	ReleaseTimeout time.Duration
}

// Session is the booking screen of one customer for one bar. It is the
// only surface the presentation layer talks to; every state change goes
// through the governor.
type Session struct {
	barID       string
	backend     Backend
	governor    *governor.Governor
	coordinator *submission.Coordinator
	channel     *realtime.Channel
	clock       schedule.Clock
	log         *logger.Logger

	mu       sync.Mutex
	schedule *schedule.BarSchedule
	date     string
}

// Option configures a Session
type Option func(*Session)

// WithClock replaces the wall clock used for today's slot filtering
func WithClock(clock schedule.Clock) Option {
	return func(s *Session) {
		s.clock = clock
	}
}

// NewSession wires a governor, a submission coordinator and a realtime
// channel for cfg.BarID
func NewSession(backend Backend, transport realtime.Transport, cfg Config, log *logger.Logger, opts ...Option) *Session {
	if log == nil {
		log = logger.GetDefault()
	}

	gov := governor.New(backend, governor.Config{
		SelfID:         cfg.HolderID,
		MaxTables:      cfg.MaxTables,
		ReleaseTimeout: cfg.ReleaseTimeout,
	}, log)

	s := &Session{
		barID:       cfg.BarID,
		backend:     backend,
		governor:    gov,
		coordinator: submission.NewCoordinator(backend, gov, log),
		clock:       schedule.RealClock{},
		log:         log,
	}
	s.channel = realtime.NewChannel(transport, cfg.BarID, cfg.HolderID, gov.ApplyEvent, gov.Resync,
		realtime.WithChannelLogger(log))

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoadSchedule fetches the bar's opening hours once per visit
func (s *Session) LoadSchedule(ctx context.Context) (*schedule.BarSchedule, error) {
	s.mu.Lock()
	if s.schedule != nil {
		sched := s.schedule
		s.mu.Unlock()
		return sched, nil
	}
	s.mu.Unlock()

	sched, err := s.backend.GetSchedule(ctx, s.barID)
	if err != nil {
		return nil, fmt.Errorf("failed to load schedule: %w", err)
	}

	s.mu.Lock()
	s.schedule = sched
	s.mu.Unlock()
	return sched, nil
}

// SelectDate returns the bookable slots of date. Picking a different date
// releases the holds made for the previous one. Closed reports whether the
// bar has no opening hours that day at all.
func (s *Session) SelectDate(ctx context.Context, date time.Time) (slots []schedule.TimeSlot, closed bool, err error) {
	sched, err := s.LoadSchedule(ctx)
	if err != nil {
		return nil, false, err
	}

	day := date.Format(reservation.DateFormat)
	s.mu.Lock()
	changed := s.date != "" && s.date != day
	s.date = day
	s.mu.Unlock()

	if changed && !s.governor.Key().IsZero() {
		s.governor.Invalidate(ctx, governor.DateChanged)
	}

	slots, err = schedule.ResolveSlots(date, *sched, s.clock.Now())
	if err != nil {
		return nil, false, err
	}
	return slots, !schedule.IsOpenOn(date, *sched), nil
}

// SearchTables makes (date, clock, tableTypeID) the current reservation
// context. date is the calendar date of the chosen slot, which is the day
// after the selected date for slots past midnight.
func (s *Session) SearchTables(ctx context.Context, date, clock, tableTypeID string) error {
	key, err := reservation.NewReservationKey(s.barID, date, clock)
	if err != nil {
		return err
	}
	return s.governor.Search(ctx, key, tableTypeID)
}

// ToggleTable holds or releases one table
func (s *Session) ToggleTable(ctx context.Context, tableID string) error {
	return s.governor.Toggle(ctx, tableID)
}

// GetSelection returns the tables this session holds
func (s *Session) GetSelection() []reservation.SelectedTable {
	return s.governor.Selection()
}

// View returns the current availability view
func (s *Session) View() governor.Update {
	return s.governor.Snapshot()
}

// Submit books the current selection
func (s *Session) Submit(ctx context.Context, req submission.Request) (*reservation.BookingConfirmation, error) {
	return s.coordinator.Submit(ctx, req)
}

// Subscribe registers a listener for view updates
func (s *Session) Subscribe(fn governor.Listener) func() {
	return s.governor.Subscribe(fn)
}

// Focus is called when the booking screen gains focus or returns to the
// foreground: it connects the realtime channel, which resyncs the held
// snapshot and adopts holds still attributed to this session.
func (s *Session) Focus(ctx context.Context) error {
	err := s.channel.Connect(ctx)
	if errors.Is(err, realtime.ErrAlreadyConnected) {
		return s.governor.Resync(ctx)
	}
	return err
}

// Blur is called when the booking screen loses focus
func (s *Session) Blur(ctx context.Context) {
	s.leave(ctx, governor.FocusLost)
}

// Background is called when the app moves to the background
func (s *Session) Background(ctx context.Context) {
	s.leave(ctx, governor.Backgrounded)
}

// Back is called on hardware or gesture back navigation
func (s *Session) Back(ctx context.Context) {
	s.leave(ctx, governor.BackNavigation)
}

// Cancel abandons the booking flow
func (s *Session) Cancel(ctx context.Context) {
	s.leave(ctx, governor.Cancelled)
}

// Close releases everything and disconnects; the session is not reusable
func (s *Session) Close(ctx context.Context) {
	s.Cancel(ctx)
}

func (s *Session) leave(ctx context.Context, trigger governor.Trigger) {
	s.governor.Invalidate(ctx, trigger)
	s.channel.Disconnect()
}
