package bars

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"barbuddy/internal/reservation"
	"barbuddy/internal/schedule"
	"barbuddy/internal/shared/constants"
	"barbuddy/pkg/cache"
	"barbuddy/pkg/logger"
)

var (
	ErrBarNotFound = errors.New("bar not found")
	ErrInvalidDate = errors.New("invalid date")
)

// BookedLookup lists the tables already booked for a reservation key
type BookedLookup interface {
	BookedTableIDs(ctx context.Context, key reservation.ReservationKey) ([]string, error)
}

type Service interface {
	GetSchedule(ctx context.Context, barID string) (*ScheduleResponse, error)
	GetSlots(ctx context.Context, barID, date string) (*SlotsResponse, error)
	GetTableTypes(ctx context.Context, barID string) ([]TableTypeResponse, error)
	// GetTables lists the bar's tables, optionally of one type, with booked status for key
	GetTables(ctx context.Context, key reservation.ReservationKey, tableTypeID string) ([]reservation.Table, error)
	TableExists(ctx context.Context, barID, tableID string) (bool, error)
	InvalidateCache(ctx context.Context, barID string) error
}

type Option func(*service)

// WithClock replaces the wall clock used to drop past slots
func WithClock(clock schedule.Clock) Option {
	return func(s *service) {
		s.clock = clock
	}
}

type service struct {
	repo            Repository
	booked          BookedLookup
	cacheService    cache.Service
	defaultInterval time.Duration
	clock           schedule.Clock
	log             *logger.Logger
}

// NewService creates the bar catalogue service. cacheService may be nil.
func NewService(repo Repository, booked BookedLookup, cacheService cache.Service, defaultInterval time.Duration, log *logger.Logger, opts ...Option) Service {
	if defaultInterval <= 0 {
		defaultInterval = schedule.DefaultSlotInterval
	}

	s := &service{
		repo:            repo,
		booked:          booked,
		cacheService:    cacheService,
		defaultInterval: defaultInterval,
		clock:           schedule.RealClock{},
		log:             log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

//  SCHEDULE

func (s *service) GetSchedule(ctx context.Context, barID string) (*ScheduleResponse, error) {
	id, err := uuid.Parse(barID)
	if err != nil {
		return nil, ErrBarNotFound
	}

	var resp ScheduleResponse
	err = s.cached(ctx, constants.BuildBarScheduleKey(barID), constants.TTL_BAR_SCHEDULE, func() (interface{}, error) {
		return s.loadSchedule(ctx, id)
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *service) loadSchedule(ctx context.Context, id uuid.UUID) (*ScheduleResponse, error) {
	bar, err := s.repo.GetBarByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBarNotFound
		}
		return nil, fmt.Errorf("failed to get bar: %w", err)
	}

	hours, err := s.repo.GetOpeningHours(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get opening hours: %w", err)
	}

	interval := bar.SlotIntervalMinutes
	if interval <= 0 {
		interval = int(s.defaultInterval / time.Minute)
	}

	resp := &ScheduleResponse{
		BarID:               bar.ID.String(),
		Name:                bar.Name,
		Timezone:            bar.Timezone,
		SlotIntervalMinutes: interval,
		Days:                make([]DayHoursResponse, 0, len(hours)),
	}
	for _, h := range hours {
		open, err := schedule.ParseClock(h.Open)
		if err != nil {
			return nil, fmt.Errorf("weekday %d: %w", h.Weekday, err)
		}
		closing, err := schedule.ParseClock(h.Close)
		if err != nil {
			return nil, fmt.Errorf("weekday %d: %w", h.Weekday, err)
		}
		resp.Days = append(resp.Days, DayHoursResponse{Weekday: h.Weekday, Open: open, Close: closing})
	}

	return resp, nil
}

func (s *service) GetSlots(ctx context.Context, barID, date string) (*SlotsResponse, error) {
	resp, err := s.GetSchedule(ctx, barID)
	if err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(resp.Timezone)
	if err != nil {
		s.log.WithError(err).WarnContext(ctx, "Unknown bar timezone, using UTC", "bar_id", barID)
		loc = time.UTC
	}

	day, err := time.ParseInLocation(reservation.DateFormat, date, loc)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}

	sched := toBarSchedule(resp)
	slots, err := schedule.ResolveSlots(day, sched, s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to resolve slots: %w", err)
	}

	return &SlotsResponse{
		BarID:  resp.BarID,
		Date:   date,
		Closed: !schedule.IsOpenOn(day, sched),
		Slots:  slots,
	}, nil
}

func toBarSchedule(resp *ScheduleResponse) schedule.BarSchedule {
	sched := schedule.BarSchedule{
		BarID:        resp.BarID,
		Days:         make(map[time.Weekday]schedule.DaySchedule, len(resp.Days)),
		SlotInterval: time.Duration(resp.SlotIntervalMinutes) * time.Minute,
	}
	for _, d := range resp.Days {
		sched.Days[time.Weekday(d.Weekday)] = schedule.DaySchedule{Open: d.Open, Close: d.Close}
	}
	return sched
}

//  TABLES

func (s *service) GetTableTypes(ctx context.Context, barID string) ([]TableTypeResponse, error) {
	id, err := uuid.Parse(barID)
	if err != nil {
		return nil, ErrBarNotFound
	}

	types, err := s.repo.GetTableTypes(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get table types: %w", err)
	}

	resp := make([]TableTypeResponse, 0, len(types))
	for _, t := range types {
		resp = append(resp, TableTypeResponse{ID: t.ID.String(), Name: t.Name, MinimumSpend: t.MinimumSpend})
	}
	return resp, nil
}

func (s *service) GetTables(ctx context.Context, key reservation.ReservationKey, tableTypeID string) ([]reservation.Table, error) {
	id, err := uuid.Parse(key.BarID)
	if err != nil {
		return nil, ErrBarNotFound
	}

	var typeID *uuid.UUID
	cacheType := "all"
	if tableTypeID != "" {
		parsed, err := uuid.Parse(tableTypeID)
		if err != nil {
			return []reservation.Table{}, nil
		}
		typeID = &parsed
		cacheType = tableTypeID
	}

	var tables []reservation.Table
	err = s.cached(ctx, constants.BuildBarTablesKey(key.BarID, cacheType), constants.TTL_BAR_TABLES, func() (interface{}, error) {
		return s.loadTables(ctx, id, typeID)
	}, &tables)
	if err != nil {
		return nil, err
	}

	// Booked status changes with every booking and is never cached
	bookedIDs, err := s.booked.BookedTableIDs(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to get booked tables: %w", err)
	}
	booked := make(map[string]bool, len(bookedIDs))
	for _, tableID := range bookedIDs {
		booked[tableID] = true
	}
	for i := range tables {
		tables[i].Booked = booked[tables[i].ID]
	}

	return tables, nil
}

func (s *service) loadTables(ctx context.Context, barID uuid.UUID, tableTypeID *uuid.UUID) ([]reservation.Table, error) {
	if _, err := s.repo.GetBarByID(ctx, barID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBarNotFound
		}
		return nil, fmt.Errorf("failed to get bar: %w", err)
	}

	rows, err := s.repo.GetTables(ctx, barID, tableTypeID)
	if err != nil {
		return nil, fmt.Errorf("failed to get tables: %w", err)
	}

	tables := make([]reservation.Table, 0, len(rows))
	for _, row := range rows {
		tables = append(tables, reservation.Table{
			ID:            row.ID.String(),
			Name:          row.Name,
			TableTypeID:   row.TableTypeID.String(),
			TableTypeName: row.TableType.Name,
			MinGuests:     row.MinGuests,
			MaxGuests:     row.MaxGuests,
			MinimumSpend:  row.TableType.MinimumSpend,
		})
	}
	return tables, nil
}

func (s *service) TableExists(ctx context.Context, barID, tableID string) (bool, error) {
	barUUID, err := uuid.Parse(barID)
	if err != nil {
		return false, nil
	}
	tableUUID, err := uuid.Parse(tableID)
	if err != nil {
		return false, nil
	}
	return s.repo.TableExists(ctx, barUUID, tableUUID)
}

//  CACHE

func (s *service) InvalidateCache(ctx context.Context, barID string) error {
	if s.cacheService == nil {
		return nil
	}
	return s.cacheService.DeletePattern(ctx, constants.BuildBarCachePattern(barID))
}

// cached runs the cache-aside lookup, or fetch alone when no cache is configured
func (s *service) cached(ctx context.Context, key string, ttl time.Duration, fetch func() (interface{}, error), dest interface{}) error {
	if s.cacheService != nil {
		return s.cacheService.GetOrSet(ctx, key, ttl, fetch, dest)
	}

	data, err := fetch()
	if err != nil {
		return err
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal fetched data error: %w", err)
	}
	return json.Unmarshal(raw, dest)
}
