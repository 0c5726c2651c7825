package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"barbuddy/internal/reservation"
)

// DefaultSlotInterval is used when a bar does not configure its own interval
const DefaultSlotInterval = time.Hour

// DaySchedule holds the local opening and closing clock times of one weekday.
// Close at or before Open means the bar closes after midnight.
type DaySchedule struct {
	Open  string `json:"open"`
	Close string `json:"close"`
}

// BarSchedule is the weekly opening-hours table of a bar. A weekday absent
// from Days means the bar is closed that day.
type BarSchedule struct {
	BarID        string                       `json:"bar_id"`
	Days         map[time.Weekday]DaySchedule `json:"days"`
	SlotInterval time.Duration                `json:"slot_interval"`
}

// Interval returns the configured slot interval or the default
func (s BarSchedule) Interval() time.Duration {
	if s.SlotInterval <= 0 {
		return DefaultSlotInterval
	}
	return s.SlotInterval
}

// TimeSlot is a bookable start time derived for one requested date.
// Label is the local clock time; Date is the calendar date the slot
// actually falls on, which differs from the requested date for slots
// past midnight.
type TimeSlot struct {
	Label    string    `json:"label"`
	NextDay  bool      `json:"next_day"`
	Date     string    `json:"date"`
	StartsAt time.Time `json:"starts_at"`
}

// Clock supplies the current time
type Clock interface {
	Now() time.Time
}

// RealClock is the wall clock
type RealClock struct{}

// Now returns time.Now()
func (RealClock) Now() time.Time {
	return time.Now()
}

// ParseClock normalises "H:MM", "HH:MM" and "HH:MM:SS" to "HH:MM"
func ParseClock(value string) (string, error) {
	hour, minute, err := clockParts(value)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%02d:%02d", hour, minute), nil
}

func clockParts(value string) (int, int, error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, 0, fmt.Errorf("invalid clock time %q", value)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 || len(parts[0]) > 2 {
		return 0, 0, fmt.Errorf("invalid hour in %q", value)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 || len(parts[1]) != 2 {
		return 0, 0, fmt.Errorf("invalid minute in %q", value)
	}
	if len(parts) == 3 {
		second, err := strconv.Atoi(parts[2])
		if err != nil || second < 0 || second > 59 {
			return 0, 0, fmt.Errorf("invalid second in %q", value)
		}
	}

	return hour, minute, nil
}

// IsOpenOn reports whether the bar has opening hours on the weekday of date.
// It lets callers tell "closed all day" apart from "no slots left today".
func IsOpenOn(date time.Time, sched BarSchedule) bool {
	_, ok := sched.Days[date.Weekday()]
	return ok
}

// ResolveSlots returns the ordered bookable slots of sched for date.
//
// Slots start at the opening time and step by the slot interval; the last
// slot leaves a full interval before closing. When the bar closes after
// midnight, later slots carry NextDay and the following calendar date.
// Slots that are not strictly in the future relative to now are dropped:
// only slots at or after the next interval boundary following now are kept.
// A closed day yields an empty list.
func ResolveSlots(date time.Time, sched BarSchedule, now time.Time) ([]TimeSlot, error) {
	loc := date.Location()
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, loc)

	hours, ok := sched.Days[day.Weekday()]
	if !ok {
		return []TimeSlot{}, nil
	}

	openHour, openMinute, err := clockParts(hours.Open)
	if err != nil {
		return nil, fmt.Errorf("opening time for %s: %w", day.Weekday(), err)
	}
	closeHour, closeMinute, err := clockParts(hours.Close)
	if err != nil {
		return nil, fmt.Errorf("closing time for %s: %w", day.Weekday(), err)
	}

	openAt := time.Date(day.Year(), day.Month(), day.Day(), openHour, openMinute, 0, 0, loc)
	closeAt := time.Date(day.Year(), day.Month(), day.Day(), closeHour, closeMinute, 0, 0, loc)
	if !closeAt.After(openAt) {
		closeAt = closeAt.AddDate(0, 0, 1)
	}

	interval := sched.Interval()

	var boundary time.Time
	filter := !now.In(loc).Before(day)
	if filter {
		boundary = nextBoundary(now.In(loc), interval)
	}

	slots := make([]TimeSlot, 0)
	for startsAt := openAt; !startsAt.Add(interval).After(closeAt); startsAt = startsAt.Add(interval) {
		if filter && startsAt.Before(boundary) {
			continue
		}
		slots = append(slots, TimeSlot{
			Label:    startsAt.Format(reservation.TimeFormat),
			NextDay:  !isSameDay(startsAt, day),
			Date:     startsAt.Format(reservation.DateFormat),
			StartsAt: startsAt,
		})
	}

	return slots, nil
}

// nextBoundary returns the first multiple of interval on the local clock
// strictly after now
func nextBoundary(now time.Time, interval time.Duration) time.Time {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	elapsed := now.Sub(midnight)
	return midnight.Add((elapsed/interval + 1) * interval)
}

func isSameDay(a, b time.Time) bool {
	y1, m1, d1 := a.Date()
	y2, m2, d2 := b.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
