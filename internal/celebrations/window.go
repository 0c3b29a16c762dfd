package celebrations

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DaysPerWeek is the fixed length of every Window.
const DaysPerWeek = 7

var ErrInvalidStartDay = errors.New("celebrations: week must start on sunday or monday")

// WeekConfig carries the start-of-week policy. It is resolved once from
// configuration and passed into every window computation.
type WeekConfig struct {
	StartDay time.Weekday
	Location *time.Location
}

// Validate reports whether the configured start day is supported.
func (c WeekConfig) Validate() error {
	if c.StartDay != time.Sunday && c.StartDay != time.Monday {
		return fmt.Errorf("%w: got %s", ErrInvalidStartDay, c.StartDay)
	}
	return nil
}

func (c WeekConfig) location() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

// ParseStartDay maps a configuration value to a weekday.
func ParseStartDay(value string) (time.Weekday, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "sunday", "sun":
		return time.Sunday, nil
	case "monday", "mon":
		return time.Monday, nil
	default:
		return time.Sunday, fmt.Errorf("%w: %q", ErrInvalidStartDay, value)
	}
}

// Window is a concrete 7-day calendar interval. Start is the first instant of
// the first day and End the last millisecond of the seventh; both inclusive.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Days returns the calendar days of the window at midnight.
func (w Window) Days() []time.Time {
	if w.End.Before(w.Start) {
		return nil
	}
	y, m, d := w.Start.Date()
	loc := w.Start.Location()

	days := make([]time.Time, 0, DaysPerWeek)
	for i := 0; i < DaysPerWeek; i++ {
		day := time.Date(y, m, d+i, 0, 0, 0, 0, loc)
		if day.After(w.End) {
			break
		}
		days = append(days, day)
	}
	return days
}

// CurrentWeek returns the window containing ref, anchored on cfg.StartDay in
// cfg.Location.
func CurrentWeek(ref time.Time, cfg WeekConfig) Window {
	loc := cfg.location()
	local := ref.In(loc)
	offset := (int(local.Weekday()) - int(cfg.StartDay) + DaysPerWeek) % DaysPerWeek

	y, m, d := local.Date()
	return Window{
		Start: time.Date(y, m, d-offset, 0, 0, 0, 0, loc),
		End:   time.Date(y, m, d-offset+DaysPerWeek-1, 23, 59, 59, int(999*time.Millisecond), loc),
	}
}

// NextWeek returns the window immediately following w. It is derived from w
// alone so consecutive windows never gap or overlap.
func NextWeek(w Window) Window {
	return Window{
		Start: w.Start.AddDate(0, 0, DaysPerWeek),
		End:   w.End.AddDate(0, 0, DaysPerWeek),
	}
}

// Occurrence returns the day inside w on which date's month/day recurs.
// The year of date is ignored. Days are enumerated literally, so windows that
// straddle a year boundary need no special handling.
func Occurrence(date *time.Time, w Window) (time.Time, bool) {
	if date == nil || date.IsZero() {
		return time.Time{}, false
	}
	month, day := date.Month(), date.Day()
	for _, candidate := range w.Days() {
		if candidate.Month() == month && candidate.Day() == day {
			return candidate, true
		}
	}
	return time.Time{}, false
}

// IsDateInWeek reports whether date's month/day falls inside w.
// An absent date never matches.
func IsDateInWeek(date *time.Time, w Window) bool {
	_, ok := Occurrence(date, w)
	return ok
}

// ElapsedYears is a plain year subtraction. It does not check whether the
// anniversary has already passed in currentYear.
func ElapsedYears(date time.Time, currentYear int) int {
	return currentYear - date.Year()
}
