package timeutils

import (
	"fmt"
	"time"
)

// Range names a deletion window.
type Range string

const (
	RangeLastDay  Range = "last_day"
	RangeLastWeek Range = "last_week"
	RangeAll      Range = "all"
	RangeCustom   Range = "custom"
)

// DateRange is a user-picked interval of calendar days.
type DateRange struct {
	Start time.Time `json:"startDate"`
	End   time.Time `json:"endDate"`
}

// ParseRange validates a range name.
func ParseRange(s string) (Range, error) {
	switch r := Range(s); r {
	case RangeLastDay, RangeLastWeek, RangeAll, RangeCustom:
		return r, nil
	case "":
		return RangeAll, nil
	default:
		return "", fmt.Errorf("unknown time range %q", s)
	}
}

// StartOfDay truncates t to 00:00:00.000 in its own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfDay returns 23:59:59.999 of the day of t in its own location.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), t.Location())
}

// Bounds returns the inclusive [from, to] window of r at instant now.
// ok is false when the range is unbounded (all, or custom without dates).
func Bounds(r Range, now time.Time, custom *DateRange) (from, to time.Time, ok bool) {
	switch r {
	case RangeLastDay:
		return now.Add(-24 * time.Hour), now, true
	case RangeLastWeek:
		return now.Add(-7 * 24 * time.Hour), now, true
	case RangeCustom:
		if custom == nil || custom.Start.IsZero() || custom.End.IsZero() {
			return time.Time{}, time.Time{}, false
		}
		return StartOfDay(custom.Start), EndOfDay(custom.End), true
	default:
		return time.Time{}, time.Time{}, false
	}
}

// InRange reports whether t falls in the window of r.
// last_day and last_week have no upper bound so messages dated slightly ahead of
// the local clock still match.
func InRange(t time.Time, r Range, now time.Time, custom *DateRange) bool {
	from, to, ok := Bounds(r, now, custom)
	if !ok {
		return true
	}
	if t.Before(from) {
		return false
	}
	if r == RangeCustom && t.After(to) {
		return false
	}
	return true
}
