package calendar

import (
	"fmt"
	"strings"
	"time"
)

// ErrMalformedWeek is returned when a computed work week is not exactly Monday through Friday.
var ErrMalformedWeek = fmt.Errorf("malformed work week")

// WorkDays is the fixed Monday..Friday order of a canonical week.
var WorkDays = [5]time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}

// Date returns the calendar date of t as midnight UTC, dropping clock and zone.
func Date(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// CanonicalWeek returns the Monday..Friday dates of the work week containing anchor.
// Sunday belongs to the week that ended the day before.
func CanonicalWeek(anchor time.Time) ([5]time.Time, error) {
	var week [5]time.Time

	index := int(anchor.Weekday())
	offset := index - 1
	if anchor.Weekday() == time.Sunday {
		offset = 6
	}

	// time.Date normalises day overflow, which keeps the arithmetic on year/month/day only.
	for i := range week {
		week[i] = time.Date(anchor.Year(), anchor.Month(), anchor.Day()-offset+i, 0, 0, 0, 0, time.UTC)
	}

	for i, d := range week {
		if d.Weekday() != WorkDays[i] {
			return week, fmt.Errorf("%w: position %d is %s, expected %s", ErrMalformedWeek, i, d.Weekday(), WorkDays[i])
		}
	}
	return week, nil
}

// ParseWeekday parses a lower or mixed case English weekday name ("monday").
func ParseWeekday(s string) (time.Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.ToLower(d.String()) == name {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("unknown weekday %q", s)
}
