package schedule

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// FallbackOrder is the order in which other weekdays are consulted when a day has no slots.
var FallbackOrder = []time.Weekday{time.Monday, time.Wednesday, time.Tuesday, time.Thursday, time.Friday}

// Resolution is the outcome of resolving one weekday.
type Resolution struct {
	Slots []Slot
	// Source is the weekday the slots were taken from; it differs from the requested day
	// when the fallback policy applied.
	Source     time.Weekday
	FellBack   bool
	Unresolved bool // no weekday in the week has any slot
}

// Week indexes a group's slots per weekday, each day ordered by start time.
type Week struct {
	byDay map[time.Weekday][]Slot
}

// NewWeek builds the weekly index from raw slots.
func NewWeek(slots []Slot) *Week {
	w := &Week{byDay: make(map[time.Weekday][]Slot)}
	for _, s := range slots {
		w.byDay[s.Weekday] = append(w.byDay[s.Weekday], s)
	}
	for day := range w.byDay {
		daySlots := w.byDay[day]
		sort.SliceStable(daySlots, func(i, j int) bool {
			return normalizeClock(daySlots[i].StartTime) < normalizeClock(daySlots[j].StartTime)
		})
	}
	return w
}

// Resolve returns the slots for day, falling back to the first weekday in FallbackOrder that
// has slots. When no weekday has slots the resolution is empty and marked Unresolved.
func (w *Week) Resolve(day time.Weekday) Resolution {
	if slots := w.byDay[day]; len(slots) > 0 {
		return Resolution{Slots: slots, Source: day}
	}
	for _, candidate := range FallbackOrder {
		if slots := w.byDay[candidate]; len(slots) > 0 {
			return Resolution{Slots: slots, Source: candidate, FellBack: true}
		}
	}
	return Resolution{Source: day, Unresolved: true}
}

// FormatTimeRange renders "09:00"/"10:00:00" as "9:00 AM - 10:00 AM".
func FormatTimeRange(start, end string) string {
	s, errS := parseClock(start)
	e, errE := parseClock(end)
	if errS != nil || errE != nil {
		return strings.TrimSpace(fmt.Sprintf("%s - %s", start, end))
	}
	return fmt.Sprintf("%s - %s", s.Format("3:04 PM"), e.Format("3:04 PM"))
}

func parseClock(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if t, err := time.Parse("15:04:05", v); err == nil {
		return t, nil
	}
	return time.Parse("15:04", v)
}

// normalizeClock makes "9:00" and "09:00:00" comparable as strings.
func normalizeClock(v string) string {
	t, err := parseClock(v)
	if err != nil {
		return v
	}
	return t.Format("15:04:05")
}
