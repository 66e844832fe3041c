package catalog

import (
	"slices"
	"strings"
)

// Compare is the canonical rotation order: subactivity name ascending, then explicit order
// ascending with a missing order last, then id. Units of the same subactivity stay contiguous
// because the subactivity id breaks ties between equally named subactivities.
func Compare(a, b ContentUnit) int {
	if c := strings.Compare(a.SubactivityName, b.SubactivityName); c != 0 {
		return c
	}
	if c := strings.Compare(a.SubactivityID, b.SubactivityID); c != 0 {
		return c
	}
	switch {
	case a.Order != nil && b.Order == nil:
		return -1
	case a.Order == nil && b.Order != nil:
		return 1
	case a.Order != nil && b.Order != nil && *a.Order != *b.Order:
		if *a.Order < *b.Order {
			return -1
		}
		return 1
	}
	return strings.Compare(a.ID, b.ID)
}

// SortCanonical sorts units in place by Compare.
func SortCanonical(units []ContentUnit) {
	slices.SortStableFunc(units, Compare)
}

// NextInCycle returns the successor of lastUnitID in units, which must already be in canonical
// order. The first unit is returned when there is no previous selection, when lastUnitID is no
// longer in the set, or when the previous selection was the last unit.
func NextInCycle(units []ContentUnit, lastUnitID string) (ContentUnit, bool) {
	if len(units) == 0 {
		return ContentUnit{}, false
	}
	if lastUnitID == "" {
		return units[0], true
	}
	for i, u := range units {
		if u.ID == lastUnitID {
			return units[(i+1)%len(units)], true
		}
	}
	return units[0], true
}

// SubactivityCycle is the units of one subactivity in canonical order.
type SubactivityCycle struct {
	Subactivity Subactivity
	Units       []ContentUnit
}

// GroupBySubactivity splits canonically sorted units into consecutive per-subactivity cycles.
// Units without a subactivity are ignored.
func GroupBySubactivity(units []ContentUnit) []SubactivityCycle {
	var cycles []SubactivityCycle
	for _, u := range units {
		if u.SubactivityID == "" {
			continue
		}
		n := len(cycles)
		if n == 0 || cycles[n-1].Subactivity.ID != u.SubactivityID {
			cycles = append(cycles, SubactivityCycle{
				Subactivity: Subactivity{
					ID:         u.SubactivityID,
					ActivityID: u.ActivityID,
					Name:       u.SubactivityName,
					IsActive:   true,
				},
			})
			n++
		}
		cycles[n-1].Units = append(cycles[n-1].Units, u)
	}
	return cycles
}

// NextAcrossSubactivities advances a two-level rotation. Within the last used subactivity the
// next unit is returned while one remains; after its last unit the first unit of the next
// subactivity (wrapping after the last one) is returned. A previous selection that no longer
// matches an active subactivity or unit restarts at the first unit of the first subactivity.
func NextAcrossSubactivities(cycles []SubactivityCycle, lastSubactivityID, lastUnitID string) (Subactivity, ContentUnit, bool) {
	if len(cycles) == 0 {
		return Subactivity{}, ContentUnit{}, false
	}
	first := func() (Subactivity, ContentUnit, bool) {
		return cycles[0].Subactivity, cycles[0].Units[0], true
	}
	if lastUnitID == "" {
		return first()
	}

	subIdx := -1
	for i, c := range cycles {
		if c.Subactivity.ID == lastSubactivityID {
			subIdx = i
			break
		}
	}
	if subIdx < 0 {
		return first()
	}

	units := cycles[subIdx].Units
	pos := slices.IndexFunc(units, func(u ContentUnit) bool { return u.ID == lastUnitID })
	if pos < 0 {
		return first()
	}
	if pos+1 < len(units) {
		return cycles[subIdx].Subactivity, units[pos+1], true
	}

	next := cycles[(subIdx+1)%len(cycles)]
	return next.Subactivity, next.Units[0], true
}
