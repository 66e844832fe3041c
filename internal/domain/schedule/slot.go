package schedule

import (
	"context"
	"time"
)

// Slot is one scheduled activity of a group on a weekday.
// Corresponds to the 'group_schedules' table; read-only for this service.
type Slot struct {
	ID              string
	GroupID         string
	Weekday         time.Weekday
	ActivityID      string
	ActivityName    string
	SubactivityID   string // optional explicit subactivity
	SubactivityName string
	StartTime       string // "15:04" or "15:04:05"
	EndTime         string
	Units           float64
	IsNurseSession  bool
}

// Repository defines read access to group schedules.
type Repository interface {
	ListSlotsByGroup(ctx context.Context, groupID string) ([]Slot, error)
}
