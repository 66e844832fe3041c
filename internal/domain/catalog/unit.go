package catalog

import "time"

// Activity is a top-level clinical activity of a group session (e.g. "Life Skills").
// Corresponds to the 'activities' table.
type Activity struct {
	ID       string
	Name     string
	IsActive bool
}

// Subactivity belongs to an Activity. Subactivities rotate alphabetically by Name.
type Subactivity struct {
	ID         string
	ActivityID string
	Name       string
	IsActive   bool
}

// ContentUnit is one reusable paragraph of note text.
// A unit is owned either directly by an activity (SubactivityID empty) or by a subactivity.
// Corresponds to the 'content_units' table.
type ContentUnit struct {
	ID              string
	Text            string
	Order           *int // NULL in DB sorts last
	ActivityID      string
	SubactivityID   string // empty when the unit belongs to the activity itself
	SubactivityName string // joined from subactivities, used for canonical ordering
	IsActive        bool
	UsageCount      int
}

// UsageRecord is one append-only entry of the rotation history.
// Corresponds to the 'usage_records' table.
type UsageRecord struct {
	ID            string
	ScopeKey      string
	GroupID       string
	ActivityID    string
	SubactivityID string // subactivity of the selected unit, empty for activity-owned units
	UnitID        string
	PatientID     string
	WeekID        string
	UsedDate      time.Time
	CreatedAt     time.Time
}

// GeneratedTextRecord maps a content hash to the generated free text it was computed from.
// Corresponds to the 'generated_texts' table.
type GeneratedTextRecord struct {
	ID        string
	Hash      string // hex sha256, 64 chars
	Text      string
	PatientID string
	UnitID    string
	UsedDate  time.Time
	CreatedAt time.Time
}
