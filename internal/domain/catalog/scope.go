package catalog

import "fmt"

// Scope is the key under which round-robin state is tracked: a group plus an activity,
// optionally narrowed to one subactivity.
type Scope struct {
	GroupID       string
	ActivityID    string
	SubactivityID string
}

// Key is the stable string persisted in usage_records.scope_key.
func (s Scope) Key() string {
	if s.SubactivityID == "" {
		return fmt.Sprintf("%s/%s", s.GroupID, s.ActivityID)
	}
	return fmt.Sprintf("%s/%s/%s", s.GroupID, s.ActivityID, s.SubactivityID)
}

// HasSubactivity reports whether the schedule pinned a subactivity for this scope.
func (s Scope) HasSubactivity() bool {
	return s.SubactivityID != ""
}

func (s Scope) String() string {
	return s.Key()
}
