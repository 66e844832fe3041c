package attendance

import (
	"context"
	"time"
)

// Status is the attendance mark of a patient for one day.
type Status string

const (
	StatusPresent    Status = "P"
	StatusAbsent     Status = "A"
	StatusDischarged Status = "D"
)

// ReasonType classifies why a patient was absent.
type ReasonType string

const (
	ReasonMedicalAppointment ReasonType = "medical_appointment"
	ReasonFamilyTrip         ReasonType = "family_trip"
	ReasonHospitalized       ReasonType = "hospitalized"
	ReasonOther              ReasonType = "other"
)

// Reason is one recorded absence reason.
type Reason struct {
	Type        ReasonType
	Description string
}

// Record is the attendance of one patient on one date.
// Corresponds to the 'attendance' table joined with 'absence_reasons'.
type Record struct {
	ID            string
	PatientID     string
	Date          time.Time
	Status        Status
	UnitsAttended float64
	Reasons       []Reason
	UpdatedAt     time.Time
}

// Repository defines read access to attendance.
type Repository interface {
	// ListByGroupAndRange returns the attendance of the group's patients between from and to inclusive.
	ListByGroupAndRange(ctx context.Context, groupID string, from, to time.Time) ([]Record, error)
}

// Book answers attendance lookups for a week.
type Book struct {
	records map[string]Record
}

// NewBook indexes records by (patient, date). When several records exist for the same pair the
// most recently updated one wins.
func NewBook(records []Record) *Book {
	b := &Book{records: make(map[string]Record, len(records))}
	for _, r := range records {
		key := bookKey(r.PatientID, r.Date)
		if existing, ok := b.records[key]; ok && !r.UpdatedAt.After(existing.UpdatedAt) {
			continue
		}
		b.records[key] = r
	}
	return b
}

// Lookup returns the attendance record of the patient on date, if any.
func (b *Book) Lookup(patientID string, date time.Time) (Record, bool) {
	if b == nil {
		return Record{}, false
	}
	r, ok := b.records[bookKey(patientID, date)]
	return r, ok
}

// IsAbsent reports absence: no record, or a record marked absent.
func (b *Book) IsAbsent(patientID string, date time.Time) bool {
	r, ok := b.Lookup(patientID, date)
	return !ok || r.Status == StatusAbsent
}

func bookKey(patientID string, date time.Time) string {
	return patientID + "|" + date.Format("2006-01-02")
}
