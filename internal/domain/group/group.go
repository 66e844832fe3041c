package group

import (
	"context"
	"fmt"
	"strings"
	"time"
)

var (
	ErrGroupNotFound = fmt.Errorf("group not found")
	ErrWeekNotFound  = fmt.Errorf("group week not found")
)

// Program is the clinical program track of a group.
type Program string

const (
	ProgramPHP Program = "PHP"
	ProgramIOP Program = "IOP"
)

// Group is a therapy group. Corresponds to the 'groups' table joined with 'clinics'.
type Group struct {
	ID            string
	Name          string
	Program       Program
	ClinicName    string
	TherapistName string
	IsActive      bool
}

// Week is one numbered work week of a group. Corresponds to the 'group_weeks' table.
type Week struct {
	ID               string
	GroupID          string
	Number           int
	StartDate        time.Time
	EndDate          time.Time
	NotesGenerated   bool
	NotesGeneratedAt *time.Time
}

// Diagnosis is an ICD-10 diagnosis of a patient.
type Diagnosis struct {
	Code        string
	Description string
	IsPrimary   bool
}

// Goal is a numbered treatment goal of a patient (1..4).
type Goal struct {
	Number      int
	Description string
}

// Patient is an active member of a group.
type Patient struct {
	ID            string
	GroupID       string
	FirstName     string
	LastName      string
	PatientNumber string
	Diagnoses     []Diagnosis
	Goals         []Goal
}

// FullName returns "First Last" with surrounding whitespace removed.
func (p Patient) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(p.FirstName) + " " + strings.TrimSpace(p.LastName))
}

var pathSeparators = strings.NewReplacer("/", "_", `\`, "_")

// Folder is the per-patient directory inside the notes archive: "<First_Last>_<number>".
// The result is a single path segment with no separators, no ".." and no leading dot.
func (p Patient) Folder() string {
	number := strings.TrimSpace(p.PatientNumber)
	if number == "" {
		number = p.ID
	}
	return folderSegment(p.FullName()) + "_" + folderSegment(number)
}

func folderSegment(s string) string {
	s = strings.Join(strings.Fields(pathSeparators.Replace(s)), "_")
	for strings.Contains(s, "..") {
		s = strings.ReplaceAll(s, "..", ".")
	}
	return strings.TrimLeft(s, "._")
}

// Goal returns the description of goal n, or "" when the patient has none.
func (p Patient) Goal(n int) string {
	for _, g := range p.Goals {
		if g.Number == n {
			return g.Description
		}
	}
	return ""
}

// Repository defines read access to groups, weeks and members, plus week completion marks.
type Repository interface {
	GetGroup(ctx context.Context, id string) (*Group, error)
	ListActiveGroups(ctx context.Context) ([]*Group, error)
	GetWeek(ctx context.Context, groupID, weekID string) (*Week, error)
	// GetWeekContaining returns the group week whose date range includes date.
	GetWeekContaining(ctx context.Context, groupID string, date time.Time) (*Week, error)
	MarkNotesGenerated(ctx context.Context, weekID string, at time.Time) error
	// ListActivePatients returns the group's active patients ordered by last name, first name, id,
	// with diagnoses and goals loaded.
	ListActivePatients(ctx context.Context, groupID string) ([]Patient, error)
}
