package note

import (
	"fmt"
	"time"

	"therapy_notes_generator/internal/domain/attendance"
	"therapy_notes_generator/internal/domain/catalog"
	"therapy_notes_generator/internal/domain/group"
	"therapy_notes_generator/internal/domain/schedule"
)

// Variant selects the document layout of a job.
type Variant string

const (
	VariantNormal  Variant = "normal"
	VariantAbsence Variant = "absence"
)

// ResolvedSlot is a schedule slot together with the content unit selected for it.
// Unit is nil when no content could be selected; the slot still renders with empty content.
type ResolvedSlot struct {
	Slot        schedule.Slot
	Scope       catalog.Scope
	Subactivity *catalog.Subactivity
	Unit        *catalog.ContentUnit
}

// Job is one document to produce for a patient on a date.
type Job struct {
	Group   group.Group
	Track   group.Track
	Week    group.Week
	Patient group.Patient
	Date    time.Time
	Variant Variant

	// Sequence is 0 on regular days and 1 or 2 on double-note days.
	Sequence    int
	BillingCode string
	// AlternateCode is set on the second note of a double-note day.
	AlternateCode bool

	Slots      []ResolvedSlot
	Attendance *attendance.Record
}

// Folder is the patient directory of the job inside the archive.
func (j Job) Folder() string {
	return j.Patient.Folder()
}

// FileName is "MMDD.docx", or "MMDD 1.docx" / "MMDD 2.docx" on double-note days.
func (j Job) FileName() string {
	stamp := j.Date.Format("0102")
	if j.Sequence > 0 {
		return fmt.Sprintf("%s %d.docx", stamp, j.Sequence)
	}
	return stamp + ".docx"
}

// Path is "<folder>/<file>", the job's identity in logs and in the archive.
func (j Job) Path() string {
	return j.Folder() + "/" + j.FileName()
}

// Document is the rendered output of a job.
type Document struct {
	Folder   string
	FileName string
	Variant  Variant
	Content  []byte
}

// Path is "<folder>/<file>".
func (d Document) Path() string {
	return d.Folder + "/" + d.FileName
}
