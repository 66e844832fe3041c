package app

import (
	"errors"
	"fmt"

	"therapy_notes_generator/internal/domain/calendar"
	"therapy_notes_generator/internal/domain/group"
)

var (
	// ErrNoDocuments is returned when every job of a run failed or there were no jobs.
	ErrNoDocuments = fmt.Errorf("no documents were generated")

	ErrEmptyArchive   = fmt.Errorf("archive has no documents")
	ErrInvalidArchive = fmt.Errorf("archive failed structural validation")
)

// AssemblyError reports a failure to package documents into a valid archive.
type AssemblyError struct {
	Err    error
	Detail string
}

func (e *AssemblyError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("archive assembly failed: %v", e.Err)
	}
	return fmt.Sprintf("archive assembly failed: %v: %s", e.Err, e.Detail)
}

func (e *AssemblyError) Unwrap() error {
	return e.Err
}

// IsPrecondition reports whether err aborted a run before any job was executed.
func IsPrecondition(err error) bool {
	return errors.Is(err, group.ErrGroupNotFound) ||
		errors.Is(err, group.ErrWeekNotFound) ||
		errors.Is(err, group.ErrUnknownProgram) ||
		errors.Is(err, calendar.ErrMalformedWeek)
}
