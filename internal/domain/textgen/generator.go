package textgen

import (
	"context"

	"therapy_notes_generator/internal/domain/group"
)

// ResponseRequest describes one client-response entry of a group session.
type ResponseRequest struct {
	PatientName     string
	Program         group.Program
	ActivityName    string
	SubactivityName string
	Paragraph       string
	GoalNumber      int
	GoalText        string
}

// SummaryActivity is one activity listed in a progress summary request.
type SummaryActivity struct {
	Name        string
	Description string
}

// SummaryRequest describes the progress summary of one note.
type SummaryRequest struct {
	PatientName string
	Activities  []SummaryActivity
}

// Generator produces free text for notes. Implementations may fail or return empty text;
// callers apply the fallback contract.
type Generator interface {
	GenerateClientResponse(ctx context.Context, req ResponseRequest) (string, error)
	GenerateProgressSummary(ctx context.Context, req SummaryRequest) (string, error)
}
