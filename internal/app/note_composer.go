package app

import (
	"context"
	"fmt"

	"therapy_notes_generator/internal/domain/note"
	"therapy_notes_generator/internal/domain/schedule"
	"therapy_notes_generator/internal/domain/textgen"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// NoteComposer turns a planned job into a rendered document: it generates the free text of
// every selected slot, records content usage and calls the renderer.
type NoteComposer struct {
	text      *TextService
	rotation  *RotationEngine
	renderer  note.Renderer
	therapist string
	logger    *logrus.Entry
}

func NewNoteComposer(text *TextService, rotation *RotationEngine, renderer note.Renderer, therapist string, logger *logrus.Entry) *NoteComposer {
	return &NoteComposer{
		text:      text,
		rotation:  rotation,
		renderer:  renderer,
		therapist: therapist,
		logger:    logger.WithField("component", "note_composer"),
	}
}

// Compose is a ProcessFunc.
func (c *NoteComposer) Compose(ctx context.Context, job note.Job) (note.Document, error) {
	data := note.NewData(job, c.therapist)
	if job.Variant == note.VariantNormal {
		c.fillSessions(ctx, job, &data)
	}

	fields, err := data.Fields()
	if err != nil {
		return note.Document{}, fmt.Errorf("failed to build note fields: %w", err)
	}

	content, err := c.renderer.Render(note.Template{Program: job.Group.Program, Variant: job.Variant}, fields)
	if err != nil {
		return note.Document{}, fmt.Errorf("failed to render document: %w", err)
	}

	return note.Document{
		Folder:   job.Folder(),
		FileName: job.FileName(),
		Variant:  job.Variant,
		Content:  content,
	}, nil
}

func (c *NoteComposer) fillSessions(ctx context.Context, job note.Job, data *note.Data) {
	slots := job.Slots
	if len(slots) > note.MaxSessions {
		c.logger.WithFields(logrus.Fields{
			"job":   job.Path(),
			"slots": len(slots),
		}).Warn("More slots than note sessions, extra slots ignored")
		slots = slots[:note.MaxSessions]
	}

	goal := data.SelectedGoal
	sessions := make([]note.Session, len(slots))
	responses := make([]ClientResponse, len(slots))

	var g errgroup.Group
	g.SetLimit(note.MaxSessions)
	for i, rs := range slots {
		sessions[i] = note.Session{
			TimeRange:       schedule.FormatTimeRange(rs.Slot.StartTime, rs.Slot.EndTime),
			Units:           rs.Slot.Units,
			ActivityName:    rs.Slot.ActivityName,
			SubactivityName: rs.Slot.SubactivityName,
		}
		if rs.Subactivity != nil {
			sessions[i].SubactivityName = rs.Subactivity.Name
		}
		if rs.Unit == nil {
			continue
		}
		sessions[i].Paragraph = rs.Unit.Text

		req := textgen.ResponseRequest{
			PatientName:     data.PatientName,
			Program:         data.Program,
			ActivityName:    sessions[i].ActivityName,
			SubactivityName: sessions[i].SubactivityName,
			Paragraph:       rs.Unit.Text,
			GoalNumber:      goal,
			GoalText:        data.Goals[goal-1],
		}
		seed := fmt.Sprintf("%s|%s|%d|%d|%s", job.Patient.ID, job.Date.Format("2006-01-02"), job.Sequence, i, rs.Unit.ID)
		i := i
		g.Go(func() error {
			responses[i] = c.text.ClientResponse(ctx, req, seed)
			return nil
		})
	}
	_ = g.Wait()

	usage := UsageContext{PatientID: job.Patient.ID, WeekID: job.Week.ID, Date: job.Date}
	activities := make([]textgen.SummaryActivity, 0, len(slots))
	for i, rs := range slots {
		activities = append(activities, textgen.SummaryActivity{Name: sessions[i].ActivityName, Description: sessions[i].Paragraph})
		if rs.Unit == nil {
			continue
		}
		sessions[i].Statement = responses[i].Statement
		sessions[i].Intervention = responses[i].Intervention
		c.rotation.RecordUsage(ctx, rs.Scope, *rs.Unit, usage, usageText(responses[i], rs.Unit.ID, usage))
	}

	data.Sessions = sessions
	data.ProgressSummary = c.text.ProgressSummary(ctx, textgen.SummaryRequest{
		PatientName: data.PatientName,
		Activities:  activities,
	}, fmt.Sprintf("%s|%s|%d", job.Patient.ID, job.Date.Format("2006-01-02"), job.Sequence))
}

// usageText is the text whose hash guards a usage record. Fallback responses come from a small
// fixed pool, so they are qualified with the usage identity to keep rotation history advancing.
func usageText(resp ClientResponse, unitID string, usage UsageContext) string {
	if !resp.Fallback {
		return resp.Text
	}
	return fmt.Sprintf("%s\n[fallback unit=%s patient=%s date=%s]", resp.Text, unitID, usage.PatientID, usage.Date.Format("2006-01-02"))
}
