package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"therapy_notes_generator/internal/domain/group"

	"github.com/sirupsen/logrus"
)

// ArchiveSink stores a finished archive and returns where it was written.
type ArchiveSink interface {
	Save(ctx context.Context, name string, data []byte) (string, error)
}

// WeeklyRunService generates the notes of every active group for the week containing a date.
type WeeklyRunService struct {
	groups   group.Repository
	notes    NotesGenerator
	sink     ArchiveSink
	reporter *ReportService
	logger   *logrus.Entry
	now      func() time.Time
}

func NewWeeklyRunService(groups group.Repository, notes NotesGenerator, sink ArchiveSink, reporter *ReportService, logger *logrus.Entry) *WeeklyRunService {
	return &WeeklyRunService{
		groups:   groups,
		notes:    notes,
		sink:     sink,
		reporter: reporter,
		logger:   logger.WithField("component", "weekly_run"),
		now:      time.Now,
	}
}

// RunForDate processes groups one after another. A failing group is reported and does not stop
// the others; weeks already marked as generated are skipped.
func (s *WeeklyRunService) RunForDate(ctx context.Context, date time.Time) (RunReport, error) {
	report := RunReport{Date: date}

	groups, err := s.groups.ListActiveGroups(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list active groups: %w", err)
	}
	if len(groups) == 0 {
		s.logger.Info("No active groups, nothing to generate")
		return report, nil
	}

	for _, g := range groups {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Outcomes = append(report.Outcomes, s.runGroup(ctx, g, date))
	}

	if s.reporter != nil {
		s.reporter.Send(report)
	}
	return report, nil
}

func (s *WeeklyRunService) runGroup(ctx context.Context, g *group.Group, date time.Time) GroupOutcome {
	out := GroupOutcome{GroupName: g.Name}
	log := s.logger.WithFields(logrus.Fields{"group_id": g.ID, "group": g.Name})

	week, err := s.groups.GetWeekContaining(ctx, g.ID, date)
	if errors.Is(err, group.ErrWeekNotFound) {
		out.Skipped = "no week for " + date.Format("2006-01-02")
		log.Info("Skipping group without a week for the run date")
		return out
	}
	if err != nil {
		out.Err = fmt.Errorf("failed to find week: %w", err)
		log.WithError(err).Error("Failed to find week")
		return out
	}
	out.WeekNumber = week.Number
	if week.NotesGenerated {
		out.Skipped = fmt.Sprintf("week %d already generated", week.Number)
		log.WithField("week_id", week.ID).Info("Week notes already generated, skipping")
		return out
	}

	archive, err := s.notes.GenerateWeekNotes(ctx, g.ID, week.ID)
	if err != nil {
		out.Err = err
		log.WithError(err).WithField("precondition", IsPrecondition(err)).Error("Week notes generation failed")
		return out
	}
	out.Jobs, out.Documents = archive.Jobs, archive.Documents

	location, err := s.sink.Save(ctx, archive.FileName(), archive.Content)
	if err != nil {
		out.Err = fmt.Errorf("failed to save archive: %w", err)
		log.WithError(err).Error("Failed to save archive")
		return out
	}
	out.Location = location

	if err := s.groups.MarkNotesGenerated(ctx, week.ID, s.now()); err != nil {
		// the week stays unmarked and is regenerated by the next run
		log.WithError(err).Warn("Failed to mark week notes as generated")
	}
	log.WithFields(logrus.Fields{"week_id": week.ID, "location": location}).Info("Week archive saved")
	return out
}
