package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"therapy_notes_generator/internal/domain/attendance"
	"therapy_notes_generator/internal/domain/calendar"
	"therapy_notes_generator/internal/domain/group"
	"therapy_notes_generator/internal/domain/schedule"

	"github.com/sirupsen/logrus"
)

// NotesGenerator produces the notes archive of one group week.
type NotesGenerator interface {
	GenerateWeekNotes(ctx context.Context, groupID, weekID string) (*WeekArchive, error)
}

// WeekArchive is a validated archive together with run statistics.
type WeekArchive struct {
	Group     group.Group
	Week      group.Week
	Content   []byte
	Jobs      int
	Documents int
}

// Failed is the number of jobs whose document was dropped.
func (a *WeekArchive) Failed() int {
	return a.Jobs - a.Documents
}

// FileName is "<Group_Name>_Week<N>_<monday>.zip".
func (a *WeekArchive) FileName() string {
	name := strings.Join(strings.Fields(a.Group.Name), "_")
	if name == "" {
		name = a.Group.ID
	}
	name = strings.NewReplacer("/", "-", `\`, "-").Replace(name)
	return fmt.Sprintf("%s_Week%d_%s.zip", name, a.Week.Number, a.Week.StartDate.Format("2006-01-02"))
}

// NotesService runs the weekly pipeline: load inputs, plan jobs, execute them in batches and
// assemble the archive. Only missing inputs and packaging failures abort a run.
type NotesService struct {
	groups     group.Repository
	schedules  schedule.Repository
	attendance attendance.Repository
	tracks     group.Tracks
	builder    *JobBuilder
	executor   *BatchExecutor
	composer   *NoteComposer
	assembler  *ArchiveAssembler
	logger     *logrus.Entry
}

func NewNotesService(
	groups group.Repository,
	schedules schedule.Repository,
	attendanceRepo attendance.Repository,
	tracks group.Tracks,
	builder *JobBuilder,
	executor *BatchExecutor,
	composer *NoteComposer,
	assembler *ArchiveAssembler,
	logger *logrus.Entry,
) *NotesService {
	return &NotesService{
		groups:     groups,
		schedules:  schedules,
		attendance: attendanceRepo,
		tracks:     tracks,
		builder:    builder,
		executor:   executor,
		composer:   composer,
		assembler:  assembler,
		logger:     logger.WithField("component", "notes"),
	}
}

func (s *NotesService) GenerateWeekNotes(ctx context.Context, groupID, weekID string) (*WeekArchive, error) {
	log := s.logger.WithFields(logrus.Fields{"group_id": groupID, "week_id": weekID})
	started := time.Now()

	g, err := s.groups.GetGroup(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to load group %s: %w", groupID, err)
	}
	week, err := s.groups.GetWeek(ctx, groupID, weekID)
	if err != nil {
		return nil, fmt.Errorf("failed to load week %s: %w", weekID, err)
	}
	track, err := s.tracks.Lookup(g.Program)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve program of group %s: %w", groupID, err)
	}
	dates, err := calendar.CanonicalWeek(week.StartDate)
	if err != nil {
		return nil, fmt.Errorf("failed to compute week %s dates: %w", weekID, err)
	}

	patients, err := s.groups.ListActivePatients(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	slots, err := s.schedules.ListSlotsByGroup(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to load schedule: %w", err)
	}
	records, err := s.attendance.ListByGroupAndRange(ctx, groupID, dates[0], dates[len(dates)-1])
	if err != nil {
		return nil, fmt.Errorf("failed to load attendance: %w", err)
	}
	log.WithFields(logrus.Fields{
		"program":    g.Program,
		"patients":   len(patients),
		"slots":      len(slots),
		"attendance": len(records),
	}).Info("Generating week notes")

	jobs, err := s.builder.BuildJobs(ctx, BuildInput{
		Group:      *g,
		Track:      track,
		Week:       *week,
		Patients:   patients,
		Attendance: attendance.NewBook(records),
		Schedule:   schedule.NewWeek(slots),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to plan document jobs: %w", err)
	}

	docs, err := s.executor.Run(ctx, jobs, s.composer.Compose)
	if err != nil {
		return nil, err
	}

	content, err := s.assembler.Assemble(docs)
	if err != nil {
		return nil, err
	}

	archive := &WeekArchive{Group: *g, Week: *week, Content: content, Jobs: len(jobs), Documents: len(docs)}
	log.WithFields(logrus.Fields{
		"jobs":      archive.Jobs,
		"documents": archive.Documents,
		"failed":    archive.Failed(),
		"elapsed":   time.Since(started).String(),
	}).Info("Week notes generated")
	return archive, nil
}
