package app

import (
	"context"
	"time"

	"therapy_notes_generator/internal/domain/attendance"
	"therapy_notes_generator/internal/domain/calendar"
	"therapy_notes_generator/internal/domain/catalog"
	"therapy_notes_generator/internal/domain/group"
	"therapy_notes_generator/internal/domain/note"
	"therapy_notes_generator/internal/domain/schedule"

	"github.com/sirupsen/logrus"
)

// BuildInput is everything needed to plan the documents of one group week.
type BuildInput struct {
	Group      group.Group
	Track      group.Track
	Week       group.Week
	Patients   []group.Patient
	Attendance *attendance.Book
	Schedule   *schedule.Week
}

// JobBuilder plans the document jobs of a week and resolves the content of every slot.
type JobBuilder struct {
	rotation *RotationEngine
	logger   *logrus.Entry
}

func NewJobBuilder(rotation *RotationEngine, logger *logrus.Entry) *JobBuilder {
	return &JobBuilder{rotation: rotation, logger: logger.WithField("component", "job_builder")}
}

// BuildJobs returns the jobs of the week in (day, patient) order. Each patient gets one job per
// day, two on the track's double-note day. Content is selected once per day and slot and
// shared by all patients of that day.
func (b *JobBuilder) BuildJobs(ctx context.Context, in BuildInput) ([]note.Job, error) {
	dates, err := calendar.CanonicalWeek(in.Week.StartDate)
	if err != nil {
		return nil, err
	}

	session := b.rotation.NewSession()
	jobs := make([]note.Job, 0, len(dates)*len(in.Patients))

	for _, date := range dates {
		day := date.Weekday()
		log := b.logger.WithFields(logrus.Fields{
			"group_id": in.Group.ID,
			"date":     date.Format("2006-01-02"),
		})

		res := in.Schedule.Resolve(day)
		switch {
		case res.Unresolved:
			log.Warn("Group has no schedule on any weekday, notes will have no activities")
		case res.FellBack:
			log.WithField("source_day", res.Source.String()).Warn("No schedule for day, using fallback day slots")
		}

		slots := b.resolveSlots(ctx, session, in.Group.ID, res.Slots, log)
		for _, p := range in.Patients {
			jobs = append(jobs, b.patientJobs(in, p, date, slots)...)
		}
	}

	b.logger.WithFields(logrus.Fields{
		"group_id": in.Group.ID,
		"week_id":  in.Week.ID,
		"jobs":     len(jobs),
	}).Info("Document jobs planned")
	return jobs, nil
}

func (b *JobBuilder) resolveSlots(ctx context.Context, session *RotationSession, groupID string, slots []schedule.Slot, log *logrus.Entry) []note.ResolvedSlot {
	resolved := make([]note.ResolvedSlot, 0, len(slots))
	for _, slot := range slots {
		scope := catalog.Scope{GroupID: groupID, ActivityID: slot.ActivityID, SubactivityID: slot.SubactivityID}
		sel := session.Select(ctx, scope)
		if sel.Unit == nil {
			log.WithField("scope", scope.Key()).Info("No content unit selected for slot")
		}
		resolved = append(resolved, note.ResolvedSlot{
			Slot:        slot,
			Scope:       scope,
			Subactivity: sel.Subactivity,
			Unit:        sel.Unit,
		})
	}
	return resolved
}

func (b *JobBuilder) patientJobs(in BuildInput, p group.Patient, date time.Time, slots []note.ResolvedSlot) []note.Job {
	day := date.Weekday()
	job := note.Job{
		Group:       in.Group,
		Track:       in.Track,
		Week:        in.Week,
		Patient:     p,
		Date:        date,
		Variant:     note.VariantNormal,
		BillingCode: in.Track.CodeFor(day),
	}
	if rec, ok := in.Attendance.Lookup(p.ID, date); ok {
		job.Attendance = &rec
	}
	if in.Attendance.IsAbsent(p.ID, date) {
		job.Variant = note.VariantAbsence
	} else {
		job.Slots = slots
	}

	if !in.Track.IsDoubleNoteDay(day) {
		return []note.Job{job}
	}

	first, second := job, job
	first.Sequence = 1
	second.Sequence = 2
	second.AlternateCode = true
	second.BillingCode = in.Track.Alternate()
	return []note.Job{first, second}
}
