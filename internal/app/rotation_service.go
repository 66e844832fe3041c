package app

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"therapy_notes_generator/internal/domain/calendar"
	"therapy_notes_generator/internal/domain/catalog"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Selection is the outcome of a rotation step. Unit is nil when nothing could be selected.
type Selection struct {
	Subactivity *catalog.Subactivity
	Unit        *catalog.ContentUnit
}

// UsageContext is where and when a selected unit was used.
type UsageContext struct {
	PatientID string
	WeekID    string
	Date      time.Time
}

// cursor is the last selection of a scope, read from history or kept in a session.
type cursor struct {
	subactivityID string
	unitID        string
}

// RotationEngine selects content units round-robin per scope and records their usage.
type RotationEngine struct {
	catalog catalog.Repository
	logger  *logrus.Entry
	now     func() time.Time
}

func NewRotationEngine(repo catalog.Repository, logger *logrus.Entry) *RotationEngine {
	return &RotationEngine{
		catalog: repo,
		logger:  logger.WithField("component", "rotation"),
		now:     time.Now,
	}
}

// SelectNext returns the next unit of a single-level scope: the units of the scope's
// subactivity, or the activity's own units when the scope names no subactivity.
// Returns nil when the scope is empty or history could not be read.
func (e *RotationEngine) SelectNext(ctx context.Context, scope catalog.Scope) *catalog.ContentUnit {
	units, ok := e.listUnits(ctx, scope)
	if !ok {
		return nil
	}
	return e.selectSingle(ctx, scope, units, nil).Unit
}

// SelectNextLevel2 rotates through the subactivities of the scope's activity and through the
// units of each subactivity. Returns nils when nothing can be selected.
func (e *RotationEngine) SelectNextLevel2(ctx context.Context, scope catalog.Scope) (*catalog.Subactivity, *catalog.ContentUnit) {
	sel := e.selectLevel2(ctx, scope, nil)
	return sel.Subactivity, sel.Unit
}

// Select picks the rotation mode for a schedule slot: single-level for an explicit subactivity
// or for an activity that owns units directly, two-level otherwise.
func (e *RotationEngine) Select(ctx context.Context, scope catalog.Scope) Selection {
	return e.selectWith(ctx, scope, nil)
}

func (e *RotationEngine) selectWith(ctx context.Context, scope catalog.Scope, prev *cursor) Selection {
	units, ok := e.listUnits(ctx, scope)
	if !ok {
		return Selection{}
	}
	if scope.HasSubactivity() || len(units) > 0 {
		return e.selectSingle(ctx, scope, units, prev)
	}
	return e.selectLevel2(ctx, scope, prev)
}

func (e *RotationEngine) listUnits(ctx context.Context, scope catalog.Scope) ([]catalog.ContentUnit, bool) {
	units, err := e.catalog.ListActiveUnits(ctx, scope.ActivityID, scope.SubactivityID)
	if err != nil {
		e.logger.WithError(err).WithField("scope", scope.Key()).Warn("Failed to list content units, slot left empty")
		return nil, false
	}
	catalog.SortCanonical(units)
	return units, true
}

func (e *RotationEngine) selectSingle(ctx context.Context, scope catalog.Scope, units []catalog.ContentUnit, prev *cursor) Selection {
	if len(units) == 0 {
		return Selection{}
	}
	last, ok := e.lastSelection(ctx, scope, prev)
	if !ok {
		return Selection{}
	}
	unit, found := catalog.NextInCycle(units, last.unitID)
	if !found {
		return Selection{}
	}

	sel := Selection{Unit: &unit}
	if scope.HasSubactivity() {
		sel.Subactivity = &catalog.Subactivity{
			ID:         scope.SubactivityID,
			ActivityID: scope.ActivityID,
			Name:       unit.SubactivityName,
			IsActive:   true,
		}
	}
	return sel
}

func (e *RotationEngine) selectLevel2(ctx context.Context, scope catalog.Scope, prev *cursor) Selection {
	units, err := e.catalog.ListActiveSubactivityUnits(ctx, scope.ActivityID)
	if err != nil {
		e.logger.WithError(err).WithField("scope", scope.Key()).Warn("Failed to list subactivity units, slot left empty")
		return Selection{}
	}
	catalog.SortCanonical(units)
	cycles := catalog.GroupBySubactivity(units)
	if len(cycles) == 0 {
		return Selection{}
	}

	last, ok := e.lastSelection(ctx, scope, prev)
	if !ok {
		return Selection{}
	}
	sub, unit, found := catalog.NextAcrossSubactivities(cycles, last.subactivityID, last.unitID)
	if !found {
		return Selection{}
	}
	return Selection{Subactivity: &sub, Unit: &unit}
}

// lastSelection returns prev when set, otherwise the latest persisted usage of the scope.
// ok is false when history could not be read.
func (e *RotationEngine) lastSelection(ctx context.Context, scope catalog.Scope, prev *cursor) (cursor, bool) {
	if prev != nil {
		return *prev, true
	}
	rec, err := e.catalog.LatestUsage(ctx, scope.Key())
	if err != nil {
		if errors.Is(err, catalog.ErrUsageNotFound) {
			return cursor{}, true
		}
		e.logger.WithError(err).WithField("scope", scope.Key()).Warn("Failed to read usage history, slot left empty")
		return cursor{}, false
	}
	return cursor{subactivityID: rec.SubactivityID, unitID: rec.UnitID}, true
}

// RecordUsage appends a usage record for unit, increments its usage counter and remembers the
// hash of generatedText. Text whose hash was already stored is not recorded again.
// Failures are logged and never returned.
func (e *RotationEngine) RecordUsage(ctx context.Context, scope catalog.Scope, unit catalog.ContentUnit, usage UsageContext, generatedText string) {
	log := e.logger.WithFields(logrus.Fields{
		"scope":      scope.Key(),
		"unit_id":    unit.ID,
		"patient_id": usage.PatientID,
	})

	text := strings.TrimSpace(generatedText)
	if text == "" {
		log.Debug("No generated text, usage not recorded")
		return
	}
	hash := HashText(text)

	exists, err := e.catalog.GeneratedTextExists(ctx, hash)
	if err != nil {
		log.WithError(err).Error("Failed to check generated text hash")
		return
	}
	if exists {
		log.WithField("hash", hash).Debug("Duplicate generated text, usage not recorded")
		return
	}

	now := e.now()
	usedDate := calendar.Date(usage.Date)
	record := &catalog.UsageRecord{
		ID:            uuid.NewString(),
		ScopeKey:      scope.Key(),
		GroupID:       scope.GroupID,
		ActivityID:    scope.ActivityID,
		SubactivityID: unit.SubactivityID,
		UnitID:        unit.ID,
		PatientID:     usage.PatientID,
		WeekID:        usage.WeekID,
		UsedDate:      usedDate,
		CreatedAt:     now,
	}
	generated := &catalog.GeneratedTextRecord{
		ID:        uuid.NewString(),
		Hash:      hash,
		Text:      text,
		PatientID: usage.PatientID,
		UnitID:    unit.ID,
		UsedDate:  usedDate,
		CreatedAt: now,
	}
	if err := e.catalog.SaveUsage(ctx, record, generated); err != nil {
		log.WithError(err).Error("Failed to record content usage")
		return
	}
	log.Debug("Content usage recorded")
}

// HashText returns the hex sha256 of s.
func HashText(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
