package app

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"therapy_notes_generator/internal/domain/attendance"
	"therapy_notes_generator/internal/domain/catalog"
	"therapy_notes_generator/internal/domain/group"
	"therapy_notes_generator/internal/domain/note"
	"therapy_notes_generator/internal/domain/schedule"
	"therapy_notes_generator/internal/domain/textgen"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func intPtr(v int) *int { return &v }

// memCatalog is an in-memory catalog.Repository.
type memCatalog struct {
	mu         sync.Mutex
	units      []catalog.ContentUnit
	usages     []catalog.UsageRecord
	texts      map[string]catalog.GeneratedTextRecord
	failList   error
	failLatest error
	failSave   error
}

func newMemCatalog(units ...catalog.ContentUnit) *memCatalog {
	for i := range units {
		units[i].IsActive = true
	}
	return &memCatalog{units: units, texts: make(map[string]catalog.GeneratedTextRecord)}
}

func (m *memCatalog) ListActiveUnits(_ context.Context, activityID, subactivityID string) ([]catalog.ContentUnit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failList != nil {
		return nil, m.failList
	}
	var out []catalog.ContentUnit
	for _, u := range m.units {
		if u.IsActive && u.ActivityID == activityID && u.SubactivityID == subactivityID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *memCatalog) ListActiveSubactivityUnits(_ context.Context, activityID string) ([]catalog.ContentUnit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failList != nil {
		return nil, m.failList
	}
	var out []catalog.ContentUnit
	for _, u := range m.units {
		if u.IsActive && u.ActivityID == activityID && u.SubactivityID != "" {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *memCatalog) LatestUsage(_ context.Context, scopeKey string) (*catalog.UsageRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failLatest != nil {
		return nil, m.failLatest
	}
	type indexed struct {
		rec catalog.UsageRecord
		seq int
	}
	var matches []indexed
	for i, u := range m.usages {
		if u.ScopeKey == scopeKey {
			matches = append(matches, indexed{u, i})
		}
	}
	if len(matches) == 0 {
		return nil, catalog.ErrUsageNotFound
	}
	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if !a.rec.UsedDate.Equal(b.rec.UsedDate) {
			return a.rec.UsedDate.After(b.rec.UsedDate)
		}
		if !a.rec.CreatedAt.Equal(b.rec.CreatedAt) {
			return a.rec.CreatedAt.After(b.rec.CreatedAt)
		}
		return a.seq > b.seq
	})
	rec := matches[0].rec
	return &rec, nil
}

func (m *memCatalog) GeneratedTextExists(_ context.Context, hash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.texts[hash]
	return ok, nil
}

func (m *memCatalog) SaveUsage(_ context.Context, usage *catalog.UsageRecord, text *catalog.GeneratedTextRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSave != nil {
		return m.failSave
	}
	m.usages = append(m.usages, *usage)
	m.texts[text.Hash] = *text
	for i := range m.units {
		if m.units[i].ID == usage.UnitID {
			m.units[i].UsageCount++
		}
	}
	return nil
}

func (m *memCatalog) usageCount(unitID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.units {
		if u.ID == unitID {
			return u.UsageCount
		}
	}
	return -1
}

func (m *memCatalog) usageLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.usages)
}

// memGroups is an in-memory group.Repository.
type memGroups struct {
	mu       sync.Mutex
	groups   map[string]*group.Group
	weeks    map[string]*group.Week
	patients map[string][]group.Patient
	marked   []string
}

func newMemGroups() *memGroups {
	return &memGroups{
		groups:   make(map[string]*group.Group),
		weeks:    make(map[string]*group.Week),
		patients: make(map[string][]group.Patient),
	}
}

func (m *memGroups) GetGroup(_ context.Context, id string) (*group.Group, error) {
	g, ok := m.groups[id]
	if !ok {
		return nil, group.ErrGroupNotFound
	}
	cp := *g
	return &cp, nil
}

func (m *memGroups) ListActiveGroups(_ context.Context) ([]*group.Group, error) {
	var out []*group.Group
	for _, g := range m.groups {
		if g.IsActive {
			cp := *g
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memGroups) GetWeek(_ context.Context, groupID, weekID string) (*group.Week, error) {
	w, ok := m.weeks[weekID]
	if !ok || w.GroupID != groupID {
		return nil, group.ErrWeekNotFound
	}
	cp := *w
	return &cp, nil
}

func (m *memGroups) GetWeekContaining(_ context.Context, groupID string, date time.Time) (*group.Week, error) {
	for _, w := range m.weeks {
		if w.GroupID == groupID && !date.Before(w.StartDate) && !date.After(w.EndDate) {
			cp := *w
			return &cp, nil
		}
	}
	return nil, group.ErrWeekNotFound
}

func (m *memGroups) MarkNotesGenerated(_ context.Context, weekID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.weeks[weekID]
	if !ok {
		return group.ErrWeekNotFound
	}
	w.NotesGenerated = true
	w.NotesGeneratedAt = &at
	m.marked = append(m.marked, weekID)
	return nil
}

func (m *memGroups) ListActivePatients(_ context.Context, groupID string) ([]group.Patient, error) {
	return m.patients[groupID], nil
}

type memSchedule struct {
	slots []schedule.Slot
}

func (m memSchedule) ListSlotsByGroup(_ context.Context, groupID string) ([]schedule.Slot, error) {
	var out []schedule.Slot
	for _, s := range m.slots {
		if s.GroupID == groupID {
			out = append(out, s)
		}
	}
	return out, nil
}

type memAttendance struct {
	records []attendance.Record
}

func (m memAttendance) ListByGroupAndRange(_ context.Context, _ string, from, to time.Time) ([]attendance.Record, error) {
	var out []attendance.Record
	for _, r := range m.records {
		if !r.Date.Before(from) && !r.Date.After(to) {
			out = append(out, r)
		}
	}
	return out, nil
}

// echoGenerator returns text that embeds the request so every call is distinct.
type echoGenerator struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (g *echoGenerator) GenerateClientResponse(_ context.Context, req textgen.ResponseRequest) (string, error) {
	g.mu.Lock()
	g.calls++
	n := g.calls
	g.mu.Unlock()
	if g.err != nil {
		return "", g.err
	}
	return fmt.Sprintf(`"I worked on %s today (%d)." The therapist reviewed %s with the client.`, req.ActivityName, n, req.Paragraph), nil
}

func (g *echoGenerator) GenerateProgressSummary(_ context.Context, _ textgen.SummaryRequest) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	return strings.Repeat("Progress was steady. ", 25), nil
}

// recordingRenderer renders the field bag as sorted "key=value" lines.
type recordingRenderer struct {
	mu       sync.Mutex
	rendered map[string]map[string]string
	failOn   func(fields map[string]string) bool
}

func newRecordingRenderer() *recordingRenderer {
	return &recordingRenderer{rendered: make(map[string]map[string]string)}
}

func (r *recordingRenderer) Render(tpl note.Template, fields map[string]string) ([]byte, error) {
	if r.failOn != nil && r.failOn(fields) {
		return nil, fmt.Errorf("template engine exploded")
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	fmt.Fprintf(&b, "template=%s/%s\n", tpl.Program, tpl.Variant)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%s\n", k, fields[k])
	}

	r.mu.Lock()
	r.rendered[fields["id"]+"|"+fields["date"]+"|"+fields["code"]+"|"+fields["note_variant"]] = fields
	r.mu.Unlock()
	return []byte(b.String()), nil
}
