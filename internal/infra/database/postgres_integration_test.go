package database

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"therapy_notes_generator/internal/domain/attendance"
	"therapy_notes_generator/internal/domain/catalog"
	"therapy_notes_generator/internal/domain/group"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// openTestDB connects to TEST_DATABASE_URL and applies the schema; the test is skipped otherwise.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	db, err := NewPostgresConnection(ctx, dsn, PoolOptions{MaxOpenConns: 5, ConnectAttempts: 1}, logrus.NewEntry(logrus.New()))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := ApplySchema(ctx, db); err != nil {
		t.Fatalf("ApplySchema: %v", err)
	}
	return db
}

func mustExec(t *testing.T, db *sql.DB, query string, args ...any) {
	t.Helper()
	if _, err := db.Exec(query, args...); err != nil {
		t.Fatalf("exec %q: %v", query, err)
	}
}

type fixture struct {
	groupID, weekID, patientID, activityID, subA, subB string
	monday                                              time.Time
}

func seed(t *testing.T, db *sql.DB) fixture {
	t.Helper()
	f := fixture{
		groupID: uuid.NewString(), weekID: uuid.NewString(), patientID: uuid.NewString(),
		activityID: uuid.NewString(), subA: uuid.NewString(), subB: uuid.NewString(),
		monday: time.Date(2024, time.June, 10, 0, 0, 0, 0, time.UTC),
	}
	clinicID := uuid.NewString()
	mustExec(t, db, `INSERT INTO clinics (id, name) VALUES ($1, 'Clinic')`, clinicID)
	mustExec(t, db, `INSERT INTO groups (id, clinic_id, name, program) VALUES ($1, $2, 'Morning', 'PHP')`, f.groupID, clinicID)
	mustExec(t, db, `INSERT INTO group_weeks (id, group_id, week_number, start_date, end_date) VALUES ($1, $2, 1, $3, $4)`,
		f.weekID, f.groupID, f.monday, f.monday.AddDate(0, 0, 4))
	mustExec(t, db, `INSERT INTO patients (id, group_id, first_name, last_name, patient_number) VALUES ($1, $2, 'Ana', 'Lopez', '1042')`, f.patientID, f.groupID)
	mustExec(t, db, `INSERT INTO patient_diagnoses (id, patient_id, icd10_code, is_primary) VALUES ($1, $2, 'F41.1', FALSE), ($3, $2, 'F33.1', TRUE)`,
		uuid.NewString(), f.patientID, uuid.NewString())
	mustExec(t, db, `INSERT INTO patient_goals (patient_id, goal_number, description) VALUES ($1, 2, 'Sleep better')`, f.patientID)

	mustExec(t, db, `INSERT INTO activities (id, name) VALUES ($1, 'Life Skills')`, f.activityID)
	mustExec(t, db, `INSERT INTO subactivities (id, activity_id, name) VALUES ($1, $3, 'Budgeting'), ($2, $3, 'Cooking')`, f.subA, f.subB, f.activityID)
	mustExec(t, db, `INSERT INTO content_units (id, activity_id, subactivity_id, text, sort_order) VALUES
		($1, $4, $5, 'cooking 1', 1), ($2, $4, $6, 'budget unordered', NULL), ($3, $4, $6, 'budget 1', 1)`,
		uuid.NewString(), uuid.NewString(), uuid.NewString(), f.activityID, f.subB, f.subA)
	mustExec(t, db, `INSERT INTO group_schedules (id, group_id, day_of_week, activity_id, start_time, end_time, units)
		VALUES ($1, $2, 'Monday', $3, '09:00', '10:00', 1.5)`, uuid.NewString(), f.groupID, f.activityID)
	return f
}

func TestPostgresRepositories(t *testing.T) {
	db := openTestDB(t)
	f := seed(t, db)
	ctx := context.Background()

	t.Run("canonical unit order", func(t *testing.T) {
		units, err := NewPostgresCatalogRepository(db).ListActiveSubactivityUnits(ctx, f.activityID)
		if err != nil {
			t.Fatalf("ListActiveSubactivityUnits: %v", err)
		}
		var texts []string
		for _, u := range units {
			texts = append(texts, u.Text)
		}
		want := []string{"budget 1", "budget unordered", "cooking 1"}
		if len(texts) != len(want) {
			t.Fatalf("texts = %v, want %v", texts, want)
		}
		for i := range want {
			if texts[i] != want[i] {
				t.Fatalf("texts = %v, want %v", texts, want)
			}
		}
	})

	t.Run("usage dedup and latest", func(t *testing.T) {
		repo := NewPostgresCatalogRepository(db)
		units, _ := repo.ListActiveUnits(ctx, f.activityID, f.subA)
		scope := catalog.Scope{GroupID: f.groupID, ActivityID: f.activityID}

		save := func(unitID, hash string, day int) error {
			used := f.monday.AddDate(0, 0, day)
			return repo.SaveUsage(ctx,
				&catalog.UsageRecord{ID: uuid.NewString(), ScopeKey: scope.Key(), GroupID: f.groupID, ActivityID: f.activityID,
					SubactivityID: f.subA, UnitID: unitID, PatientID: f.patientID, WeekID: f.weekID, UsedDate: used, CreatedAt: time.Now()},
				&catalog.GeneratedTextRecord{ID: uuid.NewString(), Hash: hash, Text: "t", UnitID: unitID, UsedDate: used, CreatedAt: time.Now()})
		}
		hash := func() string { return (uuid.NewString() + uuid.NewString())[:64] }

		h := hash()
		if err := save(units[1].ID, h, 1); err != nil {
			t.Fatalf("SaveUsage: %v", err)
		}
		if err := save(units[0].ID, hash(), 0); err != nil {
			t.Fatalf("SaveUsage: %v", err)
		}
		if err := save(units[0].ID, h, 4); err != nil {
			t.Fatalf("duplicate SaveUsage: %v", err)
		}

		latest, err := repo.LatestUsage(ctx, scope.Key())
		if err != nil {
			t.Fatalf("LatestUsage: %v", err)
		}
		if latest.UnitID != units[1].ID {
			t.Fatalf("latest unit = %s, want the tuesday unit %s", latest.UnitID, units[1].ID)
		}
		if ok, _ := repo.GeneratedTextExists(ctx, h); !ok {
			t.Fatalf("hash not stored")
		}
		if _, err := repo.LatestUsage(ctx, "missing/"+uuid.NewString()); !errors.Is(err, catalog.ErrUsageNotFound) {
			t.Fatalf("expected ErrUsageNotFound, got %v", err)
		}
	})

	t.Run("groups weeks and patients", func(t *testing.T) {
		repo := NewPostgresGroupRepository(db)
		g, err := repo.GetGroup(ctx, f.groupID)
		if err != nil || g.Program != group.ProgramPHP || g.ClinicName != "Clinic" {
			t.Fatalf("GetGroup = %+v, %v", g, err)
		}
		if _, err := repo.GetGroup(ctx, uuid.NewString()); !errors.Is(err, group.ErrGroupNotFound) {
			t.Fatalf("expected ErrGroupNotFound, got %v", err)
		}

		w, err := repo.GetWeekContaining(ctx, f.groupID, f.monday.AddDate(0, 0, 2))
		if err != nil || w.ID != f.weekID {
			t.Fatalf("GetWeekContaining = %+v, %v", w, err)
		}
		if err := repo.MarkNotesGenerated(ctx, f.weekID, time.Now()); err != nil {
			t.Fatalf("MarkNotesGenerated: %v", err)
		}
		if w, _ = repo.GetWeek(ctx, f.groupID, f.weekID); !w.NotesGenerated || w.NotesGeneratedAt == nil {
			t.Fatalf("week not marked: %+v", w)
		}

		patients, err := repo.ListActivePatients(ctx, f.groupID)
		if err != nil || len(patients) != 1 {
			t.Fatalf("ListActivePatients = %+v, %v", patients, err)
		}
		p := patients[0]
		if len(p.Diagnoses) != 2 || !p.Diagnoses[0].IsPrimary || p.Goal(2) != "Sleep better" {
			t.Fatalf("patient details = %+v", p)
		}
	})

	t.Run("attendance with reasons", func(t *testing.T) {
		attID := uuid.NewString()
		mustExec(t, db, `INSERT INTO attendance (id, patient_id, attendance_date, status) VALUES ($1, $2, $3, 'A')`, attID, f.patientID, f.monday.AddDate(0, 0, 2))
		mustExec(t, db, `INSERT INTO absence_reasons (id, attendance_id, reason_type, description) VALUES ($1, $2, 'hospitalized', 'ER')`, uuid.NewString(), attID)

		records, err := NewPostgresAttendanceRepository(db).ListByGroupAndRange(ctx, f.groupID, f.monday, f.monday.AddDate(0, 0, 4))
		if err != nil || len(records) != 1 {
			t.Fatalf("ListByGroupAndRange = %+v, %v", records, err)
		}
		if records[0].Status != attendance.StatusAbsent || len(records[0].Reasons) != 1 || records[0].Reasons[0].Type != attendance.ReasonHospitalized {
			t.Fatalf("record = %+v", records[0])
		}
	})

	t.Run("schedule", func(t *testing.T) {
		slots, err := NewPostgresScheduleRepository(db).ListSlotsByGroup(ctx, f.groupID)
		if err != nil || len(slots) != 1 {
			t.Fatalf("ListSlotsByGroup = %+v, %v", slots, err)
		}
		if slots[0].Weekday != time.Monday || slots[0].StartTime != "09:00:00" || slots[0].Units != 1.5 || slots[0].ActivityName != "Life Skills" {
			t.Fatalf("slot = %+v", slots[0])
		}
	})
}
