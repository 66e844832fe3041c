package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"therapy_notes_generator/internal/domain/group"

	"github.com/lib/pq" // For pq.Array
)

type PostgresGroupRepository struct {
	db *sql.DB
}

func NewPostgresGroupRepository(db *sql.DB) *PostgresGroupRepository {
	return &PostgresGroupRepository{db: db}
}

var _ group.Repository = (*PostgresGroupRepository)(nil)

const groupColumns = `SELECT g.id, g.name, g.program, COALESCE(c.name, ''), g.therapist_name, g.is_active
               FROM groups g LEFT JOIN clinics c ON c.id = g.clinic_id`

func scanGroup(row interface{ Scan(...any) error }) (*group.Group, error) {
	g := &group.Group{}
	err := row.Scan(&g.ID, &g.Name, &g.Program, &g.ClinicName, &g.TherapistName, &g.IsActive)
	return g, err
}

func (r *PostgresGroupRepository) GetGroup(ctx context.Context, id string) (*group.Group, error) {
	g, err := scanGroup(r.db.QueryRowContext(ctx, groupColumns+` WHERE g.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, group.ErrGroupNotFound
		}
		return nil, fmt.Errorf("error getting group by ID: %w", err)
	}
	return g, nil
}

func (r *PostgresGroupRepository) ListActiveGroups(ctx context.Context) ([]*group.Group, error) {
	rows, err := r.db.QueryContext(ctx, groupColumns+` WHERE g.is_active = TRUE ORDER BY g.name, g.id`)
	if err != nil {
		return nil, fmt.Errorf("error listing active groups: %w", err)
	}
	defer rows.Close()

	groups := make([]*group.Group, 0)
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning active group: %w", err)
		}
		groups = append(groups, g)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating active groups: %w", err)
	}
	return groups, nil
}

const weekColumns = `SELECT id, group_id, week_number, start_date, end_date, notes_generated, notes_generated_at FROM group_weeks`

func (r *PostgresGroupRepository) scanWeek(row *sql.Row) (*group.Week, error) {
	w := &group.Week{}
	var generatedAt sql.NullTime
	if err := row.Scan(&w.ID, &w.GroupID, &w.Number, &w.StartDate, &w.EndDate, &w.NotesGenerated, &generatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, group.ErrWeekNotFound
		}
		return nil, fmt.Errorf("error getting group week: %w", err)
	}
	if generatedAt.Valid {
		w.NotesGeneratedAt = &generatedAt.Time
	}
	return w, nil
}

func (r *PostgresGroupRepository) GetWeek(ctx context.Context, groupID, weekID string) (*group.Week, error) {
	return r.scanWeek(r.db.QueryRowContext(ctx, weekColumns+` WHERE group_id = $1 AND id = $2`, groupID, weekID))
}

func (r *PostgresGroupRepository) GetWeekContaining(ctx context.Context, groupID string, date time.Time) (*group.Week, error) {
	query := weekColumns + ` WHERE group_id = $1 AND $2 BETWEEN start_date AND end_date ORDER BY week_number DESC LIMIT 1`
	return r.scanWeek(r.db.QueryRowContext(ctx, query, groupID, dateOnly(date)))
}

func (r *PostgresGroupRepository) MarkNotesGenerated(ctx context.Context, weekID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE group_weeks SET notes_generated = TRUE, notes_generated_at = $1 WHERE id = $2`, at, weekID)
	if err != nil {
		return fmt.Errorf("error marking week notes generated: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return group.ErrWeekNotFound
	}
	return nil
}

func (r *PostgresGroupRepository) ListActivePatients(ctx context.Context, groupID string) ([]group.Patient, error) {
	query := `SELECT id, group_id, first_name, last_name, patient_number
               FROM patients WHERE group_id = $1 AND is_active = TRUE
               ORDER BY last_name, first_name, id`

	rows, err := r.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("error listing active patients: %w", err)
	}
	defer rows.Close()

	patients := make([]group.Patient, 0)
	index := make(map[string]int)
	ids := make([]string, 0)
	for rows.Next() {
		var p group.Patient
		if err := rows.Scan(&p.ID, &p.GroupID, &p.FirstName, &p.LastName, &p.PatientNumber); err != nil {
			return nil, fmt.Errorf("error scanning active patient: %w", err)
		}
		index[p.ID] = len(patients)
		ids = append(ids, p.ID)
		patients = append(patients, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating active patients: %w", err)
	}
	if len(patients) == 0 {
		return patients, nil
	}

	if err := r.loadDiagnoses(ctx, ids, patients, index); err != nil {
		return nil, err
	}
	if err := r.loadGoals(ctx, ids, patients, index); err != nil {
		return nil, err
	}
	return patients, nil
}

func (r *PostgresGroupRepository) loadDiagnoses(ctx context.Context, ids []string, patients []group.Patient, index map[string]int) error {
	query := `SELECT patient_id, icd10_code, description, is_primary
               FROM patient_diagnoses WHERE patient_id::text = ANY($1)
               ORDER BY patient_id, is_primary DESC, created_at, id`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("error listing patient diagnoses: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var patientID string
		var d group.Diagnosis
		if err := rows.Scan(&patientID, &d.Code, &d.Description, &d.IsPrimary); err != nil {
			return fmt.Errorf("error scanning patient diagnosis: %w", err)
		}
		if i, ok := index[patientID]; ok {
			patients[i].Diagnoses = append(patients[i].Diagnoses, d)
		}
	}
	if err = rows.Err(); err != nil {
		return fmt.Errorf("error iterating patient diagnoses: %w", err)
	}
	return nil
}

func (r *PostgresGroupRepository) loadGoals(ctx context.Context, ids []string, patients []group.Patient, index map[string]int) error {
	query := `SELECT patient_id, goal_number, description
               FROM patient_goals WHERE patient_id::text = ANY($1)
               ORDER BY patient_id, goal_number`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("error listing patient goals: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var patientID string
		var g group.Goal
		if err := rows.Scan(&patientID, &g.Number, &g.Description); err != nil {
			return fmt.Errorf("error scanning patient goal: %w", err)
		}
		if i, ok := index[patientID]; ok {
			patients[i].Goals = append(patients[i].Goals, g)
		}
	}
	if err = rows.Err(); err != nil {
		return fmt.Errorf("error iterating patient goals: %w", err)
	}
	return nil
}
