package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"therapy_notes_generator/internal/domain/attendance"
)

type PostgresAttendanceRepository struct {
	db *sql.DB
}

func NewPostgresAttendanceRepository(db *sql.DB) *PostgresAttendanceRepository {
	return &PostgresAttendanceRepository{db: db}
}

var _ attendance.Repository = (*PostgresAttendanceRepository)(nil)

func (r *PostgresAttendanceRepository) ListByGroupAndRange(ctx context.Context, groupID string, from, to time.Time) ([]attendance.Record, error) {
	query := `SELECT a.id, a.patient_id, a.attendance_date, a.status, a.units_attended, a.updated_at,
               COALESCE(ar.reason_type, ''), COALESCE(ar.description, '')
               FROM attendance a
               JOIN patients p ON p.id = a.patient_id
               LEFT JOIN absence_reasons ar ON ar.attendance_id = a.id
               WHERE p.group_id = $1 AND a.attendance_date BETWEEN $2 AND $3
               ORDER BY a.patient_id, a.attendance_date, a.updated_at, a.id, ar.id`

	rows, err := r.db.QueryContext(ctx, query, groupID, dateOnly(from), dateOnly(to))
	if err != nil {
		return nil, fmt.Errorf("error listing attendance: %w", err)
	}
	defer rows.Close()

	records := make([]attendance.Record, 0)
	index := make(map[string]int)
	for rows.Next() {
		var rec attendance.Record
		var reasonType, reasonDesc string
		if err := rows.Scan(&rec.ID, &rec.PatientID, &rec.Date, &rec.Status, &rec.UnitsAttended, &rec.UpdatedAt, &reasonType, &reasonDesc); err != nil {
			return nil, fmt.Errorf("error scanning attendance: %w", err)
		}
		i, seen := index[rec.ID]
		if !seen {
			i = len(records)
			index[rec.ID] = i
			records = append(records, rec)
		}
		if reasonType != "" {
			records[i].Reasons = append(records[i].Reasons, attendance.Reason{Type: attendance.ReasonType(reasonType), Description: reasonDesc})
		}
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attendance: %w", err)
	}
	return records, nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
