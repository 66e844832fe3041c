package database

import (
	"context"
	"database/sql"
	"fmt"

	"therapy_notes_generator/internal/domain/calendar"
	"therapy_notes_generator/internal/domain/schedule"
)

type PostgresScheduleRepository struct {
	db *sql.DB
}

func NewPostgresScheduleRepository(db *sql.DB) *PostgresScheduleRepository {
	return &PostgresScheduleRepository{db: db}
}

var _ schedule.Repository = (*PostgresScheduleRepository)(nil)

func (r *PostgresScheduleRepository) ListSlotsByGroup(ctx context.Context, groupID string) ([]schedule.Slot, error) {
	query := `SELECT gs.id, gs.group_id, gs.day_of_week, gs.activity_id, a.name,
               COALESCE(gs.subactivity_id::text, ''), COALESCE(s.name, ''),
               to_char(gs.start_time, 'HH24:MI:SS'), to_char(gs.end_time, 'HH24:MI:SS'), gs.units, gs.is_nurse_session
               FROM group_schedules gs
               JOIN activities a ON a.id = gs.activity_id
               LEFT JOIN subactivities s ON s.id = gs.subactivity_id
               WHERE gs.group_id = $1
               ORDER BY gs.start_time, gs.id`

	rows, err := r.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("error listing group schedule: %w", err)
	}
	defer rows.Close()

	slots := make([]schedule.Slot, 0)
	for rows.Next() {
		var s schedule.Slot
		var day string
		if err := rows.Scan(&s.ID, &s.GroupID, &day, &s.ActivityID, &s.ActivityName, &s.SubactivityID, &s.SubactivityName,
			&s.StartTime, &s.EndTime, &s.Units, &s.IsNurseSession); err != nil {
			return nil, fmt.Errorf("error scanning schedule slot: %w", err)
		}
		if s.Weekday, err = calendar.ParseWeekday(day); err != nil {
			return nil, fmt.Errorf("schedule slot %s: %w", s.ID, err)
		}
		slots = append(slots, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating schedule slots: %w", err)
	}
	return slots, nil
}
