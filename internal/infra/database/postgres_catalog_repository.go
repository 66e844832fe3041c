package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"therapy_notes_generator/internal/domain/catalog"
)

type PostgresCatalogRepository struct {
	db *sql.DB
}

func NewPostgresCatalogRepository(db *sql.DB) *PostgresCatalogRepository {
	return &PostgresCatalogRepository{db: db}
}

var _ catalog.Repository = (*PostgresCatalogRepository)(nil)

// unitColumns selects a content unit joined with its subactivity; ORDER BY canonicalOrder
// matches catalog.Compare under byte collation.
const unitColumns = `SELECT cu.id, cu.text, cu.sort_order, cu.activity_id,
               COALESCE(cu.subactivity_id::text, ''), COALESCE(s.name, ''), cu.is_active, cu.usage_count
               FROM content_units cu
               LEFT JOIN subactivities s ON s.id = cu.subactivity_id`

const canonicalOrder = ` ORDER BY COALESCE(s.name, '') COLLATE "C", COALESCE(cu.subactivity_id::text, '') COLLATE "C",
               cu.sort_order ASC NULLS LAST, cu.id::text COLLATE "C"`

func (r *PostgresCatalogRepository) ListActiveUnits(ctx context.Context, activityID, subactivityID string) ([]catalog.ContentUnit, error) {
	if subactivityID == "" {
		query := unitColumns + `
               WHERE cu.activity_id = $1 AND cu.subactivity_id IS NULL AND cu.is_active = TRUE` + canonicalOrder
		return r.queryUnits(ctx, "activity units", query, activityID)
	}
	query := unitColumns + `
               WHERE cu.activity_id = $1 AND cu.subactivity_id = $2 AND cu.is_active = TRUE AND s.is_active = TRUE` + canonicalOrder
	return r.queryUnits(ctx, "subactivity units", query, activityID, subactivityID)
}

func (r *PostgresCatalogRepository) ListActiveSubactivityUnits(ctx context.Context, activityID string) ([]catalog.ContentUnit, error) {
	query := unitColumns + `
               WHERE cu.activity_id = $1 AND cu.subactivity_id IS NOT NULL AND cu.is_active = TRUE AND s.is_active = TRUE` + canonicalOrder
	return r.queryUnits(ctx, "subactivity units of activity", query, activityID)
}

func (r *PostgresCatalogRepository) queryUnits(ctx context.Context, what, query string, args ...any) ([]catalog.ContentUnit, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing %s: %w", what, err)
	}
	defer rows.Close()

	units := make([]catalog.ContentUnit, 0)
	for rows.Next() {
		var u catalog.ContentUnit
		var order sql.NullInt64
		if err := rows.Scan(&u.ID, &u.Text, &order, &u.ActivityID, &u.SubactivityID, &u.SubactivityName, &u.IsActive, &u.UsageCount); err != nil {
			return nil, fmt.Errorf("error scanning %s: %w", what, err)
		}
		if order.Valid {
			v := int(order.Int64)
			u.Order = &v
		}
		units = append(units, u)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", what, err)
	}
	return units, nil
}

func (r *PostgresCatalogRepository) LatestUsage(ctx context.Context, scopeKey string) (*catalog.UsageRecord, error) {
	query := `SELECT id, scope_key, group_id, activity_id, COALESCE(subactivity_id::text, ''), unit_id,
               COALESCE(patient_id::text, ''), COALESCE(week_id::text, ''), used_date, created_at
               FROM usage_records WHERE scope_key = $1
               ORDER BY used_date DESC, created_at DESC LIMIT 1`
	u := &catalog.UsageRecord{}
	err := r.db.QueryRowContext(ctx, query, scopeKey).Scan(&u.ID, &u.ScopeKey, &u.GroupID, &u.ActivityID, &u.SubactivityID, &u.UnitID,
		&u.PatientID, &u.WeekID, &u.UsedDate, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, catalog.ErrUsageNotFound
		}
		return nil, fmt.Errorf("error getting latest usage: %w", err)
	}
	return u, nil
}

func (r *PostgresCatalogRepository) GeneratedTextExists(ctx context.Context, hash string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM generated_texts WHERE hash = $1)`, hash).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("error checking generated text hash: %w", err)
	}
	return exists, nil
}

// SaveUsage writes nothing when the text hash is already stored, so two jobs racing on the same
// text produce a single usage record.
func (r *PostgresCatalogRepository) SaveUsage(ctx context.Context, usage *catalog.UsageRecord, text *catalog.GeneratedTextRecord) error {
	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for usage record: %w", err)
	}
	defer txn.Rollback() // Rollback if not committed

	res, err := txn.ExecContext(ctx, `INSERT INTO generated_texts (id, hash, text, patient_id, unit_id, used_date, created_at)
               VALUES ($1, $2, $3, $4, $5, $6, $7)
               ON CONFLICT (hash) DO NOTHING`,
		text.ID, text.Hash, text.Text, nullString(text.PatientID), nullString(text.UnitID), text.UsedDate, text.CreatedAt)
	if err != nil {
		return fmt.Errorf("error inserting generated text: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil
	}

	_, err = txn.ExecContext(ctx, `INSERT INTO usage_records (id, scope_key, group_id, activity_id, subactivity_id, unit_id, patient_id, week_id, used_date, created_at)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		usage.ID, usage.ScopeKey, usage.GroupID, usage.ActivityID, nullString(usage.SubactivityID), usage.UnitID,
		nullString(usage.PatientID), nullString(usage.WeekID), usage.UsedDate, usage.CreatedAt)
	if err != nil {
		return fmt.Errorf("error inserting usage record: %w", err)
	}

	if _, err = txn.ExecContext(ctx, `UPDATE content_units SET usage_count = usage_count + 1 WHERE id = $1`, usage.UnitID); err != nil {
		return fmt.Errorf("error incrementing unit usage: %w", err)
	}

	return txn.Commit()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
