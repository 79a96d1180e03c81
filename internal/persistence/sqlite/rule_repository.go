package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/able-marketplace/internal/persistence"
)

type ruleRepository struct {
	store *Store
}

const ruleColumns = `id, worker_id, start_time, end_time, days, frequency, ends, end_date, occurrences, notes, created_at, updated_at`

func (r *ruleRepository) CreateRule(ctx context.Context, rule persistence.AvailabilityRule) error {
	if rule.ID == "" {
		return persistence.ErrConstraintViolation
	}

	_, err := r.store.db.ExecContext(ctx, `
		INSERT INTO availability_rules (`+ruleColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.ID,
		rule.WorkerID,
		rule.StartTime,
		rule.EndTime,
		joinDays(rule.Days),
		rule.Frequency,
		rule.Ends,
		nullIfEmpty(rule.EndDate),
		nullIfZero(rule.Occurrences),
		nullIfEmpty(rule.Notes),
		rule.CreatedAt.UTC().Format(time.RFC3339),
		rule.UpdatedAt.UTC().Format(time.RFC3339),
	)
	return mapError(err)
}

func (r *ruleRepository) UpdateRule(ctx context.Context, rule persistence.AvailabilityRule) error {
	if rule.ID == "" {
		return persistence.ErrConstraintViolation
	}

	result, err := r.store.db.ExecContext(ctx, `
		UPDATE availability_rules
		SET start_time = ?, end_time = ?, days = ?, frequency = ?, ends = ?,
		    end_date = ?, occurrences = ?, notes = ?, updated_at = ?
		WHERE id = ?`,
		rule.StartTime,
		rule.EndTime,
		joinDays(rule.Days),
		rule.Frequency,
		rule.Ends,
		nullIfEmpty(rule.EndDate),
		nullIfZero(rule.Occurrences),
		nullIfEmpty(rule.Notes),
		rule.UpdatedAt.UTC().Format(time.RFC3339),
		rule.ID,
	)
	if err != nil {
		return mapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func (r *ruleRepository) GetRule(ctx context.Context, id string) (persistence.AvailabilityRule, error) {
	row := r.store.db.QueryRowContext(ctx,
		`SELECT `+ruleColumns+` FROM availability_rules WHERE id = ?`, id)
	rule, err := scanRule(row.Scan)
	if err != nil {
		return persistence.AvailabilityRule{}, mapError(err)
	}
	return rule, nil
}

func (r *ruleRepository) ListRulesForWorker(ctx context.Context, workerID string) ([]persistence.AvailabilityRule, error) {
	rows, err := r.store.db.QueryContext(ctx,
		`SELECT `+ruleColumns+` FROM availability_rules WHERE worker_id = ? ORDER BY created_at, id`, workerID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var rules []persistence.AvailabilityRule
	for rows.Next() {
		rule, err := scanRule(rows.Scan)
		if err != nil {
			return nil, mapError(err)
		}
		rules = append(rules, rule)
	}
	return rules, mapError(rows.Err())
}

func (r *ruleRepository) DeleteRule(ctx context.Context, id string) error {
	result, err := r.store.db.ExecContext(ctx, `DELETE FROM availability_rules WHERE id = ?`, id)
	if err != nil {
		return mapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func (r *ruleRepository) DeleteRulesForWorker(ctx context.Context, workerID string) error {
	_, err := r.store.db.ExecContext(ctx, `DELETE FROM availability_rules WHERE worker_id = ?`, workerID)
	return mapError(err)
}

func scanRule(scan func(dest ...any) error) (persistence.AvailabilityRule, error) {
	var (
		rule        persistence.AvailabilityRule
		days        string
		endDate     sql.NullString
		occurrences sql.NullInt64
		notes       sql.NullString
		createdAt   string
		updatedAt   string
	)
	if err := scan(
		&rule.ID,
		&rule.WorkerID,
		&rule.StartTime,
		&rule.EndTime,
		&days,
		&rule.Frequency,
		&rule.Ends,
		&endDate,
		&occurrences,
		&notes,
		&createdAt,
		&updatedAt,
	); err != nil {
		return persistence.AvailabilityRule{}, err
	}

	rule.Days = splitDays(days)
	if endDate.Valid {
		rule.EndDate = endDate.String
	}
	if occurrences.Valid {
		rule.Occurrences = int(occurrences.Int64)
	}
	if notes.Valid {
		rule.Notes = notes.String
	}

	var err error
	if rule.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return persistence.AvailabilityRule{}, err
	}
	if rule.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return persistence.AvailabilityRule{}, err
	}
	return rule, nil
}

func parseTimestamp(value string) (time.Time, error) {
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite: malformed timestamp %q: %w", value, err)
	}
	return ts, nil
}

// nullIfEmpty and nullIfZero keep optional columns NULL rather than storing
// zero values the engine would misread as real data.
func nullIfEmpty(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}

func nullIfZero(value int) sql.NullInt64 {
	if value == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(value), Valid: true}
}
