package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/able-marketplace/internal/persistence"
)

type gigRepository struct {
	store *Store
}

const gigColumns = `id, buyer_id, worker_id, title, start_time, end_time, status, amount_pence, payment_ref, created_at, updated_at`

func (r *gigRepository) CreateGig(ctx context.Context, gig persistence.Gig) error {
	if gig.ID == "" {
		return persistence.ErrConstraintViolation
	}

	_, err := r.store.db.ExecContext(ctx, `
		INSERT INTO gigs (`+gigColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		gig.ID,
		gig.BuyerID,
		gig.WorkerID,
		gig.Title,
		gig.Start.UTC().Format(time.RFC3339),
		gig.End.UTC().Format(time.RFC3339),
		gig.Status,
		gig.AmountPence,
		nullString(gig.PaymentRef),
		gig.CreatedAt.UTC().Format(time.RFC3339),
		gig.UpdatedAt.UTC().Format(time.RFC3339),
	)
	return mapError(err)
}

func (r *gigRepository) UpdateGig(ctx context.Context, gig persistence.Gig) error {
	result, err := r.store.db.ExecContext(ctx, `
		UPDATE gigs
		SET title = ?, start_time = ?, end_time = ?, status = ?, amount_pence = ?, payment_ref = ?, updated_at = ?
		WHERE id = ?`,
		gig.Title,
		gig.Start.UTC().Format(time.RFC3339),
		gig.End.UTC().Format(time.RFC3339),
		gig.Status,
		gig.AmountPence,
		nullString(gig.PaymentRef),
		gig.UpdatedAt.UTC().Format(time.RFC3339),
		gig.ID,
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

func (r *gigRepository) GetGig(ctx context.Context, id string) (persistence.Gig, error) {
	row := r.store.db.QueryRowContext(ctx, `SELECT `+gigColumns+` FROM gigs WHERE id = ?`, id)
	return scanGig(row.Scan)
}

func (r *gigRepository) ListGigs(ctx context.Context, filter persistence.GigFilter) ([]persistence.Gig, error) {
	query := `SELECT ` + gigColumns + ` FROM gigs`
	var (
		clauses []string
		args    []any
	)
	if filter.WorkerID != "" {
		clauses = append(clauses, "worker_id = ?")
		args = append(args, filter.WorkerID)
	}
	if filter.BuyerID != "" {
		clauses = append(clauses, "buyer_id = ?")
		args = append(args, filter.BuyerID)
	}
	if len(filter.Statuses) > 0 {
		placeholders := strings.Repeat("?,", len(filter.Statuses))
		clauses = append(clauses, "status IN ("+placeholders[:len(placeholders)-1]+")")
		for _, status := range filter.Statuses {
			args = append(args, status)
		}
	}
	if filter.StartsAfter != nil {
		clauses = append(clauses, "end_time > ?")
		args = append(args, filter.StartsAfter.UTC().Format(time.RFC3339))
	}
	if filter.EndsBefore != nil {
		clauses = append(clauses, "start_time < ?")
		args = append(args, filter.EndsBefore.UTC().Format(time.RFC3339))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY start_time, id"

	rows, err := r.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var gigs []persistence.Gig
	for rows.Next() {
		gig, err := scanGig(rows.Scan)
		if err != nil {
			return nil, err
		}
		gigs = append(gigs, gig)
	}
	return gigs, mapError(rows.Err())
}

func scanGig(scan func(dest ...any) error) (persistence.Gig, error) {
	var (
		gig        persistence.Gig
		start      string
		end        string
		paymentRef sql.NullString
		createdAt  string
		updatedAt  string
	)
	if err := scan(
		&gig.ID,
		&gig.BuyerID,
		&gig.WorkerID,
		&gig.Title,
		&start,
		&end,
		&gig.Status,
		&gig.AmountPence,
		&paymentRef,
		&createdAt,
		&updatedAt,
	); err != nil {
		return persistence.Gig{}, mapError(err)
	}
	gig.PaymentRef = stringPtr(paymentRef)

	var err error
	if gig.Start, err = parseTimestamp(start); err != nil {
		return persistence.Gig{}, err
	}
	if gig.End, err = parseTimestamp(end); err != nil {
		return persistence.Gig{}, err
	}
	if gig.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return persistence.Gig{}, err
	}
	if gig.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return persistence.Gig{}, err
	}
	return gig, nil
}
