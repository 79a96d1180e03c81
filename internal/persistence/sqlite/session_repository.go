package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/example/able-marketplace/internal/persistence"
)

type sessionRepository struct {
	store *Store
}

const sessionColumns = `id, user_id, token, expires_at, created_at, updated_at, revoked_at`

func (r *sessionRepository) CreateSession(ctx context.Context, session persistence.Session) (persistence.Session, error) {
	if session.ID == "" || session.Token == "" {
		return persistence.Session{}, persistence.ErrConstraintViolation
	}

	_, err := r.store.db.ExecContext(ctx, `
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		session.ID,
		session.UserID,
		session.Token,
		session.ExpiresAt.UTC().Format(time.RFC3339),
		session.CreatedAt.UTC().Format(time.RFC3339),
		session.UpdatedAt.UTC().Format(time.RFC3339),
		nullTime(session.RevokedAt),
	)
	if err != nil {
		return persistence.Session{}, mapError(err)
	}
	return session, nil
}

func (r *sessionRepository) GetSession(ctx context.Context, token string) (persistence.Session, error) {
	row := r.store.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE token = ?`, token)
	return scanSession(row.Scan)
}

func (r *sessionRepository) RevokeSession(ctx context.Context, token string, revokedAt time.Time) (persistence.Session, error) {
	result, err := r.store.db.ExecContext(ctx, `
		UPDATE sessions SET revoked_at = ?, updated_at = ? WHERE token = ? AND revoked_at IS NULL`,
		revokedAt.UTC().Format(time.RFC3339),
		revokedAt.UTC().Format(time.RFC3339),
		token,
	)
	if err != nil {
		return persistence.Session{}, mapError(err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return persistence.Session{}, persistence.ErrNotFound
	}
	return r.GetSession(ctx, token)
}

func (r *sessionRepository) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	_, err := r.store.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < ?`,
		reference.UTC().Format(time.RFC3339))
	return mapError(err)
}

func scanSession(scan func(dest ...any) error) (persistence.Session, error) {
	var (
		session   persistence.Session
		expiresAt string
		createdAt string
		updatedAt string
		revokedAt sql.NullString
	)
	if err := scan(
		&session.ID,
		&session.UserID,
		&session.Token,
		&expiresAt,
		&createdAt,
		&updatedAt,
		&revokedAt,
	); err != nil {
		return persistence.Session{}, mapError(err)
	}

	var err error
	if session.ExpiresAt, err = parseTimestamp(expiresAt); err != nil {
		return persistence.Session{}, err
	}
	if session.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return persistence.Session{}, err
	}
	if session.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return persistence.Session{}, err
	}
	if revokedAt.Valid {
		ts, err := parseTimestamp(revokedAt.String)
		if err != nil {
			return persistence.Session{}, err
		}
		session.RevokedAt = &ts
	}
	return session, nil
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}
