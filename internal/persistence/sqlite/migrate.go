package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// migration is one ordered schema change. Versions are strictly increasing
// and applied exactly once, tracked in schema_migrations.
type migration struct {
	version    int
	statements []string
}

var migrations = []migration{
	{
		version: 1,
		statements: []string{
			`CREATE TABLE IF NOT EXISTS users (
				id TEXT PRIMARY KEY,
				email TEXT NOT NULL UNIQUE,
				display_name TEXT NOT NULL,
				role TEXT NOT NULL CHECK (role IN ('worker', 'buyer')),
				is_admin INTEGER NOT NULL DEFAULT 0,
				password_hash TEXT NOT NULL,
				disabled INTEGER NOT NULL DEFAULT 0,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS availability_rules (
				id TEXT PRIMARY KEY,
				worker_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				start_time TEXT NOT NULL,
				end_time TEXT NOT NULL,
				days TEXT NOT NULL DEFAULT '',
				frequency TEXT NOT NULL CHECK (frequency IN ('never', 'weekly', 'biweekly', 'monthly')),
				ends TEXT NOT NULL DEFAULT 'never' CHECK (ends IN ('never', 'on_date', 'after_occurrences')),
				end_date TEXT,
				occurrences INTEGER,
				notes TEXT,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL,
				CHECK (start_time < end_time)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_availability_rules_worker ON availability_rules(worker_id)`,
		},
	},
	{
		version: 2,
		statements: []string{
			`CREATE TABLE IF NOT EXISTS gigs (
				id TEXT PRIMARY KEY,
				buyer_id TEXT NOT NULL REFERENCES users(id),
				worker_id TEXT NOT NULL REFERENCES users(id),
				title TEXT NOT NULL,
				start_time TEXT NOT NULL,
				end_time TEXT NOT NULL,
				status TEXT NOT NULL CHECK (status IN ('offered', 'accepted', 'completed', 'cancelled')),
				amount_pence INTEGER NOT NULL CHECK (amount_pence >= 0),
				payment_ref TEXT,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL,
				CHECK (start_time < end_time)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_gigs_worker ON gigs(worker_id)`,
			`CREATE INDEX IF NOT EXISTS idx_gigs_buyer ON gigs(buyer_id)`,
		},
	},
	{
		version: 3,
		statements: []string{
			`CREATE TABLE IF NOT EXISTS sessions (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				token TEXT NOT NULL UNIQUE,
				expires_at TEXT NOT NULL,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL,
				revoked_at TEXT
			)`,
			`CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id)`,
		},
	},
}

// Migrate applies any pending migrations in order, each inside its own
// transaction.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("sqlite: create schema_migrations: %w", err)
	}

	var current sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("sqlite: read schema version: %w", err)
	}

	for _, m := range migrations {
		if current.Valid && int64(m.version) <= current.Int64 {
			continue
		}
		err := s.withTx(ctx, func(tx *sql.Tx) error {
			for _, stmt := range m.statements {
				if _, err := tx.Exec(stmt); err != nil {
					return fmt.Errorf("sqlite: migration %d: %w", m.version, err)
				}
			}
			_, err := tx.Exec(`INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`,
				m.version, time.Now().UTC().Format(time.RFC3339))
			return err
		})
		if err != nil {
			return err
		}
	}
	return nil
}
