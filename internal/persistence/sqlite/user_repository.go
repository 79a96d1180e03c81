package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/example/able-marketplace/internal/persistence"
)

type userRepository struct {
	store *Store
}

const userColumns = `id, email, display_name, role, is_admin, password_hash, disabled, created_at, updated_at`

func (r *userRepository) CreateUser(ctx context.Context, user persistence.User) error {
	if user.ID == "" {
		return persistence.ErrConstraintViolation
	}

	_, err := r.store.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Email,
		user.DisplayName,
		user.Role,
		boolToInt(user.IsAdmin),
		user.PasswordHash,
		boolToInt(user.Disabled),
		user.CreatedAt.UTC().Format(time.RFC3339),
		user.UpdatedAt.UTC().Format(time.RFC3339),
	)
	return mapError(err)
}

func (r *userRepository) UpdateUser(ctx context.Context, user persistence.User) error {
	result, err := r.store.db.ExecContext(ctx, `
		UPDATE users
		SET email = ?, display_name = ?, role = ?, is_admin = ?, password_hash = ?, disabled = ?, updated_at = ?
		WHERE id = ?`,
		user.Email,
		user.DisplayName,
		user.Role,
		boolToInt(user.IsAdmin),
		user.PasswordHash,
		boolToInt(user.Disabled),
		user.UpdatedAt.UTC().Format(time.RFC3339),
		user.ID,
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

func (r *userRepository) GetUser(ctx context.Context, id string) (persistence.User, error) {
	row := r.store.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row.Scan)
}

func (r *userRepository) GetUserByEmail(ctx context.Context, email string) (persistence.User, error) {
	row := r.store.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	return scanUser(row.Scan)
}

func (r *userRepository) ListUsers(ctx context.Context) ([]persistence.User, error) {
	rows, err := r.store.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY display_name, id`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var users []persistence.User
	for rows.Next() {
		user, err := scanUser(rows.Scan)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, mapError(rows.Err())
}

func (r *userRepository) DeleteUser(ctx context.Context, id string) error {
	result, err := r.store.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
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

func scanUser(scan func(dest ...any) error) (persistence.User, error) {
	var (
		user      persistence.User
		isAdmin   int
		disabled  int
		createdAt string
		updatedAt string
	)
	if err := scan(
		&user.ID,
		&user.Email,
		&user.DisplayName,
		&user.Role,
		&isAdmin,
		&user.PasswordHash,
		&disabled,
		&createdAt,
		&updatedAt,
	); err != nil {
		return persistence.User{}, mapError(err)
	}
	user.IsAdmin = isAdmin != 0
	user.Disabled = disabled != 0

	var err error
	if user.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return persistence.User{}, err
	}
	if user.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return persistence.User{}, err
	}
	return user, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
