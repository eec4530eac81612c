package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/coursearc/authcore/internal/auth/domain"
	"github.com/coursearc/authcore/internal/auth/store"
)

type usersRepo struct {
	q dbtx
}

const userColumns = `id, username, password_hash, is_admin, enabled, created_at, updated_at`

func scanUser(row *sql.Row) (domain.User, error) {
	var u domain.User
	var hash sql.NullString
	err := row.Scan(&u.ID, &u.Username, &hash, &u.Admin, &u.Enabled, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	if hash.Valid {
		u.PasswordHash = hash.String
	}
	return u, nil
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (r *usersRepo) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	return scanUser(row)
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	var hash sql.NullString
	if u.PasswordHash != "" {
		hash = sql.NullString{String: u.PasswordHash, Valid: true}
	}

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO users (id, username, password_hash, is_admin, enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, hash, u.Admin, u.Enabled, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return store.ErrAlreadyExists
	}
	return err
}

func (r *usersRepo) Exists(ctx context.Context, id string) (bool, error) {
	var one int
	err := r.q.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *usersRepo) GetPasswordHash(ctx context.Context, userID string) (string, error) {
	var hash sql.NullString
	err := r.q.QueryRowContext(ctx, `SELECT password_hash FROM users WHERE id = ?`, userID).Scan(&hash)
	if err != nil {
		return "", mapNotFound(err)
	}
	if !hash.Valid {
		return "", nil
	}
	return hash.String, nil
}

func (r *usersRepo) UpdatePasswordHash(
	ctx context.Context,
	userID, newHash string,
	now time.Time,
) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		newHash, now, userID,
	)
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

func (r *usersRepo) SetEnabled(
	ctx context.Context,
	userID string,
	enabled bool,
	now time.Time,
) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE users SET enabled = ?, updated_at = ? WHERE id = ?`,
		enabled, now, userID,
	)
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

func (r *usersRepo) DeleteUser(ctx context.Context, userID string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, userID)
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

// requireOneRow maps "zero rows touched" onto ErrNotFound so callers can
// distinguish a missing row from a successful mutation.
func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
