package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/coursearc/authcore/internal/auth/domain"
	"github.com/coursearc/authcore/internal/auth/store"
)

type sessionsRepo struct {
	q dbtx
}

const sessionColumns = `id, user_id, device_name, created_at, updated_at`

func scanSession(scan func(dest ...any) error) (domain.Session, error) {
	var s domain.Session
	var device sql.NullString
	if err := scan(&s.ID, &s.UserID, &device, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return domain.Session{}, mapNotFound(err)
	}
	s.DeviceName = mapNullString(device)
	return s, nil
}

func (r *sessionsRepo) GetSession(ctx context.Context, id string) (domain.Session, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	return scanSession(row.Scan)
}

func (r *sessionsRepo) GetSessionByRefreshTokenHash(
	ctx context.Context,
	hash string,
) (domain.Session, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE refresh_token_hash = ?`, hash)
	return scanSession(row.Scan)
}

func (r *sessionsRepo) GetRefreshTokenHashBySession(
	ctx context.Context,
	sessionID string,
) (string, error) {
	var hash string
	err := r.q.QueryRowContext(ctx,
		`SELECT refresh_token_hash FROM sessions WHERE id = ?`, sessionID).Scan(&hash)
	if err != nil {
		return "", mapNotFound(err)
	}
	return hash, nil
}

func (r *sessionsRepo) ListSessionsByUser(
	ctx context.Context,
	userID string,
) ([]domain.Session, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var sessions []domain.Session
	for rows.Next() {
		s, err := scanSession(rows.Scan)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (r *sessionsRepo) ListRefreshTokenHashesByUser(
	ctx context.Context,
	userID string,
) ([]string, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT refresh_token_hash FROM sessions WHERE user_id = ?`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var hashes []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, err
		}
		hashes = append(hashes, h)
	}
	return hashes, rows.Err()
}

func (r *sessionsRepo) CreateSession(
	ctx context.Context,
	s domain.Session,
	refreshTokenHash string,
) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, device_name, refresh_token_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		s.ID, s.UserID, mapOptionalString(s.DeviceName), refreshTokenHash, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return store.ErrAlreadyExists
	}
	return err
}

func (r *sessionsRepo) RotateRefreshTokenHash(
	ctx context.Context,
	sessionID, newHash string,
	now time.Time,
) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE sessions SET refresh_token_hash = ?, updated_at = ? WHERE id = ?`,
		newHash, now, sessionID,
	)
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

func (r *sessionsRepo) DeleteSession(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

func (r *sessionsRepo) DeleteSessionsByUser(ctx context.Context, userID string) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID)
	return err
}

func (r *sessionsRepo) DeleteExpiredSessions(
	ctx context.Context,
	cutoff time.Time,
) (int64, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM sessions WHERE updated_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
