package sqlite

import (
	"context"
	"time"
)

type recoveryCodesRepo struct {
	q dbtx
}

func (r *recoveryCodesRepo) GetRecoveryCodeHash(
	ctx context.Context,
	userID string,
) (string, error) {
	var hash string
	err := r.q.QueryRowContext(ctx,
		`SELECT code_hash FROM recovery_codes WHERE user_id = ?`, userID).Scan(&hash)
	if err != nil {
		return "", mapNotFound(err)
	}
	return hash, nil
}

func (r *recoveryCodesRepo) SaveRecoveryCodeHash(
	ctx context.Context,
	userID, codeHash string,
	now time.Time,
) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO recovery_codes (user_id, code_hash, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET code_hash = excluded.code_hash,
			created_at = excluded.created_at`,
		userID, codeHash, now,
	)
	return err
}

func (r *recoveryCodesRepo) DeleteRecoveryCode(ctx context.Context, userID string) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM recovery_codes WHERE user_id = ?`, userID)
	return err
}
