package sqlite

import (
	"context"
	"strings"

	"github.com/coursearc/authcore/internal/auth/domain"
	"github.com/coursearc/authcore/internal/auth/store"
)

type totpDevicesRepo struct {
	q dbtx
}

func (r *totpDevicesRepo) ListTotpDevicesByUser(
	ctx context.Context,
	userID string,
) ([]domain.TotpDevice, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, user_id, enabled, created_at
		FROM totp_devices WHERE user_id = ? ORDER BY created_at ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var devices []domain.TotpDevice
	for rows.Next() {
		var d domain.TotpDevice
		if err := rows.Scan(&d.ID, &d.UserID, &d.Enabled, &d.CreatedAt); err != nil {
			return nil, err
		}
		devices = append(devices, d)
	}
	return devices, rows.Err()
}

func (r *totpDevicesRepo) CreateTotpDevice(
	ctx context.Context,
	d domain.TotpDevice,
	secret string,
) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO totp_devices (id, user_id, secret, enabled, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		d.ID, d.UserID, secret, d.Enabled, d.CreatedAt,
	)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return store.ErrAlreadyExists
	}
	return err
}

func (r *totpDevicesRepo) GetTotpDeviceSecret(
	ctx context.Context,
	deviceID string,
) (string, error) {
	var secret string
	err := r.q.QueryRowContext(ctx,
		`SELECT secret FROM totp_devices WHERE id = ?`, deviceID).Scan(&secret)
	if err != nil {
		return "", mapNotFound(err)
	}
	return secret, nil
}

func (r *totpDevicesRepo) ResetTotpDeviceSecret(
	ctx context.Context,
	deviceID, secret string,
) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE totp_devices SET secret = ? WHERE id = ? AND enabled = 0`, secret, deviceID)
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

func (r *totpDevicesRepo) EnableTotpDevice(ctx context.Context, deviceID string) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE totp_devices SET enabled = 1 WHERE id = ?`, deviceID)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return store.ErrAlreadyExists
		}
		return err
	}
	return requireOneRow(res)
}

func (r *totpDevicesRepo) DeleteTotpDevicesByUser(ctx context.Context, userID string) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM totp_devices WHERE user_id = ?`, userID)
	return err
}
