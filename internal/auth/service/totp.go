package service

import (
	"context"
	"fmt"

	"github.com/coursearc/authcore/internal/auth/domain"
	"github.com/coursearc/authcore/internal/auth/store"
	"github.com/coursearc/authcore/pkg/idx"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// TOTP parameters follow the common authenticator-app defaults. Skew 1
// accepts codes from the adjacent time steps to tolerate clock drift.
const (
	totpPeriod = 30
	totpSkew   = 1
)

// TotpService manages the per-device secret lifecycle. All methods operate
// inside the caller's transaction; the MFA orchestrator owns commit/rollback.
type TotpService struct {
	Clock        Clock
	Issuer       string
	SecretLength int // secret length in bytes
}

func (s *TotpService) generateSecret(accountName string) (string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.Issuer,
		AccountName: accountName,
		Period:      totpPeriod,
		SecretSize:  uint(s.SecretLength), // #nosec G115 - configured small positive value
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate totp secret: %w", err)
	}
	return key.Secret(), nil
}

// Create provisions a fresh pending device for the user. The returned setup
// is the only time the secret leaves the store.
func (s *TotpService) Create(
	ctx context.Context,
	tx store.Tx,
	userID string,
) (domain.TotpSetup, error) {
	secret, err := s.generateSecret(userID)
	if err != nil {
		return domain.TotpSetup{}, err
	}

	device := domain.TotpDevice{
		ID:        idx.New().String(),
		UserID:    userID,
		Enabled:   false,
		CreatedAt: s.Clock.Now(),
	}
	if err := tx.TotpDevices().CreateTotpDevice(ctx, device, secret); err != nil {
		return domain.TotpSetup{}, fmt.Errorf("failed to create totp device: %w", err)
	}

	return domain.TotpSetup{Secret: secret}, nil
}

// Reset replaces the secret of an existing pending device in place, keeping
// its id. Repeated setup attempts therefore never grow the device table.
func (s *TotpService) Reset(
	ctx context.Context,
	tx store.Tx,
	device domain.TotpDevice,
) (domain.TotpSetup, error) {
	secret, err := s.generateSecret(device.UserID)
	if err != nil {
		return domain.TotpSetup{}, err
	}

	if err := tx.TotpDevices().ResetTotpDeviceSecret(ctx, device.ID, secret); err != nil {
		return domain.TotpSetup{}, fmt.Errorf("failed to reset totp device: %w", err)
	}

	return domain.TotpSetup{Secret: secret}, nil
}

// Confirm validates the code against the pending device's secret and enables
// the device. A wrong code leaves the device pending.
func (s *TotpService) Confirm(
	ctx context.Context,
	tx store.Tx,
	device domain.TotpDevice,
	code string,
) error {
	if err := s.verifyCode(ctx, tx, device, code); err != nil {
		return err
	}

	if err := tx.TotpDevices().EnableTotpDevice(ctx, device.ID); err != nil {
		return fmt.Errorf("failed to enable totp device: %w", err)
	}
	return nil
}

// Verify checks a login-time code against an enabled device.
func (s *TotpService) Verify(
	ctx context.Context,
	tx store.Tx,
	device domain.TotpDevice,
	code string,
) error {
	return s.verifyCode(ctx, tx, device, code)
}

func (s *TotpService) verifyCode(
	ctx context.Context,
	tx store.Tx,
	device domain.TotpDevice,
	code string,
) error {
	secret, err := tx.TotpDevices().GetTotpDeviceSecret(ctx, device.ID)
	if err != nil {
		return fmt.Errorf("failed to get totp secret: %w", err)
	}

	valid, err := totp.ValidateCustom(code, secret, s.Clock.Now().UTC(), totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      totpSkew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil || !valid {
		return ErrInvalidCode
	}
	return nil
}
