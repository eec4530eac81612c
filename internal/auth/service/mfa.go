package service

import (
	"context"
	"fmt"

	"github.com/coursearc/authcore/internal/auth/domain"
	"github.com/coursearc/authcore/internal/auth/store"
)

// MFAService drives the TOTP device state machine
// (NoDevice -> PendingConfirmation -> Enabled -> Removed) and the recovery
// code tied to it. Each operation authenticates the caller's access token and
// enforces the self-or-admin predicate before touching state.
type MFAService struct {
	Store    store.Store
	Auth     *AuthService
	Totp     *TotpService
	Recovery *RecoveryService
}

// Initialize provisions a pending TOTP device for the target user and
// returns its base32 secret, the only time the secret is exposed. A pending
// device left over from an earlier attempt is reset in place (same id, new
// secret) rather than duplicated.
func (s *MFAService) Initialize(
	ctx context.Context,
	token, userID string,
) (domain.TotpSetup, error) {
	auth, err := s.Auth.Authenticate(ctx, token)
	if err != nil {
		return domain.TotpSetup{}, err
	}
	userID = resolveUserID(auth, userID)
	if err := ensureSelfOrAdmin(auth, userID); err != nil {
		return domain.TotpSetup{}, err
	}

	var setup domain.TotpSetup
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := requireUser(ctx, tx, userID); err != nil {
			return err
		}

		devices, err := tx.TotpDevices().ListTotpDevicesByUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to list totp devices: %w", err)
		}

		for _, d := range devices {
			if d.Enabled {
				return ErrMFAAlreadyEnabled
			}
		}

		if len(devices) > 0 {
			setup, err = s.Totp.Reset(ctx, tx, devices[0])
		} else {
			setup, err = s.Totp.Create(ctx, tx, userID)
		}
		return err
	})
	if err != nil {
		return domain.TotpSetup{}, err
	}

	return setup, nil
}

// Enable confirms the pending device with a current TOTP code and, in the
// same transaction, issues the user's single recovery code. The plaintext
// recovery code is returned exactly once.
func (s *MFAService) Enable(
	ctx context.Context,
	token, userID, code string,
) (string, error) {
	auth, err := s.Auth.Authenticate(ctx, token)
	if err != nil {
		return "", err
	}
	userID = resolveUserID(auth, userID)
	if err := ensureSelfOrAdmin(auth, userID); err != nil {
		return "", err
	}

	var recoveryCode string
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := requireUser(ctx, tx, userID); err != nil {
			return err
		}

		devices, err := tx.TotpDevices().ListTotpDevicesByUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to list totp devices: %w", err)
		}

		for _, d := range devices {
			if d.Enabled {
				return ErrMFAAlreadyEnabled
			}
		}
		if len(devices) == 0 {
			return ErrMFANotInitialized
		}

		if err := s.Totp.Confirm(ctx, tx, devices[0], code); err != nil {
			return err
		}

		recoveryCode, err = s.Recovery.Setup(ctx, tx, userID)
		return err
	})
	if err != nil {
		return "", err
	}

	return recoveryCode, nil
}

// Disable removes the user's enabled device and recovery code as one
// transaction.
func (s *MFAService) Disable(ctx context.Context, token, userID string) error {
	auth, err := s.Auth.Authenticate(ctx, token)
	if err != nil {
		return err
	}
	userID = resolveUserID(auth, userID)
	if err := ensureSelfOrAdmin(auth, userID); err != nil {
		return err
	}

	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := requireUser(ctx, tx, userID); err != nil {
			return err
		}

		devices, err := tx.TotpDevices().ListTotpDevicesByUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to list totp devices: %w", err)
		}

		enabled := false
		for _, d := range devices {
			if d.Enabled {
				enabled = true
				break
			}
		}
		if !enabled {
			return ErrMFANotEnabled
		}

		if err := tx.TotpDevices().DeleteTotpDevicesByUser(ctx, userID); err != nil {
			return fmt.Errorf("failed to delete totp devices: %w", err)
		}
		if err := tx.RecoveryCodes().DeleteRecoveryCode(ctx, userID); err != nil {
			return fmt.Errorf("failed to delete recovery code: %w", err)
		}
		return nil
	})
}

// AuthenticateLogin applies the MFA gate during credential login. With no
// enabled device it is a no-op. With one, a valid TOTP code or one-shot
// recovery code must be supplied; supplying neither reports ErrMFARequired
// so the client can prompt for the second factor.
func (s *MFAService) AuthenticateLogin(
	ctx context.Context,
	tx store.Tx,
	userID string,
	mfa domain.MFAAuthentication,
) error {
	devices, err := tx.TotpDevices().ListTotpDevicesByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to list totp devices: %w", err)
	}

	var enabled *domain.TotpDevice
	for i := range devices {
		if devices[i].Enabled {
			enabled = &devices[i]
			break
		}
	}
	if enabled == nil {
		return nil
	}

	switch {
	case mfa.TotpCode != "":
		return s.Totp.Verify(ctx, tx, *enabled, mfa.TotpCode)
	case mfa.RecoveryCode != "":
		return s.Recovery.VerifyAndConsume(ctx, tx, userID, mfa.RecoveryCode)
	default:
		return ErrMFARequired
	}
}

// requireUser maps a missing user row onto ErrUserNotFound, distinct from
// authentication failures so the layer above can answer 404 rather than 401.
func requireUser(ctx context.Context, tx store.Tx, userID string) error {
	exists, err := tx.Users().Exists(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to check user existence: %w", err)
	}
	if !exists {
		return ErrUserNotFound
	}
	return nil
}
