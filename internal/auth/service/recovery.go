package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/coursearc/authcore/internal/auth/store"
	"github.com/coursearc/authcore/pkg/cryptox"
)

// RecoveryService manages the single one-shot backup code each MFA-enabled
// user holds. Only the code's fingerprint is ever persisted.
type RecoveryService struct {
	Clock Clock
}

// Setup generates a fresh recovery code for the user, superseding any prior
// one, and returns the plaintext exactly once.
func (s *RecoveryService) Setup(
	ctx context.Context,
	tx store.Tx,
	userID string,
) (string, error) {
	code, err := cryptox.GenerateRecoveryCode()
	if err != nil {
		return "", err
	}

	hash := cryptox.FingerprintToken(code)
	if err := tx.RecoveryCodes().SaveRecoveryCodeHash(ctx, userID, hash, s.Clock.Now()); err != nil {
		return "", fmt.Errorf("failed to save recovery code: %w", err)
	}

	return code, nil
}

// VerifyAndConsume checks the supplied code against the stored fingerprint
// and clears it on success so the same code can never be replayed. Having no
// code stored yields the same ErrInvalidCode as a wrong code.
func (s *RecoveryService) VerifyAndConsume(
	ctx context.Context,
	tx store.Tx,
	userID, code string,
) error {
	stored, err := tx.RecoveryCodes().GetRecoveryCodeHash(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidCode
		}
		return fmt.Errorf("failed to get recovery code: %w", err)
	}

	supplied := cryptox.FingerprintToken(cryptox.NormalizeRecoveryCode(code))
	if subtle.ConstantTimeCompare([]byte(supplied), []byte(stored)) != 1 {
		return ErrInvalidCode
	}

	if err := tx.RecoveryCodes().DeleteRecoveryCode(ctx, userID); err != nil {
		return fmt.Errorf("failed to consume recovery code: %w", err)
	}
	return nil
}
