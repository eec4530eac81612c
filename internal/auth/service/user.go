package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/coursearc/authcore/internal/auth/domain"
	"github.com/coursearc/authcore/internal/auth/store"
	"github.com/coursearc/authcore/pkg/cryptox"
	"github.com/coursearc/authcore/pkg/idx"
)

// UserService covers the account mutations the auth core owns: the ones
// that must invalidate outstanding tokens. Profile CRUD lives elsewhere.
type UserService struct {
	Store store.Store
	Auth  *AuthService
	Clock Clock
}

// Register creates an account with a hashed password. Registration is the
// entry point for the login flows; anything beyond credentials is another
// module's concern.
func (s *UserService) Register(
	ctx context.Context,
	username, password string,
	admin bool,
) (domain.User, error) {
	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return domain.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.Clock.Now()
	user := domain.User{
		ID:           idx.New().String(),
		Username:     username,
		PasswordHash: hash,
		Admin:        admin,
		Enabled:      true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.Store.Users().CreateUser(ctx, user); err != nil {
		return domain.User{}, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// ChangePassword sets a new password for the target user. Non-admin callers
// must prove the old one. Every outstanding access token of the user is
// invalidated in the same transaction scope so stolen tokens die with the
// old credential.
func (s *UserService) ChangePassword(
	ctx context.Context,
	token, userID, oldPassword, newPassword string,
) error {
	auth, err := s.Auth.Authenticate(ctx, token)
	if err != nil {
		return err
	}
	userID = resolveUserID(auth, userID)
	if err := ensureSelfOrAdmin(auth, userID); err != nil {
		return err
	}

	hash, err := cryptox.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		if !auth.Admin {
			if err := s.Auth.AuthenticateByPassword(ctx, tx, userID, oldPassword); err != nil {
				return err
			}
		}

		if err := tx.Users().UpdatePasswordHash(ctx, userID, hash, s.Clock.Now()); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrUserNotFound
			}
			return fmt.Errorf("failed to update password hash: %w", err)
		}

		return s.Auth.InvalidateAccessTokens(ctx, tx, userID)
	})
}

// SetEnabled enables or disables an account (admin only). Disabling also
// invalidates all outstanding access tokens.
func (s *UserService) SetEnabled(
	ctx context.Context,
	token, userID string,
	enabled bool,
) error {
	auth, err := s.Auth.Authenticate(ctx, token)
	if err != nil {
		return err
	}
	if err := ensureAdmin(auth); err != nil {
		return err
	}

	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().SetEnabled(ctx, userID, enabled, s.Clock.Now()); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrUserNotFound
			}
			return fmt.Errorf("failed to update user: %w", err)
		}

		if !enabled {
			return s.Auth.InvalidateAccessTokens(ctx, tx, userID)
		}
		return nil
	})
}

// DeleteUser removes the account (self-or-admin). Access tokens are
// invalidated first, inside the transaction, so a failed invalidation
// aborts the deletion; sessions, devices and recovery codes go with the
// user row via cascade.
func (s *UserService) DeleteUser(ctx context.Context, token, userID string) error {
	auth, err := s.Auth.Authenticate(ctx, token)
	if err != nil {
		return err
	}
	userID = resolveUserID(auth, userID)
	if err := ensureSelfOrAdmin(auth, userID); err != nil {
		return err
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := s.Auth.InvalidateAccessTokens(ctx, tx, userID); err != nil {
			return err
		}

		if err := tx.Users().DeleteUser(ctx, userID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrUserNotFound
			}
			return fmt.Errorf("failed to delete user: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.Info("user deleted", "user_id", userID)
	return nil
}
