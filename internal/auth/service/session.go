package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/coursearc/authcore/internal/auth/domain"
	"github.com/coursearc/authcore/internal/auth/store"
	"github.com/coursearc/authcore/pkg/idx"
	"github.com/coursearc/authcore/pkg/ratelimit"
)

// LoginRequest carries everything a credential login may need. MFA fields
// are only consulted when the account has an enabled TOTP device.
type LoginRequest struct {
	Username   string
	Password   string
	DeviceName string
	MFA        domain.MFAAuthentication
}

// SessionService owns the session lifecycle: login, refresh-token rotation,
// logout and session introspection. Every multi-step mutation runs inside
// one store transaction.
type SessionService struct {
	Store  store.Store
	Auth   *AuthService
	MFA    *MFAService
	Clock  Clock
	Logins *ratelimit.Keyed
}

// Login authenticates credentials (and the second factor when MFA is
// enabled), creates one session for the device and issues the initial token
// pair. Unknown usernames and wrong passwords are indistinguishable to the
// caller.
func (s *SessionService) Login(
	ctx context.Context,
	req LoginRequest,
) (domain.LoginResult, error) {
	if s.Logins != nil && !s.Logins.Allow(req.Username) {
		return domain.LoginResult{}, ErrTooManyAttempts
	}

	var result domain.LoginResult
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		user, err := tx.Users().GetUserByUsername(ctx, req.Username)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidCredentials
			}
			return fmt.Errorf("failed to get user: %w", err)
		}

		if err := s.Auth.AuthenticateByPassword(ctx, tx, user.ID, req.Password); err != nil {
			return err
		}

		if !user.Enabled {
			return ErrUserDisabled
		}

		if err := s.MFA.AuthenticateLogin(ctx, tx, user.ID, req.MFA); err != nil {
			return err
		}

		now := s.Clock.Now()
		session := domain.Session{
			ID:         idx.New().String(),
			UserID:     user.ID,
			DeviceName: domain.TruncateDeviceName(req.DeviceName),
			CreatedAt:  now,
			UpdatedAt:  now,
		}

		tokens, err := s.Auth.IssueTokens(user, session.ID)
		if err != nil {
			return err
		}

		if err := tx.Sessions().CreateSession(ctx, session, tokens.RefreshTokenHash); err != nil {
			return fmt.Errorf("failed to create session: %w", err)
		}

		result = domain.LoginResult{Session: session, Tokens: tokens}
		return nil
	})
	if err != nil {
		return domain.LoginResult{}, err
	}

	slog.Info("session created",
		"session_id", result.Session.ID, "user_id", result.Session.UserID)
	return result, nil
}

// Refresh rotates the session's refresh token and issues a fresh token pair.
// An expired session is purged and its fingerprint revoked before the error
// is surfaced, so the dead session cannot linger.
func (s *SessionService) Refresh(
	ctx context.Context,
	refreshToken string,
) (domain.LoginResult, error) {
	var result domain.LoginResult
	var expiredSessionID string
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		sessionID, err := s.Auth.AuthenticateByRefreshToken(ctx, tx, refreshToken)
		if errors.Is(err, ErrRefreshTokenExpired) {
			// Returning the error rolls this transaction back, so the
			// purge must run in its own transaction below.
			expiredSessionID = sessionID
			return err
		}
		if err != nil {
			return err
		}

		session, err := tx.Sessions().GetSession(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("failed to get session: %w", err)
		}

		user, err := tx.Users().GetUserByID(ctx, session.UserID)
		if err != nil {
			return fmt.Errorf("failed to get user: %w", err)
		}
		if !user.Enabled {
			return ErrUserDisabled
		}

		tokens, err := s.Auth.IssueTokens(user, session.ID)
		if err != nil {
			return err
		}

		now := s.Clock.Now()
		if err := tx.Sessions().RotateRefreshTokenHash(ctx, session.ID, tokens.RefreshTokenHash, now); err != nil {
			return fmt.Errorf("failed to rotate refresh token: %w", err)
		}
		session.UpdatedAt = now

		result = domain.LoginResult{Session: session, Tokens: tokens}
		return nil
	})
	if errors.Is(err, ErrRefreshTokenExpired) && expiredSessionID != "" {
		purgeErr := s.Store.WithTx(ctx, func(tx store.Tx) error {
			return s.purgeSession(ctx, tx, expiredSessionID)
		})
		if purgeErr != nil {
			return domain.LoginResult{}, purgeErr
		}
		return domain.LoginResult{}, err
	}
	if err != nil {
		return domain.LoginResult{}, err
	}

	return result, nil
}

// Logout deletes the caller's own session and revokes its fingerprint so
// outstanding access tokens die with it. The session's current fingerprint
// is resolved from the store; the presented token may predate a rotation
// and carry a stale one, which is revoked as well.
func (s *SessionService) Logout(ctx context.Context, token string) error {
	auth, err := s.Auth.Authenticate(ctx, token)
	if err != nil {
		return err
	}

	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := s.purgeSession(ctx, tx, auth.SessionID); err != nil {
			return err
		}
		return s.Auth.AccessTokens.Invalidate(ctx, auth.RefreshTokenHash)
	})
}

// LogoutEverywhere deletes every session of the target user (self-or-admin)
// and revokes all of their fingerprints.
func (s *SessionService) LogoutEverywhere(ctx context.Context, token, userID string) error {
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
		if err := s.Auth.InvalidateAccessTokens(ctx, tx, userID); err != nil {
			return err
		}
		if err := tx.Sessions().DeleteSessionsByUser(ctx, userID); err != nil {
			return fmt.Errorf("failed to delete sessions: %w", err)
		}
		return nil
	})
}

// GetCurrentSession returns the session backing the presented access token.
func (s *SessionService) GetCurrentSession(
	ctx context.Context,
	token string,
) (domain.Session, error) {
	auth, err := s.Auth.Authenticate(ctx, token)
	if err != nil {
		return domain.Session{}, err
	}

	session, err := s.Store.Sessions().GetSession(ctx, auth.SessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Session{}, ErrSessionNotFound
		}
		return domain.Session{}, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}

// ListSessions returns all sessions of the target user (self-or-admin).
func (s *SessionService) ListSessions(
	ctx context.Context,
	token, userID string,
) ([]domain.Session, error) {
	auth, err := s.Auth.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	userID = resolveUserID(auth, userID)
	if err := ensureSelfOrAdmin(auth, userID); err != nil {
		return nil, err
	}

	sessions, err := s.Store.Sessions().ListSessionsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

// DeleteSession logs out one specific session of the target user
// (self-or-admin), revoking its fingerprint.
func (s *SessionService) DeleteSession(
	ctx context.Context,
	token, userID, sessionID string,
) error {
	auth, err := s.Auth.Authenticate(ctx, token)
	if err != nil {
		return err
	}
	userID = resolveUserID(auth, userID)
	if err := ensureSelfOrAdmin(auth, userID); err != nil {
		return err
	}

	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		session, err := tx.Sessions().GetSession(ctx, sessionID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrSessionNotFound
			}
			return fmt.Errorf("failed to get session: %w", err)
		}
		if session.UserID != userID {
			return ErrSessionNotFound
		}

		return s.purgeSession(ctx, tx, sessionID)
	})
}

// purgeSession deletes a session row and revokes its current fingerprint.
func (s *SessionService) purgeSession(ctx context.Context, tx store.Tx, sessionID string) error {
	hash, err := tx.Sessions().GetRefreshTokenHashBySession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to resolve refresh token hash: %w", err)
	}

	if err := s.Auth.AccessTokens.Invalidate(ctx, hash); err != nil {
		return err
	}
	if err := tx.Sessions().DeleteSession(ctx, sessionID); err != nil &&
		!errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
