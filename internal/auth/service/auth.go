package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/coursearc/authcore/internal/auth/domain"
	"github.com/coursearc/authcore/internal/auth/store"
	"github.com/coursearc/authcore/pkg/cryptox"
)

// AuthService is the stateless authentication orchestrator. It holds no
// long-lived state of its own; everything durable lives behind the injected
// store and cache collaborators.
type AuthService struct {
	Store         store.Store
	AccessTokens  *AccessTokens
	RefreshTokens *RefreshTokens
	Clock         Clock
	RefreshTTL    time.Duration
}

// Authenticate verifies an access token and rejects it if its bound
// refresh-token fingerprint has been revoked. A cache failure fails the call;
// skipping the revocation check would silently grant access.
func (s *AuthService) Authenticate(
	ctx context.Context,
	accessToken string,
) (domain.Authentication, error) {
	auth, ok := s.AccessTokens.Verify(accessToken)
	if !ok {
		return domain.Authentication{}, ErrInvalidToken
	}

	invalidated, err := s.AccessTokens.IsInvalidated(ctx, auth.RefreshTokenHash)
	if err != nil {
		return domain.Authentication{}, fmt.Errorf(
			"failed to check whether access token has been invalidated: %w", err)
	}
	if invalidated {
		slog.Debug("access token invalidated", "session_id", auth.SessionID)
		return domain.Authentication{}, ErrInvalidToken
	}

	return auth, nil
}

// AuthenticateByPassword verifies a user's password against the stored hash.
// A missing hash yields the same ErrInvalidCredentials as a wrong password.
func (s *AuthService) AuthenticateByPassword(
	ctx context.Context,
	tx store.Tx,
	userID, password string,
) error {
	hash, err := tx.Users().GetPasswordHash(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("failed to get password hash: %w", err)
	}
	if hash == "" {
		return ErrInvalidCredentials
	}

	if err := cryptox.VerifyPassword(password, hash); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// AuthenticateByRefreshToken resolves a refresh token to its session. When
// the session's rotation timestamp has lapsed past the refresh TTL the
// session id is still returned alongside ErrRefreshTokenExpired so the
// caller can purge the row.
func (s *AuthService) AuthenticateByRefreshToken(
	ctx context.Context,
	tx store.Tx,
	refreshToken string,
) (string, error) {
	hash := s.RefreshTokens.Hash(refreshToken)

	session, err := tx.Sessions().GetSessionByRefreshTokenHash(ctx, hash)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrInvalidRefreshToken
		}
		return "", fmt.Errorf("failed to get session: %w", err)
	}

	if !s.Clock.Now().Before(session.UpdatedAt.Add(s.RefreshTTL)) {
		return session.ID, ErrRefreshTokenExpired
	}

	return session.ID, nil
}

// IssueTokens mints a new refresh token (rotation on use) and an access
// token bound to its fingerprint. The caller persists the fingerprint into
// the session row within the same transaction as any other session mutation.
func (s *AuthService) IssueTokens(
	user domain.User,
	sessionID string,
) (domain.Tokens, error) {
	refreshToken, err := s.RefreshTokens.Issue()
	if err != nil {
		return domain.Tokens{}, fmt.Errorf("failed to issue refresh token: %w", err)
	}
	hash := s.RefreshTokens.Hash(refreshToken)

	accessToken, err := s.AccessTokens.Issue(user, sessionID, hash)
	if err != nil {
		return domain.Tokens{}, fmt.Errorf("failed to issue access token: %w", err)
	}

	return domain.Tokens{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		RefreshTokenHash: hash,
	}, nil
}

// InvalidateAccessTokens revokes every session fingerprint of a user. Used
// on logout-everywhere, password change, account disablement and deletion.
// The first failing invalidation fails the whole call so the caller can
// retry; there is no partial silent success.
func (s *AuthService) InvalidateAccessTokens(
	ctx context.Context,
	tx store.Tx,
	userID string,
) error {
	hashes, err := tx.Sessions().ListRefreshTokenHashesByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to list refresh token hashes: %w", err)
	}

	for _, hash := range hashes {
		if err := s.AccessTokens.Invalidate(ctx, hash); err != nil {
			return err
		}
	}
	return nil
}

// ensureSelfOrAdmin authorizes an operation on userID for the authenticated
// caller: the user themselves or any administrator.
func ensureSelfOrAdmin(auth domain.Authentication, userID string) error {
	if auth.UserID == userID || auth.Admin {
		return nil
	}
	return ErrForbidden
}

// ensureAdmin authorizes an admin-only operation.
func ensureAdmin(auth domain.Authentication) error {
	if auth.Admin {
		return nil
	}
	return ErrForbidden
}

// resolveUserID maps an empty target onto the caller ("self").
func resolveUserID(auth domain.Authentication, userID string) string {
	if userID == "" {
		return auth.UserID
	}
	return userID
}
