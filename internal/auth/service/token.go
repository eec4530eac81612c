package service

import (
	"context"
	"fmt"
	"time"

	"github.com/coursearc/authcore/internal/auth/cache"
	"github.com/coursearc/authcore/internal/auth/domain"
	"github.com/coursearc/authcore/pkg/cryptox"
	"github.com/coursearc/authcore/pkg/jwtx"
)

// AccessTokens signs and verifies the short-lived access tokens and fronts
// the revocation cache for the fingerprints embedded in them.
type AccessTokens struct {
	Signer      *jwtx.Signer
	Verifier    *jwtx.Verifier
	Revocations *cache.Revocations
	Clock       Clock
	TTL         time.Duration
}

// Issue signs a token binding the user and session to the session's current
// refresh-token fingerprint, expiring at now + TTL.
func (s *AccessTokens) Issue(
	user domain.User,
	sessionID, refreshTokenHash string,
) (string, error) {
	claims := jwtx.NewAccessClaims(
		user.ID,
		sessionID,
		refreshTokenHash,
		user.Admin,
		s.TTL,
		s.Signer.Issuer(),
		s.Clock.Now(),
	)
	return s.Signer.Sign(claims)
}

// Verify checks signature and expiry. The second return is false on any
// failure; callers never learn whether the token was expired or forged.
func (s *AccessTokens) Verify(token string) (domain.Authentication, bool) {
	claims, err := s.Verifier.Verify(token)
	if err != nil {
		return domain.Authentication{}, false
	}
	return domain.Authentication{
		UserID:           claims.Subject,
		SessionID:        claims.SID,
		RefreshTokenHash: claims.RTH,
		Admin:            claims.Admin,
	}, true
}

// Invalidate marks every access token bound to the fingerprint as rejected
// for the remainder of its natural lifetime.
func (s *AccessTokens) Invalidate(ctx context.Context, refreshTokenHash string) error {
	if err := s.Revocations.Invalidate(ctx, refreshTokenHash, s.TTL); err != nil {
		return fmt.Errorf("failed to invalidate access token: %w", err)
	}
	return nil
}

// IsInvalidated reports whether the fingerprint has been revoked. Cache
// errors propagate; the caller must fail closed.
func (s *AccessTokens) IsInvalidated(
	ctx context.Context,
	refreshTokenHash string,
) (bool, error) {
	return s.Revocations.IsInvalidated(ctx, refreshTokenHash)
}

// RefreshTokens issues the long-lived opaque tokens and computes their
// lookup fingerprint.
type RefreshTokens struct {
	Length int // token length in bytes before encoding
}

// Issue generates a fresh high-entropy opaque token.
func (s *RefreshTokens) Issue() (string, error) {
	length := s.Length
	if length <= 0 {
		length = cryptox.TokenSize256
	}
	return cryptox.GenerateToken(length)
}

// Hash returns the deterministic one-way fingerprint used as the stored
// lookup key. Fast on purpose; the token itself is already high entropy.
func (s *RefreshTokens) Hash(token string) string {
	return cryptox.FingerprintToken(token)
}
