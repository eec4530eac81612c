package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the access-token claims. The token is the only place these live;
// they are never persisted.
type Claims struct {
	jwt.RegisteredClaims

	// SID is the session this token belongs to.
	SID string `json:"sid"`

	// RTH is the fingerprint of the session's refresh token at issue time.
	// It binds the access token to one rotation generation and is the key
	// used for early revocation.
	RTH string `json:"rth"`

	// Admin marks tokens issued to administrator accounts.
	Admin bool `json:"adm,omitempty"`
}

// NewAccessClaims builds minimally-correct claims for an access token.
func NewAccessClaims(
	subject, sid, rth string,
	admin bool,
	ttl time.Duration,
	issuer string,
	now time.Time,
) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		SID:   sid,
		RTH:   rth,
		Admin: admin,
	}
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}
