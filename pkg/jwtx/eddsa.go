package jwtx

import (
	"crypto/ed25519"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformed  = errors.New("jwtx: malformed token")
	ErrInvalidSig = errors.New("jwtx: invalid signature")
	ErrIssuer     = errors.New("jwtx: issuer mismatch")
	ErrExpired    = errors.New("jwtx: token expired")
)

// Signer signs access-token claims with a process-wide static Ed25519 key.
// Key rotation is handled outside the process; rotating the key invalidates
// every outstanding token.
type Signer struct {
	key    ed25519.PrivateKey
	issuer string
}

func NewSigner(key ed25519.PrivateKey, issuer string) *Signer {
	return &Signer{key: key, issuer: issuer}
}

func (s *Signer) Issuer() string { return s.issuer }

func (s *Signer) Sign(claims Claims) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return tok.SignedString(s.key)
}

// Verifier validates a JWT and gives you back the claims if it's legit.
type Verifier struct {
	pub    ed25519.PublicKey
	issuer string

	// TimeFunc overrides the clock used for exp/nbf validation. Nil means
	// time.Now. Tests inject a fixed clock here.
	TimeFunc func() time.Time
}

func NewVerifier(pub ed25519.PublicKey, issuer string) *Verifier {
	return &Verifier{pub: pub, issuer: issuer}
}

// Verify checks the signature, expiry and issuer of the given token.
// It returns ErrExpired for tokens past their exp claim and ErrInvalidSig,
// ErrMalformed or ErrIssuer otherwise; callers that must not leak the
// distinction collapse these into a single failure.
func (v *Verifier) Verify(token string) (Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.TimeFunc != nil {
		opts = append(opts, jwt.WithTimeFunc(v.TimeFunc))
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return v.pub, nil
	}, opts...)

	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return Claims{}, ErrExpired
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return Claims{}, ErrIssuer
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return Claims{}, ErrInvalidSig
	default:
		return Claims{}, ErrMalformed
	}
}
