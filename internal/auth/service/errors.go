package service

import "errors"

// Authentication failures. Always recoverable by the caller; never logged as
// server errors. ErrInvalidCredentials deliberately covers both "no such
// user/hash" and "wrong password" so responses carry no enumeration signal,
// and ErrInvalidToken covers expired and forged tokens alike.
var (
	ErrInvalidToken        = errors.New("invalid_token")
	ErrInvalidCredentials  = errors.New("invalid_credentials")
	ErrInvalidRefreshToken = errors.New("invalid_refresh_token")
	ErrRefreshTokenExpired = errors.New("refresh_token_expired")
	ErrInvalidCode         = errors.New("invalid_code")
	ErrMFARequired         = errors.New("mfa_required")
	ErrTooManyAttempts     = errors.New("too_many_attempts")
)

// Conflict and precondition failures. Caller-correctable, surfaced distinctly
// from authentication failures.
var (
	ErrMFAAlreadyEnabled = errors.New("mfa_already_enabled")
	ErrMFANotEnabled     = errors.New("mfa_not_enabled")
	ErrMFANotInitialized = errors.New("mfa_not_initialized")
	ErrUserDisabled      = errors.New("user_disabled")
)

// Not-found and authorization failures, kept apart from authentication
// failures so the layer above can pick 404 vs 401 vs 403 semantics.
var (
	ErrUserNotFound    = errors.New("user_not_found")
	ErrSessionNotFound = errors.New("session_not_found")
	ErrForbidden       = errors.New("forbidden")
)
