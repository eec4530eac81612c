package store

import (
	"context"
	"errors"
	"time"

	"github.com/coursearc/authcore/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite,
// postgres) implement this. It exposes sub-repositories to keep concerns
// tidy and testable, and a Tx-scoped variant for multi-step flows that must
// commit or roll back as a unit.
type Store interface {
	Users() Users
	Sessions() Sessions
	TotpDevices() TotpDevices
	RecoveryCodes() RecoveryCodes

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed. This is the
	// recommended way to run multi-step mutations.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByUsername is used during credential login.
	GetUserByUsername(ctx context.Context, username string) (domain.User, error)

	// CreateUser inserts a new user (id is provided by app via ULID).
	CreateUser(ctx context.Context, u domain.User) error

	// Exists reports whether a user row exists.
	Exists(ctx context.Context, id string) (bool, error)

	// GetPasswordHash returns the stored hash, or "" when the user has no
	// password set (e.g. external-identity-only accounts).
	GetPasswordHash(ctx context.Context, userID string) (string, error)

	// UpdatePasswordHash sets the password_hash (argon2) and bumps
	// updated_at to now.
	UpdatePasswordHash(ctx context.Context, userID, newHash string, now time.Time) error

	// SetEnabled flips the account's enabled flag and bumps updated_at.
	SetEnabled(ctx context.Context, userID string, enabled bool, now time.Time) error

	// DeleteUser cascades to sessions, totp_devices and recovery_codes.
	DeleteUser(ctx context.Context, userID string) error
}

type Sessions interface {
	// GetSession returns a session by id.
	GetSession(ctx context.Context, id string) (domain.Session, error)

	// GetSessionByRefreshTokenHash resolves the session currently bound to
	// the given refresh-token fingerprint.
	GetSessionByRefreshTokenHash(ctx context.Context, hash string) (domain.Session, error)

	// GetRefreshTokenHashBySession is the reverse lookup: the fingerprint
	// currently bound to a session. The hash is not part of the public
	// Session model but resolves 1:1 from it.
	GetRefreshTokenHashBySession(ctx context.Context, sessionID string) (string, error)

	// ListSessionsByUser returns all sessions for a user, newest first.
	ListSessionsByUser(ctx context.Context, userID string) ([]domain.Session, error)

	// ListRefreshTokenHashesByUser returns every session's current
	// refresh-token fingerprint for a user. Used to invalidate all access
	// tokens of a user.
	ListRefreshTokenHashesByUser(ctx context.Context, userID string) ([]string, error)

	// CreateSession inserts a session together with its initial
	// refresh-token fingerprint.
	CreateSession(ctx context.Context, s domain.Session, refreshTokenHash string) error

	// RotateRefreshTokenHash replaces the session's fingerprint and bumps
	// updated_at to now.
	RotateRefreshTokenHash(ctx context.Context, sessionID, newHash string, now time.Time) error

	// DeleteSession removes a single session.
	DeleteSession(ctx context.Context, id string) error

	// DeleteSessionsByUser removes every session of a user.
	DeleteSessionsByUser(ctx context.Context, userID string) error

	// DeleteExpiredSessions removes sessions not rotated since cutoff.
	// Housekeeping; returns the number of rows removed.
	DeleteExpiredSessions(ctx context.Context, cutoff time.Time) (int64, error)
}

type TotpDevices interface {
	// ListTotpDevicesByUser returns all devices for a user (enabled and
	// pending), oldest first.
	ListTotpDevicesByUser(ctx context.Context, userID string) ([]domain.TotpDevice, error)

	// CreateTotpDevice inserts a pending device with its secret.
	CreateTotpDevice(ctx context.Context, d domain.TotpDevice, secret string) error

	// GetTotpDeviceSecret returns the base32 secret for a device.
	GetTotpDeviceSecret(ctx context.Context, deviceID string) (string, error)

	// ResetTotpDeviceSecret replaces a pending device's secret in place.
	ResetTotpDeviceSecret(ctx context.Context, deviceID, secret string) error

	// EnableTotpDevice flips enabled=true for a confirmed device.
	EnableTotpDevice(ctx context.Context, deviceID string) error

	// DeleteTotpDevicesByUser removes all devices for a user.
	DeleteTotpDevicesByUser(ctx context.Context, userID string) error
}

type RecoveryCodes interface {
	// GetRecoveryCodeHash returns the single active code hash for a user,
	// or ErrNotFound when none is set.
	GetRecoveryCodeHash(ctx context.Context, userID string) (string, error)

	// SaveRecoveryCodeHash upserts the user's active code hash; any prior
	// code is superseded.
	SaveRecoveryCodeHash(ctx context.Context, userID, codeHash string, now time.Time) error

	// DeleteRecoveryCode clears the user's active code.
	DeleteRecoveryCode(ctx context.Context, userID string) error
}
