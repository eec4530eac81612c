package domain

import "time"

// TotpDevice is a per-user TOTP authenticator. At most one enabled and at
// most one pending (not yet confirmed) device may exist per user; the
// schema enforces both with partial unique indexes.
type TotpDevice struct {
	ID        string
	UserID    string
	Enabled   bool
	CreatedAt time.Time
}

// TotpSetup carries the provisioning material for a freshly created or reset
// device. The base32 secret is exposed exactly once, here, and never again.
type TotpSetup struct {
	Secret string // base32 encoded
}

// MFAAuthentication bundles the second factor supplied during login.
// At most one field is expected to be set.
type MFAAuthentication struct {
	TotpCode     string
	RecoveryCode string
}
