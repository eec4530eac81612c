package domain

import (
	"time"
	"unicode/utf8"
)

// MaxDeviceNameLen bounds device names derived from external input
// (user agents, client hints). Longer names are truncated, not rejected.
const MaxDeviceNameLen = 256

// Session is the durable record of one login on one device. The current
// refresh-token fingerprint is resolvable 1:1 from a session through the
// session repository but deliberately not part of the public model.
type Session struct {
	ID         string
	UserID     string
	DeviceName *string
	CreatedAt  time.Time
	UpdatedAt  time.Time // bumped on every refresh-token rotation
}

// TruncateDeviceName clips a device name to MaxDeviceNameLen bytes, backing
// off to the previous rune boundary so the stored value stays valid UTF-8.
// Empty input maps to nil so the column stays NULL rather than storing "".
func TruncateDeviceName(name string) *string {
	if name == "" {
		return nil
	}
	if len(name) > MaxDeviceNameLen {
		cut := MaxDeviceNameLen
		for cut > 0 && !utf8.RuneStart(name[cut]) {
			cut--
		}
		name = name[:cut]
	}
	return &name
}
