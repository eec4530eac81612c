package service

import "time"

// Clock abstracts the wall clock so expiry logic is deterministic in tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// SystemClock returns the real wall clock in UTC.
func SystemClock() Clock { return systemClock{} }
