// Package ratelimit provides a keyed token-bucket limiter used to slow down
// credential and MFA brute forcing. Keys are caller-chosen (username, user
// id), not tied to any transport.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config defines the rate limiting parameters for one limiter.
type Config struct {
	// RequestsPerWindow is the number of attempts allowed in the time window.
	RequestsPerWindow int
	// Window is the time window the allowance is spread over.
	Window time.Duration
	// Burst allows for temporary bursts above the steady rate.
	Burst int
}

// LoginLimit is the default profile for credential and MFA attempts:
// 5 attempts per minute per key, all available as a burst.
var LoginLimit = Config{
	RequestsPerWindow: 5,
	Window:            time.Minute,
	Burst:             5,
}

// Keyed manages one token bucket per key. Idle buckets are dropped
// periodically so ephemeral keys don't accumulate forever.
type Keyed struct {
	limiters sync.Map // map[string]*rate.Limiter
	rate     rate.Limit
	burst    int

	mu          sync.Mutex
	lastCleanup time.Time
}

// NewKeyed builds a keyed limiter from the given config.
func NewKeyed(cfg Config) *Keyed {
	if cfg.RequestsPerWindow <= 0 || cfg.Window <= 0 {
		cfg = LoginLimit
	}
	if cfg.Burst <= 0 {
		cfg.Burst = cfg.RequestsPerWindow
	}

	return &Keyed{
		rate:  rate.Limit(float64(cfg.RequestsPerWindow) / cfg.Window.Seconds()),
		burst: cfg.Burst,
		// Start the cleanup timer now: a zero value would let the first
		// getLimiter call sweep away the still-full bucket it just created.
		lastCleanup: time.Now(),
	}
}

// Allow reports whether the attempt identified by key may proceed now.
func (k *Keyed) Allow(key string) bool {
	return k.getLimiter(key).Allow()
}

func (k *Keyed) getLimiter(key string) *rate.Limiter {
	if limiter, ok := k.limiters.Load(key); ok {
		return limiter.(*rate.Limiter)
	}

	limiter := rate.NewLimiter(k.rate, k.burst)
	actual, _ := k.limiters.LoadOrStore(key, limiter)

	k.maybeCleanup()

	return actual.(*rate.Limiter)
}

// maybeCleanup removes limiters that have refilled completely; a full bucket
// means the key has been idle for at least one window.
func (k *Keyed) maybeCleanup() {
	k.mu.Lock()
	defer k.mu.Unlock()

	if time.Since(k.lastCleanup) < 5*time.Minute {
		return
	}
	k.lastCleanup = time.Now()

	k.limiters.Range(func(key, value any) bool {
		limiter := value.(*rate.Limiter)
		if limiter.Tokens() >= float64(k.burst) {
			k.limiters.Delete(key)
		}
		return true
	})
}
