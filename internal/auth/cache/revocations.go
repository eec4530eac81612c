// Package cache holds the Redis-backed revocation cache. Revocation entries
// mark a refresh-token fingerprint as invalidated for the remaining lifetime
// of any access token bound to it; entries expire on their own, so absence is
// the default-allow state.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrUnavailable reports that Redis could not answer. Callers must fail
// closed: an unanswered revocation lookup is never treated as "not revoked".
var ErrUnavailable = errors.New("cache: redis unavailable")

const revocationPrefix = "rev"

// Revocations is the revocation cache over a shared Redis instance. It has
// no transactional coupling to the relational store; an invalidation may race
// an in-flight verification for the duration of one network round trip, which
// the design accepts.
type Revocations struct {
	rdb *redis.Client
}

func NewRevocations(rdb *redis.Client) *Revocations {
	return &Revocations{rdb: rdb}
}

func (c *Revocations) key(refreshTokenHash string) string {
	return revocationPrefix + ":" + refreshTokenHash
}

// Invalidate marks every access token bound to the given fingerprint as
// rejected for ttl, the remaining access-token lifetime. The entry prunes
// itself when the last bound token would have expired anyway.
func (c *Revocations) Invalidate(
	ctx context.Context,
	refreshTokenHash string,
	ttl time.Duration,
) error {
	if ttl <= 0 {
		return nil // nothing outstanding can still be alive
	}
	if err := c.rdb.Set(ctx, c.key(refreshTokenHash), 1, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// IsInvalidated reports whether the fingerprint has been revoked. A missing
// entry means "not invalidated", not "unknown".
func (c *Revocations) IsInvalidated(
	ctx context.Context,
	refreshTokenHash string,
) (bool, error) {
	n, err := c.rdb.Exists(ctx, c.key(refreshTokenHash)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n > 0, nil
}

// Ping verifies the Redis connection at startup.
func (c *Revocations) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
