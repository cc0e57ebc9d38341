// Package lock provides the per-document lock that keeps thumbnail jobs for the same document
// from running on two instances at once.
package lock

import (
	"context"
	"errors"
	"time"
)

// ErrLocked is returned by Acquire when another owner holds the key.
var ErrLocked = errors.New("lock is held by another owner")

// Locker hands out exclusive, expiring locks keyed by string. The returned release function is
// safe to call more than once.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// Noop is used when no shared lock backend is configured; in-process coalescing still applies.
type Noop struct{}

func (Noop) Acquire(context.Context, string, time.Duration) (func(), error) {
	return func() {}, nil
}
