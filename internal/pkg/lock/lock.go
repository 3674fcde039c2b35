// Package lock provides the mutual-exclusion boundary serializing all
// ledger and inventory mutations. One key exists per logical store; every
// read-modify-write sequence runs under the key's lock so concurrent chat
// events cannot interleave partial writes.
package lock

import (
	"context"
	"sync"
	"time"
)

// Well-known lock keys.
const (
	KeyLedger    = "ledger"
	KeyInventory = "inventory"
)

// DefaultTimeout bounds how long an operation waits for a lock before
// failing with ErrLockTimeout instead of deadlocking silently.
const DefaultTimeout = 5 * time.Second

// Guard is a keyed mutex with bounded acquisition. The zero value is not
// usable; create instances with New.
type Guard struct {
	slots   sync.Map // map[string]chan struct{}
	timeout time.Duration
}

// New creates a Guard. A non-positive timeout falls back to DefaultTimeout.
func New(timeout time.Duration) *Guard {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Guard{timeout: timeout}
}

func (g *Guard) slot(key string) chan struct{} {
	if v, ok := g.slots.Load(key); ok {
		return v.(chan struct{})
	}
	v, _ := g.slots.LoadOrStore(key, make(chan struct{}, 1))
	return v.(chan struct{})
}

// Acquire blocks until the key's lock is held, the context is cancelled, or
// the guard's timeout elapses. On success it returns a release function that
// must be called exactly once.
func (g *Guard) Acquire(ctx context.Context, key string) (func(), error) {
	slot := g.slot(key)
	timer := time.NewTimer(g.timeout)
	defer timer.Stop()

	select {
	case slot <- struct{}{}:
		return func() { <-slot }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, ErrLockTimeout
	}
}

// TryAcquire attempts to take the key's lock without blocking.
func (g *Guard) TryAcquire(key string) (func(), bool) {
	slot := g.slot(key)
	select {
	case slot <- struct{}{}:
		return func() { <-slot }, true
	default:
		return nil, false
	}
}

// With runs fn while holding the key's lock.
func (g *Guard) With(ctx context.Context, key string, fn func() error) error {
	release, err := g.Acquire(ctx, key)
	if err != nil {
		return err
	}
	defer release()
	return fn()
}

// IsLocked reports whether the key's lock is currently held. The answer is a
// point-in-time observation and may change immediately after.
func (g *Guard) IsLocked(key string) bool {
	if release, ok := g.TryAcquire(key); ok {
		release()
		return false
	}
	return true
}
