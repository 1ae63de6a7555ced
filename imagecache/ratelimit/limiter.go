// Package ratelimit bounds how many downloads run at once
// (ConcurrencyLimiter) and, optionally, how fast new ones may start (an
// rps limiter grounded in rclone's cache backend, which exposes exactly
// this knob as DefCacheRps via golang.org/x/time/rate).
package ratelimit

import "context"

// DefaultMaxConcurrent is the default concurrent-download ceiling.
const DefaultMaxConcurrent = 6

// Limiter is a counting semaphore admitting at most N concurrent
// operations. Go's channel implementation wakes blocked senders in the
// order they started waiting, giving FIFO grant order without any
// extra bookkeeping.
type Limiter struct {
	slots chan struct{}
}

// New creates a Limiter admitting at most n concurrent holders. n<=0
// falls back to DefaultMaxConcurrent.
func New(n int) *Limiter {
	if n <= 0 {
		n = DefaultMaxConcurrent
	}
	return &Limiter{slots: make(chan struct{}, n)}
}

// WithLimit acquires a permit, runs op, and releases the permit on every
// exit path including ctx cancellation.
func WithLimit[T any](ctx context.Context, l *Limiter, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	select {
	case l.slots <- struct{}{}:
	case <-ctx.Done():
		return zero, ctx.Err()
	}
	defer func() { <-l.slots }()
	return op(ctx)
}

// Acquire blocks until a permit is available or ctx is cancelled,
// returning a release function the caller must call exactly once.
func (l *Limiter) Acquire(ctx context.Context) (release func(), err error) {
	select {
	case l.slots <- struct{}{}:
		return func() { <-l.slots }, nil
	case <-ctx.Done():
		return func() {}, ctx.Err()
	}
}
