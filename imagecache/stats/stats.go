// Package stats tracks immutable hit/miss counters for the cache tiers.
package stats

import (
	"sync/atomic"
	"time"
)

// Snapshot is an immutable view of the counters at a point in time.
type Snapshot struct {
	Hits      int64
	Misses    int64
	StartedAt time.Time
}

// Total returns Hits+Misses.
func (s Snapshot) Total() int64 {
	return s.Hits + s.Misses
}

// Counters holds monotonically increasing hit/miss counts behind atomics.
// A zero Counters is ready to use.
type Counters struct {
	hits      atomic.Int64
	misses    atomic.Int64
	startedAt atomic.Int64 // unix nanos, set lazily on first touch
}

// RecordHit increments the hit counter and returns the new snapshot.
func (c *Counters) RecordHit() Snapshot {
	c.ensureStarted()
	c.hits.Add(1)
	return c.Snapshot()
}

// RecordMiss increments the miss counter and returns the new snapshot.
func (c *Counters) RecordMiss() Snapshot {
	c.ensureStarted()
	c.misses.Add(1)
	return c.Snapshot()
}

// Snapshot returns a consistent, independent view of the current counters.
func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		StartedAt: c.started(),
	}
}

// Reset zeroes the counters and restarts the clock, returning the fresh
// snapshot.
func (c *Counters) Reset() Snapshot {
	c.hits.Store(0)
	c.misses.Store(0)
	c.startedAt.Store(time.Now().UnixNano())
	return c.Snapshot()
}

func (c *Counters) ensureStarted() {
	c.startedAt.CompareAndSwap(0, time.Now().UnixNano())
}

func (c *Counters) started() time.Time {
	nanos := c.startedAt.Load()
	if nanos == 0 {
		return time.Time{}
	}
	return time.Unix(0, nanos)
}
