// Package dedup guarantees at-most-one in-flight fetch per key, joiners
// all observing the identical result.
//
// golang.org/x/sync/singleflight is the ecosystem-standard primitive
// for exactly this shape: a mutex-guarded map of in-flight calls with a
// WaitGroup per call, the same approach a mutex-guarded
// map[string]*sync.WaitGroup inflight tracker uses for request
// coalescing. But singleflight.Group has no notion of per-joiner
// cancellation, and reference-counted cancellation is required here
// (the shared fetch is only cancelled once its last joiner departs).
// Group below is built directly on singleflight's approach, extended
// with that refcount and a context.CancelFunc per call.
package dedup

import (
	"context"
	"sync"

	"github.com/bboehmke/imagecached/imagecache/cacheerr"
	"github.com/bboehmke/imagecached/imagecache/metrics"
)

// Func is the work a Group runs at most once per key.
type Func func(ctx context.Context) ([]byte, error)

// Group deduplicates concurrent Run calls sharing the same key.
type Group struct {
	mu    sync.Mutex
	calls map[string]*call
}

type call struct {
	wg     sync.WaitGroup
	val    []byte
	err    error
	refs   int
	cancel context.CancelFunc
}

// New creates an empty Group.
func New() *Group {
	return &Group{calls: make(map[string]*call)}
}

// Run executes fn at most once for a given key among all concurrent
// callers; every joiner observes the same (val, err). If ctx is
// cancelled while waiting, Run returns a Cancelled error to that caller
// only — the shared fetch keeps running for any remaining joiners, and
// is cancelled itself only once the last joiner's context departs.
func (g *Group) Run(ctx context.Context, key string, fn Func) ([]byte, error) {
	g.mu.Lock()
	if c, ok := g.calls[key]; ok {
		c.refs++
		g.mu.Unlock()
		return g.join(ctx, key, c)
	}

	callCtx, cancel := context.WithCancel(context.Background())
	c := &call{refs: 1, cancel: cancel}
	c.wg.Add(1)
	g.calls[key] = c
	g.mu.Unlock()
	metrics.InFlightGauge.Inc()

	go func() {
		c.val, c.err = fn(callCtx)
		g.mu.Lock()
		delete(g.calls, key)
		g.mu.Unlock()
		metrics.InFlightGauge.Dec()
		c.wg.Done()
	}()

	return g.join(ctx, key, c)
}

// join waits for c to resolve or for ctx to be cancelled first,
// decrementing c's refcount and cancelling its work if this was the
// last joiner.
func (g *Group) join(ctx context.Context, key string, c *call) ([]byte, error) {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return c.val, c.err
	case <-ctx.Done():
		g.mu.Lock()
		c.refs--
		last := c.refs <= 0
		g.mu.Unlock()
		if last {
			c.cancel()
		}
		return nil, cacheerr.Cancelled(ctx.Err())
	}
}

// Cancel cancels the context of the in-flight call for key, if any,
// regardless of how many joiners still hold it. Joiners then receive
// whatever error the shared fetch returns once it observes the
// cancellation. Prefetch cancellation does not go through Cancel: it
// cancels the prefetch job's own context and relies on the refcount.
func (g *Group) Cancel(key string) {
	g.mu.Lock()
	c, ok := g.calls[key]
	g.mu.Unlock()
	if ok {
		c.cancel()
	}
}

// CancelAll cancels every active call.
func (g *Group) CancelAll() {
	g.mu.Lock()
	calls := make([]*call, 0, len(g.calls))
	for _, c := range g.calls {
		calls = append(calls, c)
	}
	g.mu.Unlock()
	for _, c := range calls {
		c.cancel()
	}
}

// Len reports the number of in-flight calls (used by tests to assert
// the dedup-under-load invariant).
func (g *Group) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}
