// Package prefetch tracks background prefetch jobs so they can be
// individually cancelled. A tracked handle is a context.CancelFunc for
// that job's own context — cancelling it only unblocks that job's wait
// on the shared dedup.Group call (dedup.Group's refcounting then
// decides whether the underlying fetch itself stops), never a
// concurrent foreground joiner on the same fingerprint.
package prefetch

import (
	"sync"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/bboehmke/imagecached/imagecache/fingerprint"
)

// recentlyDoneTTL bounds how long a finished job's fingerprint is
// remembered in recent, below.
const recentlyDoneTTL = 30 * time.Second

// Handle identifies one tracked job and cancels it.
type Handle struct {
	ID     uuid.UUID
	Cancel func()
}

// Registry maps fingerprint -> active job handle. Operations are
// internally serialized.
//
// recent is a short-TTL shadow index of fingerprints whose prefetch job
// completed successfully a moment ago: Prefetch callers that re-request
// the same URL seconds after a prior prefetch (a common repeated-scroll
// pattern) can skip spawning a redundant job via WasRecentlyFetched.
// patrickmn/go-cache's own janitor goroutine expires entries without
// the Registry needing a sweep of its own.
type Registry struct {
	mu     sync.Mutex
	jobs   map[fingerprint.Fingerprint]Handle
	recent *gocache.Cache
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		jobs:   make(map[fingerprint.Fingerprint]Handle),
		recent: gocache.New(recentlyDoneTTL, recentlyDoneTTL/2),
	}
}

// WasRecentlyFetched reports whether fp's prefetch job completed
// successfully within the last recentlyDoneTTL.
func (r *Registry) WasRecentlyFetched(fp fingerprint.Fingerprint) bool {
	_, ok := r.recent.Get(fp.String())
	return ok
}

// MarkFetched records fp as recently completed.
func (r *Registry) MarkFetched(fp fingerprint.Fingerprint) {
	r.recent.SetDefault(fp.String(), struct{}{})
}

// Add registers a cancel func for fp, replacing any existing entry
// (the previous job, if still running, is left alone — callers cancel
// explicitly before replacing if that's what they want).
func (r *Registry) Add(fp fingerprint.Fingerprint, cancel func()) Handle {
	h := Handle{ID: uuid.New(), Cancel: cancel}
	r.mu.Lock()
	r.jobs[fp] = h
	r.mu.Unlock()
	return h
}

// Remove drops fp's entry without cancelling it (used when a job
// completes on its own).
func (r *Registry) Remove(fp fingerprint.Fingerprint) {
	r.mu.Lock()
	delete(r.jobs, fp)
	r.mu.Unlock()
}

// RemoveIf drops fp's entry only if its handle ID still matches id,
// guarding against a newer prefetch for the same fingerprint being
// dropped by an older job's completion race.
func (r *Registry) RemoveIf(fp fingerprint.Fingerprint, id uuid.UUID) {
	r.mu.Lock()
	if h, ok := r.jobs[fp]; ok && h.ID == id {
		delete(r.jobs, fp)
	}
	r.mu.Unlock()
}

// Cancel cancels and removes fp's job, if tracked.
func (r *Registry) Cancel(fp fingerprint.Fingerprint) {
	r.mu.Lock()
	h, ok := r.jobs[fp]
	delete(r.jobs, fp)
	r.mu.Unlock()
	if ok {
		h.Cancel()
	}
}

// CancelAll cancels and removes every tracked job.
func (r *Registry) CancelAll() {
	r.mu.Lock()
	handles := make([]Handle, 0, len(r.jobs))
	for _, h := range r.jobs {
		handles = append(handles, h)
	}
	r.jobs = make(map[fingerprint.Fingerprint]Handle)
	r.mu.Unlock()
	for _, h := range handles {
		h.Cancel()
	}
}

// Len reports how many jobs are currently tracked.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}
