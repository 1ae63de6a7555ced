// Package memcache implements the bounded-cost, bounded-count, strict-LRU
// in-memory tier of the image cache.
//
// NSCache-style in-memory caches leave eviction order unspecified; this
// implementation instead chooses strict last-access-order LRU via
// container/list, since callers need to reason about exact LRU
// ordering when tuning cost/count bounds.
package memcache

import (
	"container/list"
	"sync"

	"github.com/AdguardTeam/golibs/log"

	"github.com/bboehmke/imagecached/imagecache/codec"
	"github.com/bboehmke/imagecached/imagecache/fingerprint"
	"github.com/bboehmke/imagecached/imagecache/metrics"
	"github.com/bboehmke/imagecached/imagecache/stats"
)

// Config configures a Cache. Zero values fall back to package defaults.
type Config struct {
	MaxCost  int64 // bytes; default 50 MiB
	MaxCount int   // default 100
}

const (
	defaultMaxCost  = 50 << 20
	defaultMaxCount = 100
)

// Cache is a bounded-cost, bounded-count, strict-LRU cache of decoded
// images, safe for concurrent use.
type Cache struct {
	mu       sync.Mutex
	ll       *list.List // front = most recently used
	items    map[fingerprint.Fingerprint]*list.Element
	cost     int64
	maxCost  int64
	maxCount int

	stats stats.Counters
}

type entry struct {
	fp    fingerprint.Fingerprint
	image *codec.Image
	cost  int64
}

// New creates a Cache with the given config, applying defaults for zero
// fields.
func New(cfg Config) *Cache {
	if cfg.MaxCost <= 0 {
		cfg.MaxCost = defaultMaxCost
	}
	if cfg.MaxCount <= 0 {
		cfg.MaxCount = defaultMaxCount
	}
	return &Cache{
		ll:       list.New(),
		items:    make(map[fingerprint.Fingerprint]*list.Element),
		maxCost:  cfg.MaxCost,
		maxCount: cfg.MaxCount,
	}
}

// Get returns the cached image for fp, refreshing its LRU recency and
// recording a hit or miss in Stats.
func (c *Cache) Get(fp fingerprint.Fingerprint) (*codec.Image, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[fp]
	if !ok {
		c.stats.RecordMiss()
		metrics.RecordMiss("memory")
		return nil, false
	}
	c.ll.MoveToFront(el)
	c.stats.RecordHit()
	metrics.RecordHit("memory")
	return el.Value.(*entry).image, true
}

// Exists reports whether fp is present, without affecting Stats or LRU
// order.
func (c *Cache) Exists(fp fingerprint.Fingerprint) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[fp]
	return ok
}

// Put inserts img under fp, evicting least-recently-used entries until
// both the cost and count bounds hold. An image costing more than
// maxCost still ends up as the cache's sole occupant: accepting the
// oversized entry is simpler than refusing the insert outright.
func (c *Cache) Put(fp fingerprint.Fingerprint, img *codec.Image) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cost := img.ByteCost()
	if el, ok := c.items[fp]; ok {
		old := el.Value.(*entry)
		c.cost -= old.cost
		old.image = img
		old.cost = cost
		c.cost += cost
		c.ll.MoveToFront(el)
	} else {
		el := c.ll.PushFront(&entry{fp: fp, image: img, cost: cost})
		c.items[fp] = el
		c.cost += cost
	}

	for (c.cost > c.maxCost || c.ll.Len() > c.maxCount) && c.ll.Len() > 1 {
		oldest := c.ll.Back()
		c.removeElement(oldest)
		metrics.RecordEviction("memory", "lru")
	}
}

// Remove unconditionally evicts fp, if present.
func (c *Cache) Remove(fp fingerprint.Fingerprint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[fp]; ok {
		c.removeElement(el)
	}
}

// Clear empties the cache. Called directly, or via the process-wide
// memory-pressure Notifier (pressure.go).
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ll.Init()
	c.items = make(map[fingerprint.Fingerprint]*list.Element)
	c.cost = 0
	log.Debug("memcache: cleared")
}

// Stats returns a consistent snapshot of hit/miss counters.
func (c *Cache) Stats() stats.Snapshot {
	return c.stats.Snapshot()
}

// removeElement must be called with c.mu held.
func (c *Cache) removeElement(el *list.Element) {
	e := el.Value.(*entry)
	c.ll.Remove(el)
	delete(c.items, e.fp)
	c.cost -= e.cost
}
