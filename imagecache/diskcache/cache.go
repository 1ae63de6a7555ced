// Package diskcache implements the persistent, content-addressed,
// LRU+TTL bounded byte store. It survives restarts by keeping two JSON
// sidecar files of access/creation timestamps next to the cached
// blobs, in a flat, metadata-file layout rather than per-host
// subdirectories, and evicts by recorded access time rather than
// filesystem atime (which mount options can disable).
package diskcache

import (
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/AdguardTeam/golibs/log"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"

	"github.com/bboehmke/imagecached/imagecache/codec"
	"github.com/bboehmke/imagecached/imagecache/fingerprint"
	"github.com/bboehmke/imagecached/imagecache/metrics"
	"github.com/bboehmke/imagecached/imagecache/stats"
)

const (
	defaultDirName  = "ImageCache"
	defaultMaxBytes = 100 << 20
	defaultMaxAge   = 7 * 24 * time.Hour
	defaultQuality  = codec.DefaultQuality

	accessTimesFile   = "access_times.json"
	creationTimesFile = "creation_times.json"
	imageExt          = ".img"
)

// Config configures a Cache. Zero values fall back to the package
// defaults above, except MaxAge: MaxAge == 0 disables TTL expiry, and a
// negative MaxAge selects the 7-day default.
type Config struct {
	Directory     string // subdirectory of the process cache root; absolute paths are used as-is
	MaxBytes      int64
	MaxAge        time.Duration
	Quality       int // 1-100
	EnableLogging bool
}

// Cache is a persistent byte store for encoded images, bounded by total
// size (LRU eviction) and optionally by age (TTL expiry). All public
// operations are serialized behind a single mutex: there is one
// logical owner of the metadata state per instance, not fine-grained
// concurrency within it.
type Cache struct {
	mu      sync.Mutex
	dir     string
	quality int

	maxBytes int64
	maxAge   time.Duration

	accessTimes   map[fingerprint.Fingerprint]time.Time
	creationTimes map[fingerprint.Fingerprint]time.Time

	enableLogging bool
	stats         stats.Counters
}

// New constructs a Cache rooted at cfg.Directory (created if absent),
// loads existing metadata (corrupt or missing files are treated as
// empty), and schedules an asynchronous RemoveExpired pass at startup.
func New(cfg Config) (*Cache, error) {
	dir := cfg.Directory
	if dir == "" {
		dir = defaultDirName
	}
	if !filepath.IsAbs(dir) {
		if root, err := os.UserCacheDir(); err == nil {
			dir = filepath.Join(root, dir)
		}
	}
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	quality := cfg.Quality
	if quality <= 0 {
		quality = defaultQuality
	}
	maxAge := cfg.MaxAge
	if maxAge < 0 {
		maxAge = defaultMaxAge
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "diskcache: create directory")
	}

	c := &Cache{
		dir:           dir,
		quality:       quality,
		maxBytes:      maxBytes,
		maxAge:        maxAge,
		enableLogging: cfg.EnableLogging,
	}
	c.accessTimes = c.loadTimes(accessTimesFile)
	c.creationTimes = c.loadTimes(creationTimesFile)

	go c.RemoveExpired()

	return c, nil
}

// Get returns the decoded image for fp, or a miss. TTL expiry,
// read-I/O errors, and decode failures are all surfaced as misses;
// a decode failure also deletes the corrupt blob.
func (c *Cache) Get(fp fingerprint.Fingerprint) (*codec.Image, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.maxAge > 0 {
		created, ok := c.creationTimes[fp]
		if ok && time.Since(created) > c.maxAge {
			c.removeLocked(fp)
			c.persistTimesLocked()
			c.stats.RecordMiss()
			metrics.RecordMiss("disk")
			return nil, false
		}
	}

	data, err := os.ReadFile(c.path(fp))
	if err != nil {
		c.stats.RecordMiss()
		metrics.RecordMiss("disk")
		return nil, false
	}

	img, err := codec.Decode(data)
	if err != nil {
		c.logf("diskcache CORRUPT: removing %s: %v", fp, err)
		c.removeLocked(fp)
		c.persistTimesLocked()
		c.stats.RecordMiss()
		metrics.RecordMiss("disk")
		return nil, false
	}

	c.accessTimes[fp] = time.Now()
	c.persistTimesLocked()
	c.stats.RecordHit()
	metrics.RecordHit("disk")
	return img, true
}

// Put encodes img to bytes at the configured quality and writes it
// atomically, then refreshes both timestamps and runs eviction. Write
// failures are returned to the caller as a recoverable error: callers
// may proceed with the in-memory result regardless.
func (c *Cache) Put(fp fingerprint.Fingerprint, img *codec.Image) error {
	data, err := img.Encode(c.quality)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := writeFileAtomic(c.path(fp), data); err != nil {
		return errors.Wrap(err, "diskcache: write")
	}

	now := time.Now()
	c.creationTimes[fp] = now
	c.accessTimes[fp] = now
	c.persistTimesLocked()

	c.evictIfNeededLocked()
	return nil
}

// Remove deletes fp's blob and metadata entries, if present.
func (c *Cache) Remove(fp fingerprint.Fingerprint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(fp)
	c.persistTimesLocked()
}

// Clear removes the entire cache directory subtree and recreates it
// empty.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.RemoveAll(c.dir); err != nil {
		return errors.Wrap(err, "diskcache: clear")
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return errors.Wrap(err, "diskcache: recreate directory")
	}
	c.accessTimes = make(map[fingerprint.Fingerprint]time.Time)
	c.creationTimes = make(map[fingerprint.Fingerprint]time.Time)
	c.persistTimesLocked()
	return nil
}

// RemoveExpired deletes every entry whose age exceeds MaxAge. It is
// run once asynchronously at construction and may also be invoked by a
// caller-driven housekeeping loop.
func (c *Cache) RemoveExpired() {
	if c.maxAge <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	var expired []fingerprint.Fingerprint
	for fp, created := range c.creationTimes {
		if now.Sub(created) > c.maxAge {
			expired = append(expired, fp)
		}
	}
	for _, fp := range expired {
		c.removeLocked(fp)
		metrics.RecordEviction("disk", "ttl")
	}
	if len(expired) > 0 {
		c.persistTimesLocked()
		c.logf("diskcache: removed %d expired entries", len(expired))
	}
}

// ByteSize sums the size of .img blobs only, excluding metadata
// sidecars.
func (c *Cache) ByteSize() (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.measureLocked()
}

// Stats returns a consistent snapshot of hit/miss counters.
func (c *Cache) Stats() stats.Snapshot {
	return c.stats.Snapshot()
}

// evictIfNeededLocked evicts least-recently-accessed entries until the
// directory is back under maxBytes. Must be called with c.mu held.
func (c *Cache) evictIfNeededLocked() {
	total, err := c.measureLocked()
	if err != nil {
		c.logf("diskcache: size measurement failed: %v", err)
		return
	}
	if total <= c.maxBytes {
		return
	}

	type keyed struct {
		fp     fingerprint.Fingerprint
		access time.Time
	}
	keys := make([]keyed, 0, len(c.accessTimes))
	for fp, at := range c.accessTimes {
		keys = append(keys, keyed{fp: fp, access: at})
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].access.Equal(keys[j].access) {
			return keys[i].fp < keys[j].fp
		}
		return keys[i].access.Before(keys[j].access)
	})

	for _, k := range keys {
		if total <= c.maxBytes {
			break
		}
		info, err := os.Stat(c.path(k.fp))
		if err != nil {
			c.removeLocked(k.fp)
			continue
		}
		total -= info.Size()
		c.logf("diskcache EVICT: %s (%s)", k.fp, humanize.IBytes(uint64(info.Size())))
		c.removeLocked(k.fp)
		metrics.RecordEviction("disk", "lru")
	}
	c.persistTimesLocked()
	metrics.DiskBytesGauge.Set(float64(total))
}

// measureLocked must be called with c.mu held.
func (c *Cache) measureLocked() (int64, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != imageExt {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		total += info.Size()
	}
	return total, nil
}

// removeLocked deletes fp's blob and metadata entries. Must be called
// with c.mu held; caller is responsible for persisting metadata
// afterward.
func (c *Cache) removeLocked(fp fingerprint.Fingerprint) {
	_ = os.Remove(c.path(fp))
	delete(c.accessTimes, fp)
	delete(c.creationTimes, fp)
}

func (c *Cache) path(fp fingerprint.Fingerprint) string {
	return filepath.Join(c.dir, fp.String()+imageExt)
}

func (c *Cache) logf(format string, args ...any) {
	if c.enableLogging {
		log.Info(format, args...)
	}
}
