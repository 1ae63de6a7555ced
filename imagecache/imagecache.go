// Package imagecache is the public face consumed by a view layer: Load,
// Prefetch, CancelPrefetch, Clear, Remove, ByteSize. View-layer concerns
// (placeholder/loading/error view builders, modifier chains, environment
// propagation) never reach this package; call-site configuration is an
// explicit LoadOptions value passed at each call instead.
package imagecache

import (
	"context"
	"sync"
	"time"

	"github.com/bboehmke/imagecached/imagecache/codec"
	"github.com/bboehmke/imagecached/imagecache/config"
	"github.com/bboehmke/imagecached/imagecache/diskcache"
	"github.com/bboehmke/imagecached/imagecache/downloader"
	"github.com/bboehmke/imagecached/imagecache/manager"
	"github.com/bboehmke/imagecached/imagecache/memcache"
)

// LoadOptions configures a single Load call. The zero value is NOT the
// recommended default (Go zero-values a bool to false, but the intended
// default has caching on) — use DefaultLoadOptions, the way
// http.Client's zero value is usable but http.DefaultClient is the
// documented starting point.
type LoadOptions struct {
	// CacheEnabled, when false, bypasses both cache tiers on the way in
	// (no Get lookup) and on the way out (no Put write-through).
	CacheEnabled bool

	// ReportProgress gates whether ProgressSink is invoked during the
	// download.
	ReportProgress bool
	ProgressSink   downloader.ProgressFunc

	// CacheOverride, if set, is used instead of the package-wide
	// default Manager for this call only.
	CacheOverride *manager.Manager
}

// DefaultLoadOptions returns the recommended defaults: caching on, no
// progress reporting, no override.
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{CacheEnabled: true}
}

var (
	defaultOnce    sync.Once
	defaultManager *manager.Manager
	defaultErr     error
)

// Default lazily builds the package-wide default Manager from
// config.Config zero-value defaults, the same way downloader.Default()
// offers a convenience shared instance while isolated instances remain
// constructible for tests.
func Default() (*manager.Manager, error) {
	defaultOnce.Do(func() {
		var cfg config.Config
		memCache := memcache.New(memcache.Config{
			MaxCost:  int64(cfg.Memory.MaxCost),
			MaxCount: cfg.Memory.MaxCount,
		})
		diskCache, err := diskcache.New(diskcache.Config{
			Directory:     orDefault(cfg.Disk.Directory, "ImageCache"),
			MaxBytes:      int64(orDefaultByteSize(cfg.Disk.MaxBytes, 100<<20)),
			MaxAge:        orDefaultDuration(cfg.Disk.MaxAge, 7*24*time.Hour),
			Quality:       orDefaultInt(cfg.Disk.Quality, codec.DefaultQuality),
			EnableLogging: true,
		})
		if err != nil {
			defaultErr = err
			return
		}
		dl := downloader.New(downloader.Config{EnableLogging: true})
		defaultManager = manager.New(memCache, diskCache, dl)
	})
	return defaultManager, defaultErr
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func orDefaultInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func orDefaultDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func orDefaultByteSize(v config.ByteSize, def int64) int64 {
	if v <= 0 {
		return def
	}
	return int64(v)
}

// Load is the primary entry point: return a cache hit immediately,
// otherwise download, write through, and return.
func Load(ctx context.Context, url string, opts LoadOptions) (*codec.Image, error) {
	m := opts.CacheOverride
	if m == nil {
		var err error
		m, err = Default()
		if err != nil {
			return nil, err
		}
	}

	var sink downloader.ProgressFunc
	if opts.ReportProgress {
		sink = opts.ProgressSink
	}

	if !opts.CacheEnabled {
		return m.LoadBypassCache(ctx, url, sink)
	}
	return m.Load(ctx, url, sink)
}

// Prefetch delegates to the default Manager.
func Prefetch(urls []string) error {
	m, err := Default()
	if err != nil {
		return err
	}
	m.Prefetch(urls)
	return nil
}

// CancelPrefetch delegates to the default Manager.
func CancelPrefetch(urls []string) error {
	m, err := Default()
	if err != nil {
		return err
	}
	m.CancelPrefetch(urls)
	return nil
}

// Clear delegates to the default Manager.
func Clear() error {
	m, err := Default()
	if err != nil {
		return err
	}
	return m.Clear()
}

// Remove delegates to the default Manager.
func Remove(url string) error {
	m, err := Default()
	if err != nil {
		return err
	}
	m.Remove(url)
	return nil
}

// ByteSize delegates to the default Manager.
func ByteSize() (int64, error) {
	m, err := Default()
	if err != nil {
		return 0, err
	}
	return m.ByteSize()
}
