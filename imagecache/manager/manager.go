// Package manager implements CacheManager, the public face of the
// core: Memory -> Disk -> Downloader orchestration, promotion,
// write-through, and prefetch.
package manager

import (
	"context"

	"github.com/AdguardTeam/golibs/log"

	"github.com/bboehmke/imagecached/imagecache/codec"
	"github.com/bboehmke/imagecached/imagecache/diskcache"
	"github.com/bboehmke/imagecached/imagecache/downloader"
	"github.com/bboehmke/imagecached/imagecache/fingerprint"
	"github.com/bboehmke/imagecached/imagecache/memcache"
)

// Manager orchestrates the memory and disk tiers and the downloader. It
// exclusively owns its MemoryCache/DiskCache handles for its lifetime;
// the Downloader is shared by reference and may back multiple Managers.
type Manager struct {
	memory     *memcache.Cache
	disk       *diskcache.Cache
	downloader *downloader.Downloader

	enableLogging bool
}

// New constructs a Manager from already-configured tiers and a
// downloader. Callers typically build memory/disk/downloader from
// imagecache/config and wire them here once at startup.
func New(memory *memcache.Cache, disk *diskcache.Cache, dl *downloader.Downloader) *Manager {
	return &Manager{memory: memory, disk: disk, downloader: dl}
}

// Get returns a cached image if present in either tier, promoting a
// disk hit into memory before returning: promotion is ordered-before
// return, so a second caller arriving after this one returns will see
// the memory hit.
func (m *Manager) Get(url string) (*codec.Image, bool) {
	fp := fingerprint.Of(url)

	if img, ok := m.memory.Get(fp); ok {
		return img, true
	}
	if img, ok := m.disk.Get(fp); ok {
		m.memory.Put(fp, img)
		return img, true
	}
	return nil, false
}

// Put writes img through to both tiers. A disk write failure is
// swallowed (logged, not returned): caching is an optimization, not a
// correctness condition.
func (m *Manager) Put(url string, img *codec.Image) {
	fp := fingerprint.Of(url)
	m.memory.Put(fp, img)
	if err := m.disk.Put(fp, img); err != nil {
		log.Info("manager: disk write-through failed for %s: %v", url, err)
	}
}

// Remove deletes url from both tiers.
func (m *Manager) Remove(url string) {
	fp := fingerprint.Of(url)
	m.memory.Remove(fp)
	m.disk.Remove(fp)
}

// Clear empties both tiers.
func (m *Manager) Clear() error {
	m.memory.Clear()
	return m.disk.Clear()
}

// ByteSize returns the disk tier's measured size; memory is volatile
// and excluded.
func (m *Manager) ByteSize() (int64, error) {
	return m.disk.ByteSize()
}

// Load is the primary entry point: return a cached hit immediately,
// otherwise fetch via the downloader and write the result through to
// both tiers before returning it.
func (m *Manager) Load(ctx context.Context, url string, sink downloader.ProgressFunc) (*codec.Image, error) {
	if img, ok := m.Get(url); ok {
		return img, nil
	}

	img, err := m.downloader.LoadImage(ctx, url, sink)
	if err != nil {
		return nil, err
	}
	m.Put(url, img)
	return img, nil
}

// Prefetch delegates to the downloader, but routes every successful
// result through Put so prefetched images land in both cache tiers.
func (m *Manager) Prefetch(urls []string) {
	m.downloader.Prefetch(urls, m.Put)
}

// CancelPrefetch delegates to the downloader.
func (m *Manager) CancelPrefetch(urls []string) {
	m.downloader.CancelPrefetch(urls)
}

// LoadBypassCache fetches url directly through the downloader without
// consulting or writing either cache tier: the CacheEnabled=false path
// of the external Load contract, bypassing both caches on the way in
// and on the way out.
func (m *Manager) LoadBypassCache(ctx context.Context, url string, sink downloader.ProgressFunc) (*codec.Image, error) {
	return m.downloader.LoadImage(ctx, url, sink)
}
