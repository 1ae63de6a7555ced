package memcache_test

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bboehmke/imagecached/imagecache/codec"
	"github.com/bboehmke/imagecached/imagecache/fingerprint"
	"github.com/bboehmke/imagecached/imagecache/memcache"
)

func img(side int) *codec.Image {
	return codec.New(image.NewRGBA(image.Rect(0, 0, side, side)))
}

func TestCache_PutGet(t *testing.T) {
	c := memcache.New(memcache.Config{MaxCost: 1 << 20, MaxCount: 10})
	fp := fingerprint.Of("a")
	c.Put(fp, img(4))

	got, ok := c.Get(fp)
	assert.True(t, ok)
	assert.NotNil(t, got)
}

func TestCache_MissRecordsStats(t *testing.T) {
	c := memcache.New(memcache.Config{})
	_, ok := c.Get(fingerprint.Of("missing"))
	assert.False(t, ok)
	assert.EqualValues(t, 1, c.Stats().Misses)
}

func TestCache_Exists_DoesNotAffectLRUOrStats(t *testing.T) {
	c := memcache.New(memcache.Config{MaxCount: 2})
	fp := fingerprint.Of("a")
	c.Put(fp, img(4))

	assert.True(t, c.Exists(fp))
	assert.EqualValues(t, 0, c.Stats().Hits)
	assert.EqualValues(t, 0, c.Stats().Misses)

	// a stays the least-recently-used entry despite Exists, so it is the
	// one evicted when a third entry overflows MaxCount
	c.Put(fingerprint.Of("b"), img(4))
	assert.True(t, c.Exists(fp))
	c.Put(fingerprint.Of("c"), img(4))
	assert.False(t, c.Exists(fp))
}

// TestCache_StrictLRUEviction exercises the exact LRU ordering
// property: with MaxCount entries full, touching the oldest via Get keeps
// it alive while the true least-recently-used one is evicted next.
func TestCache_StrictLRUEviction(t *testing.T) {
	c := memcache.New(memcache.Config{MaxCost: 1 << 30, MaxCount: 2})
	fpA := fingerprint.Of("a")
	fpB := fingerprint.Of("b")
	fpC := fingerprint.Of("c")

	c.Put(fpA, img(4))
	c.Put(fpB, img(4))
	// touch a so b becomes the least-recently-used
	c.Get(fpA)
	c.Put(fpC, img(4))

	assert.True(t, c.Exists(fpA))
	assert.False(t, c.Exists(fpB))
	assert.True(t, c.Exists(fpC))
}

func TestCache_CostBoundedEviction(t *testing.T) {
	// each 4x4 RGBA image costs 4*4*4 = 64 bytes
	c := memcache.New(memcache.Config{MaxCost: 100, MaxCount: 1000})
	fpA := fingerprint.Of("a")
	fpB := fingerprint.Of("b")

	c.Put(fpA, img(4))
	c.Put(fpB, img(4))

	assert.False(t, c.Exists(fpA))
	assert.True(t, c.Exists(fpB))
}

func TestCache_OversizedSingleEntrySurvives(t *testing.T) {
	c := memcache.New(memcache.Config{MaxCost: 1, MaxCount: 1000})
	fp := fingerprint.Of("huge")
	c.Put(fp, img(64))

	assert.True(t, c.Exists(fp))
}

func TestCache_RemoveAndClear(t *testing.T) {
	c := memcache.New(memcache.Config{})
	fp := fingerprint.Of("a")
	c.Put(fp, img(4))

	c.Remove(fp)
	assert.False(t, c.Exists(fp))

	c.Put(fp, img(4))
	c.Clear()
	assert.False(t, c.Exists(fp))
}

func TestCache_PutOverwriteUpdatesCostAndRecency(t *testing.T) {
	c := memcache.New(memcache.Config{MaxCost: 1 << 20, MaxCount: 2})
	fp := fingerprint.Of("a")
	c.Put(fp, img(4))
	c.Put(fp, img(8)) // bigger image, same key

	got, ok := c.Get(fp)
	assert.True(t, ok)
	assert.EqualValues(t, 8*8*4, got.ByteCost())
}
