package diskcache_test

import (
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bboehmke/imagecached/imagecache/codec"
	"github.com/bboehmke/imagecached/imagecache/diskcache"
	"github.com/bboehmke/imagecached/imagecache/fingerprint"
)

func newImg(side int) *codec.Image {
	return codec.New(image.NewRGBA(image.Rect(0, 0, side, side)))
}

func newCache(t *testing.T, cfg diskcache.Config) *diskcache.Cache {
	t.Helper()
	if cfg.Directory == "" {
		cfg.Directory = filepath.Join(t.TempDir(), "cache")
	}
	c, err := diskcache.New(cfg)
	require.NoError(t, err)
	return c
}

func TestCache_PutGet(t *testing.T) {
	c := newCache(t, diskcache.Config{})
	fp := fingerprint.Of("a")
	require.NoError(t, c.Put(fp, newImg(8)))

	img, ok := c.Get(fp)
	assert.True(t, ok)
	assert.NotNil(t, img)
}

func TestCache_Miss(t *testing.T) {
	c := newCache(t, diskcache.Config{})
	_, ok := c.Get(fingerprint.Of("missing"))
	assert.False(t, ok)
}

func TestCache_TTLExpiry(t *testing.T) {
	c := newCache(t, diskcache.Config{MaxAge: time.Millisecond})
	fp := fingerprint.Of("a")
	require.NoError(t, c.Put(fp, newImg(8)))

	time.Sleep(5 * time.Millisecond)
	_, ok := c.Get(fp)
	assert.False(t, ok)
}

func TestCache_ZeroMaxAgeDisablesExpiry(t *testing.T) {
	c := newCache(t, diskcache.Config{MaxAge: 0})
	fp := fingerprint.Of("a")
	require.NoError(t, c.Put(fp, newImg(8)))

	time.Sleep(5 * time.Millisecond)
	_, ok := c.Get(fp)
	assert.True(t, ok)
}

func TestCache_CorruptFileRemovedOnRead(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	c, err := diskcache.New(diskcache.Config{Directory: dir})
	require.NoError(t, err)

	fp := fingerprint.Of("a")
	require.NoError(t, c.Put(fp, newImg(8)))

	// corrupt the blob on disk directly, then read it back through the
	// same instance
	corruptPath := filepath.Join(dir, fp.String()+".img")
	require.NoError(t, os.WriteFile(corruptPath, []byte("not a jpeg"), 0o644))

	_, ok := c.Get(fp)
	assert.False(t, ok)

	// the corrupt blob should now be gone
	_, err = os.Stat(corruptPath)
	assert.Error(t, err)
}

func TestCache_ByteBoundedEviction(t *testing.T) {
	// room for exactly one encoded blob: the second put must evict the first
	blob, err := newImg(8).Encode(codec.DefaultQuality)
	require.NoError(t, err)
	c := newCache(t, diskcache.Config{MaxBytes: int64(len(blob))})
	fpA := fingerprint.Of("a")
	fpB := fingerprint.Of("b")

	require.NoError(t, c.Put(fpA, newImg(8)))
	require.NoError(t, c.Put(fpB, newImg(8)))

	_, okA := c.Get(fpA)
	_, okB := c.Get(fpB)
	assert.False(t, okA)
	assert.True(t, okB)
}

func TestCache_RemoveAndClear(t *testing.T) {
	c := newCache(t, diskcache.Config{})
	fp := fingerprint.Of("a")
	require.NoError(t, c.Put(fp, newImg(8)))

	c.Remove(fp)
	_, ok := c.Get(fp)
	assert.False(t, ok)

	require.NoError(t, c.Put(fp, newImg(8)))
	require.NoError(t, c.Clear())
	_, ok = c.Get(fp)
	assert.False(t, ok)
}

func TestCache_ByteSizeExcludesSidecars(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	c := newCache(t, diskcache.Config{Directory: dir})
	fp := fingerprint.Of("a")
	require.NoError(t, c.Put(fp, newImg(8)))

	size, err := c.ByteSize()
	require.NoError(t, err)
	assert.Greater(t, size, int64(0))

	// the sidecar JSON files exist too, but only the blob is counted
	info, err := os.Stat(filepath.Join(dir, fp.String()+".img"))
	require.NoError(t, err)
	assert.Equal(t, info.Size(), size)
}

func TestCache_MetadataSurvivesReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	c1, err := diskcache.New(diskcache.Config{Directory: dir})
	require.NoError(t, err)
	fp := fingerprint.Of("a")
	require.NoError(t, c1.Put(fp, newImg(8)))

	c2, err := diskcache.New(diskcache.Config{Directory: dir})
	require.NoError(t, err)
	_, ok := c2.Get(fp)
	assert.True(t, ok)
}
