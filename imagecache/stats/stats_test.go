package stats_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bboehmke/imagecached/imagecache/stats"
)

func TestCounters_RecordAndSnapshot(t *testing.T) {
	var c stats.Counters
	c.RecordHit()
	c.RecordHit()
	c.RecordMiss()

	snap := c.Snapshot()
	assert.EqualValues(t, 2, snap.Hits)
	assert.EqualValues(t, 1, snap.Misses)
	assert.EqualValues(t, 3, snap.Total())
	assert.False(t, snap.StartedAt.IsZero())
}

func TestCounters_Reset(t *testing.T) {
	var c stats.Counters
	c.RecordHit()
	c.RecordMiss()
	c.Reset()

	snap := c.Snapshot()
	assert.EqualValues(t, 0, snap.Hits)
	assert.EqualValues(t, 0, snap.Misses)
}

func TestCounters_StartedAtStableAcrossCalls(t *testing.T) {
	var c stats.Counters
	c.RecordHit()
	first := c.Snapshot().StartedAt
	c.RecordHit()
	second := c.Snapshot().StartedAt
	assert.Equal(t, first, second)
}
