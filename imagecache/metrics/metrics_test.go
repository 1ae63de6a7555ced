package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/bboehmke/imagecached/imagecache/metrics"
)

func TestRecordHitMiss_IncrementsLabeledCounter(t *testing.T) {
	before := testutil.ToFloat64(metrics.CacheRequestsTotal.WithLabelValues("memory", "hit"))
	metrics.RecordHit("memory")
	after := testutil.ToFloat64(metrics.CacheRequestsTotal.WithLabelValues("memory", "hit"))
	assert.Equal(t, before+1, after)
}

func TestRecordEviction_IncrementsLabeledCounter(t *testing.T) {
	before := testutil.ToFloat64(metrics.EvictionsTotal.WithLabelValues("disk", "ttl"))
	metrics.RecordEviction("disk", "ttl")
	after := testutil.ToFloat64(metrics.EvictionsTotal.WithLabelValues("disk", "ttl"))
	assert.Equal(t, before+1, after)
}
