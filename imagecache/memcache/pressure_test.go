package memcache_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bboehmke/imagecached/imagecache/fingerprint"
	"github.com/bboehmke/imagecached/imagecache/memcache"
)

func TestNotifier_NotifyFiresSubscribers(t *testing.T) {
	n := memcache.NewNotifier()
	fired := 0
	n.Subscribe(func() { fired++ })
	n.Subscribe(func() { fired++ })

	n.Notify()
	assert.Equal(t, 2, fired)
}

func TestNotifier_Unsubscribe(t *testing.T) {
	n := memcache.NewNotifier()
	fired := false
	sub := n.Subscribe(func() { fired = true })
	sub.Unsubscribe()

	n.Notify()
	assert.False(t, fired)
}

func TestCache_SubscribeToPressure_ClearsOnNotify(t *testing.T) {
	n := memcache.NewNotifier()
	c := memcache.New(memcache.Config{})
	fp := fingerprint.Of("a")
	c.Put(fp, img(4))

	c.SubscribeToPressure(n)
	n.Notify()

	assert.False(t, c.Exists(fp))
}
