package ratelimit_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/bboehmke/imagecached/imagecache/ratelimit"
)

func TestLimiter_BoundsConcurrency(t *testing.T) {
	l := ratelimit.New(2)
	var current, max atomic.Int32

	run := func() {
		release, err := l.Acquire(context.Background())
		if err != nil {
			return
		}
		defer release()

		n := current.Add(1)
		for {
			m := max.Load()
			if n <= m || max.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		current.Add(-1)
	}

	done := make(chan struct{})
	for i := 0; i < 6; i++ {
		go func() {
			run()
			done <- struct{}{}
		}()
	}
	for i := 0; i < 6; i++ {
		<-done
	}

	assert.LessOrEqual(t, max.Load(), int32(2))
}

func TestLimiter_AcquireRespectsCancellation(t *testing.T) {
	l := ratelimit.New(1)
	release, err := l.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx)
	assert.Error(t, err)
}

func TestWithLimit_ReturnsOpResult(t *testing.T) {
	l := ratelimit.New(1)
	got, err := ratelimit.WithLimit(context.Background(), l, func(ctx context.Context) (int, error) {
		return 42, nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 42, got)
}
