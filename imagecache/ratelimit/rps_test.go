package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/bboehmke/imagecached/imagecache/ratelimit"
)

func TestRPSLimiter_DisabledWhenZero(t *testing.T) {
	r := ratelimit.NewRPS(0, 0)
	start := time.Now()
	for i := 0; i < 5; i++ {
		assert.NoError(t, r.Wait(context.Background()))
	}
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestRPSLimiter_NilSafe(t *testing.T) {
	var r *ratelimit.RPSLimiter
	assert.NoError(t, r.Wait(context.Background()))
}

func TestRPSLimiter_LimitsRate(t *testing.T) {
	r := ratelimit.NewRPS(100, 1) // 1 burst, 100/s => ~10ms between grants
	ctx := context.Background()
	assert.NoError(t, r.Wait(ctx))
	start := time.Now()
	assert.NoError(t, r.Wait(ctx))
	assert.Greater(t, time.Since(start), 2*time.Millisecond)
}
