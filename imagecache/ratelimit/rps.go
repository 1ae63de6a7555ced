package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// RPSLimiter optionally caps the rate of new request starts, composed
// alongside the concurrency Limiter in Downloader. rclone's cache
// backend carries the same pairing (a worker-count limit plus a
// requests-per-second knob, DefCacheRps) for exactly the same reason:
// concurrency bounds how many fetches run at once, rate bounds how fast
// new ones may begin even when slots are free.
type RPSLimiter struct {
	limiter *rate.Limiter
}

// NewRPS creates an RPSLimiter allowing rps requests per second with
// bursting up to burst. rps<=0 means unlimited (nil limiter).
func NewRPS(rps float64, burst int) *RPSLimiter {
	if rps <= 0 {
		return &RPSLimiter{}
	}
	if burst <= 0 {
		burst = 1
	}
	return &RPSLimiter{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Wait blocks until the rate limiter admits a new request, or ctx is
// cancelled. A nil/unlimited RPSLimiter returns immediately.
func (r *RPSLimiter) Wait(ctx context.Context) error {
	if r == nil || r.limiter == nil {
		return nil
	}
	return r.limiter.Wait(ctx)
}
