// Package downloader fetches image bytes over HTTP with retry/backoff,
// progress streaming, and composition with the dedup and ratelimit
// packages.
package downloader

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/AdguardTeam/golibs/log"
	"golang.org/x/sync/errgroup"

	"github.com/bboehmke/imagecached/imagecache/cacheerr"
	"github.com/bboehmke/imagecached/imagecache/codec"
	"github.com/bboehmke/imagecached/imagecache/dedup"
	"github.com/bboehmke/imagecached/imagecache/fingerprint"
	"github.com/bboehmke/imagecached/imagecache/metrics"
	"github.com/bboehmke/imagecached/imagecache/prefetch"
	"github.com/bboehmke/imagecached/imagecache/ratelimit"
)

// ProgressFunc receives monotonic non-decreasing progress in [0.0, 1.0].
// It is never called after LoadImage returns or errors, and may be nil.
type ProgressFunc func(progress float64)

const (
	DefaultMaxRetries = 3
	DefaultRetryDelay = 500 * time.Millisecond
	DefaultTimeout    = 30 * time.Second
)

// Config configures a Downloader. Zero values fall back to package
// defaults.
type Config struct {
	MaxRetries    int
	RetryDelay    time.Duration
	Timeout       time.Duration
	Headers       map[string]string
	MaxConcurrent int
	RPS           float64 // 0 disables the rate limiter
	EnableLogging bool
}

// Downloader fetches image bytes for URLs, deduplicating concurrent
// identical requests and bounding concurrency and (optionally) request
// start rate.
type Downloader struct {
	client *http.Client

	maxRetries int
	retryDelay time.Duration
	timeout    time.Duration
	headers    map[string]string

	dedup     *dedup.Group
	limiter   *ratelimit.Limiter
	rps       *ratelimit.RPSLimiter
	prefetch  *prefetch.Registry

	enableLogging bool
}

// New constructs an isolated Downloader. Process-wide shared instances
// are still supported via Default(), the way a library can offer one
// for convenience while keeping instances constructible for tests.
func New(cfg Config) *Downloader {
	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = DefaultMaxRetries
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = DefaultRetryDelay
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = ratelimit.DefaultMaxConcurrent
	}

	return &Downloader{
		client:        &http.Client{},
		maxRetries:    maxRetries,
		retryDelay:    retryDelay,
		timeout:       timeout,
		headers:       cfg.Headers,
		dedup:         dedup.New(),
		limiter:       ratelimit.New(maxConcurrent),
		rps:           ratelimit.NewRPS(cfg.RPS, maxConcurrent),
		prefetch:      prefetch.New(),
		enableLogging: cfg.EnableLogging,
	}
}

var defaultDownloader = New(Config{})

// Default returns the process-wide shared Downloader.
func Default() *Downloader { return defaultDownloader }

// LoadImage fetches, decodes, and returns the image at url. Concurrent
// callers for the same url share a single underlying fetch
// (imagecache/dedup); decoding runs off the caller's goroutine
// (decodeInBackground) so a slow decode never blocks whoever else is
// driving this call's scheduling loop.
func (d *Downloader) LoadImage(ctx context.Context, url string, sink ProgressFunc) (*codec.Image, error) {
	fp := fingerprint.Of(url)

	if sink != nil {
		// The shared fetch may outlive this call (another joiner still
		// waiting), so stop forwarding progress once LoadImage returns.
		var mu sync.Mutex
		returned := false
		defer func() {
			mu.Lock()
			returned = true
			mu.Unlock()
		}()
		inner := sink
		sink = func(p float64) {
			mu.Lock()
			defer mu.Unlock()
			if !returned {
				inner(p)
			}
		}
	}

	data, err := d.dedup.Run(ctx, fp.String(), func(ctx context.Context) ([]byte, error) {
		release, err := d.limiter.Acquire(ctx)
		if err != nil {
			return nil, cacheerr.Cancelled(err)
		}
		defer release()

		if err := d.rps.Wait(ctx); err != nil {
			return nil, cacheerr.Cancelled(err)
		}

		return d.downloadBytes(ctx, url, sink)
	})
	if err != nil {
		return nil, err
	}

	return decodeInBackground(ctx, data)
}

// decodeInBackground runs codec.Decode on a worker goroutine, returning
// early if ctx is cancelled first. No platform-specific thread pool is
// needed since Go's scheduler already multiplexes goroutines onto OS
// threads for CPU-bound work like this.
func decodeInBackground(ctx context.Context, data []byte) (*codec.Image, error) {
	type result struct {
		img *codec.Image
		err error
	}
	ch := make(chan result, 1)
	go func() {
		img, err := codec.Decode(data)
		ch <- result{img: img, err: err}
	}()

	select {
	case r := <-ch:
		return r.img, r.err
	case <-ctx.Done():
		return nil, cacheerr.Cancelled(ctx.Err())
	}
}

// Prefetch spawns one detached, background-priority job per URL that
// loads and discards the image's bytes through the full pipeline
// (caching happens in whatever caller wired a CacheManager around this
// Downloader — see imagecache/manager). Errors are silently dropped.
// onResult, if non-nil, is invoked with each successfully fetched image
// so the manager can write it through to both cache tiers.
func (d *Downloader) Prefetch(urls []string, onResult func(url string, img *codec.Image)) {
	for _, url := range urls {
		url := url
		fp := fingerprint.Of(url)

		if d.prefetch.WasRecentlyFetched(fp) {
			if d.enableLogging {
				log.Debug("prefetch: skipping %s, fetched moments ago", url)
			}
			continue
		}

		ctx, cancel := context.WithCancel(context.Background())
		handle := d.prefetch.Add(fp, cancel)
		metrics.PrefetchJobsGauge.Set(float64(d.prefetch.Len()))

		go func() {
			defer func() {
				d.prefetch.RemoveIf(fp, handle.ID)
				metrics.PrefetchJobsGauge.Set(float64(d.prefetch.Len()))
			}()
			img, err := d.LoadImage(ctx, url, nil)
			if err != nil {
				if d.enableLogging {
					log.Debug("prefetch: dropped error for %s: %v", url, err)
				}
				return
			}
			d.prefetch.MarkFetched(fp)
			if onResult != nil {
				onResult(url, img)
			}
		}()
	}
}

// CancelPrefetch cancels and untracks each URL's prefetch job, if still
// running. It never cancels a concurrent foreground LoadImage on the
// same fingerprint: see imagecache/dedup's refcounted cancellation.
func (d *Downloader) CancelPrefetch(urls []string) {
	for _, url := range urls {
		d.prefetch.Cancel(fingerprint.Of(url))
	}
}

// PrefetchCount reports how many prefetch jobs are currently tracked
// (test/introspection helper).
func (d *Downloader) PrefetchCount() int {
	return d.prefetch.Len()
}

// PrefetchAndWait is a supplement to the fire-and-forget Prefetch: it
// loads every URL concurrently (one golang.org/x/sync/errgroup goroutine
// per URL; the downloads themselves are bounded by MaxConcurrent through
// the Downloader's concurrency limiter) and blocks until all finish,
// for callers that want a warm-cache-before-serving startup path rather
// than untracked background jobs. Unlike Prefetch, errors are not
// silently dropped — the caller asked to wait, so it gets to know.
func (d *Downloader) PrefetchAndWait(ctx context.Context, urls []string, onResult func(url string, img *codec.Image)) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, len(urls)))
	for _, url := range urls {
		url := url
		g.Go(func() error {
			img, err := d.LoadImage(ctx, url, nil)
			if err != nil {
				return err
			}
			if onResult != nil {
				onResult(url, img)
			}
			return nil
		})
	}
	return g.Wait()
}
