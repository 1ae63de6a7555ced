package downloader

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/AdguardTeam/golibs/log"

	"github.com/bboehmke/imagecached/imagecache/cacheerr"
	"github.com/bboehmke/imagecached/imagecache/metrics"
)

// downloadBytes runs the retry loop: up to maxRetries additional
// attempts beyond the first, exponential backoff (retryDelay *
// 2^attempt), and immediate non-retryable failure on a 4xx status
// outside {408, 429}.
func (d *Downloader) downloadBytes(ctx context.Context, url string, sink ProgressFunc) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= d.maxRetries; attempt++ {
		data, err := d.attempt(ctx, url, sink)
		if err == nil {
			return data, nil
		}

		var invResp *cacheerr.InvalidResponseErr
		if errors.As(err, &invResp) && !invResp.Retryable() {
			metrics.DownloadFailuresTotal.Inc()
			return nil, err
		}

		lastErr = err
		if attempt == d.maxRetries {
			break
		}

		metrics.DownloadRetriesTotal.Inc()
		delay := d.retryDelay * time.Duration(1<<uint(attempt))
		if d.enableLogging {
			log.Info("download retry %d/%d for %s after %v: %v", attempt+1, d.maxRetries, url, delay, err)
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, cacheerr.Cancelled(ctx.Err())
		}
	}
	metrics.DownloadFailuresTotal.Inc()
	return nil, lastErr
}

// attempt performs a single streaming HTTP GET, classifying failures
// into the cacheerr taxonomy and emitting progress as bytes arrive.
func (d *Downloader) attempt(ctx context.Context, url string, sink ProgressFunc) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, cacheerr.Unknown(err)
	}
	for k, v := range d.headers {
		req.Header.Set(k, v)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, cacheerr.Cancelled(ctx.Err())
		}
		return nil, cacheerr.NetworkFailure(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, cacheerr.InvalidResponse(resp.StatusCode)
	}

	return readWithProgress(resp.Body, resp.ContentLength, sink)
}

// readWithProgress consumes body, reporting progress = received /
// expectedTotal after each chunk when expectedTotal > 0. Progress
// values are inherently monotonic non-decreasing here since received
// only grows.
func readWithProgress(body io.Reader, expectedTotal int64, sink ProgressFunc) ([]byte, error) {
	buf := make([]byte, 0, initialBufferSize(expectedTotal))
	chunk := make([]byte, 32*1024)
	var received int64

	for {
		n, err := body.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			received += int64(n)
			metrics.DownloadBytesTotal.Add(float64(n))
			if sink != nil && expectedTotal > 0 {
				sink(float64(received) / float64(expectedTotal))
			}
		}
		if err == io.EOF {
			return buf, nil
		}
		if err != nil {
			return nil, cacheerr.NetworkFailure(err)
		}
	}
}

func initialBufferSize(expectedTotal int64) int64 {
	if expectedTotal > 0 {
		return expectedTotal
	}
	return 64 * 1024
}
