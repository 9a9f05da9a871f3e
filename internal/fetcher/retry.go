// MIT License
//
// Copyright (c) 2025 Mike Lane
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package fetcher

import (
	"context"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"time"

	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/Noaahfx/Github-Thumbnail-Extractor/internal/errdefs"
	"github.com/Noaahfx/Github-Thumbnail-Extractor/internal/repo"
)

// RetryConfig defines how 429 answers from the image CDN are retried
type RetryConfig struct {
	// MaxRetries is the number of retries after the first request
	MaxRetries     int
	InitialBackoff time.Duration
	BackoffFactor  float64
	// MaxJitter bounds the random delay added to every backoff
	MaxJitter time.Duration
}

// DefaultRetryConfig returns 5 retries starting at one second, doubling each
// time, with up to 350ms of jitter.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:     5,
		InitialBackoff: time.Second,
		BackoffFactor:  2.0,
		MaxJitter:      350 * time.Millisecond,
	}
}

// StatusError is a non-2xx, non-429 answer from the image host
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: HTTP %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// getWithRetry issues the image request, backing off on 429 until the retry
// budget is spent. Any other failure ends the loop immediately.
func (f *Fetcher) getWithRetry(ctx context.Context, imageURL string, id repo.Identity) (*http.Response, error) {
	logger := log.FromContext(ctx)

	for attempt := 0; attempt <= f.retryConfig.MaxRetries; attempt++ {
		req, err := f.newRequest(ctx, imageURL, id)
		if err != nil {
			return nil, errdefs.DownloadFailed(err, "invalid image URL %q", imageURL)
		}

		resp, err := f.client.Do(req)
		if err != nil {
			return nil, errdefs.DownloadFailed(err, "failed to download %s", imageURL)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			drainAndClose(resp.Body)

			// Don't sleep after the last attempt
			if attempt == f.retryConfig.MaxRetries {
				break
			}

			backoff := f.calculateBackoff(attempt)
			logger.Info("Image CDN rate limited, backing off",
				"url", imageURL, "attempt", attempt+1, "backoff", backoff.String())

			if err := f.sleep(ctx, backoff); err != nil {
				return nil, errdefs.DownloadFailed(err, "download of %s cancelled", imageURL)
			}
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			drainAndClose(resp.Body)
			statusErr := &StatusError{URL: imageURL, StatusCode: resp.StatusCode}
			return nil, errdefs.DownloadFailed(statusErr, "failed to download %s", imageURL)
		}

		return resp, nil
	}

	return nil, errdefs.RateLimited(imageURL, f.retryConfig.MaxRetries+1)
}

// calculateBackoff returns InitialBackoff * BackoffFactor^attempt plus a
// random jitter in [0, MaxJitter)
func (f *Fetcher) calculateBackoff(attempt int) time.Duration {
	base := float64(f.retryConfig.InitialBackoff) * math.Pow(f.retryConfig.BackoffFactor, float64(attempt))
	backoff := time.Duration(base)

	if f.retryConfig.MaxJitter > 0 {
		backoff += time.Duration(rand.Int63n(int64(f.retryConfig.MaxJitter))) //nolint:gosec
	}

	return backoff
}

// sleepContext waits for d or until ctx is done
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// drainAndClose lets the connection be reused
func drainAndClose(body io.ReadCloser) {
	io.Copy(io.Discard, io.LimitReader(body, 64<<10)) //nolint:errcheck,gosec
	body.Close()                                      //nolint:errcheck,gosec
}
