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
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/Noaahfx/Github-Thumbnail-Extractor/internal/errdefs"
	"github.com/Noaahfx/Github-Thumbnail-Extractor/internal/github"
	"github.com/Noaahfx/Github-Thumbnail-Extractor/internal/repo"
)

const (
	// DefaultTimeout bounds a single image request, body included
	DefaultTimeout = 60 * time.Second

	// chunkSize is the copy buffer used when streaming an image to disk
	chunkSize = 8 * 1024

	// tempPrefix marks in-progress downloads; Lookup never returns them
	tempPrefix = ".partial-"

	acceptImages = "image/avif,image/webp,image/apng,image/*,*/*;q=0.8"
)

// Fetcher downloads Open Graph images into a cache directory, at most once
// per repository identity.
type Fetcher struct {
	client      *http.Client
	dir         string
	webURL      string
	retryConfig *RetryConfig
	sleep       func(ctx context.Context, d time.Duration) error
	flights     singleflight.Group

	mu      sync.Mutex
	waiting map[string]*flightState
}

// flightState is the context shared by every caller waiting on one download.
// It is cancelled when the last of them gives up.
type flightState struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// Option configures a Fetcher
type Option func(*Fetcher)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		f.client = c
	}
}

// WithTimeout sets the timeout of the default HTTP client
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.client = &http.Client{Timeout: d}
		}
	}
}

// WithRetryConfig replaces the 429 backoff settings
func WithRetryConfig(cfg *RetryConfig) Option {
	return func(f *Fetcher) {
		if cfg != nil {
			f.retryConfig = cfg
		}
	}
}

// WithWebURL sets the site the Referer header points into
func WithWebURL(u string) Option {
	return func(f *Fetcher) {
		if u != "" {
			f.webURL = u
		}
	}
}

// New creates a Fetcher caching into dir, creating the directory if needed
func New(dir string, opts ...Option) (*Fetcher, error) {
	if dir == "" {
		return nil, fmt.Errorf("cache directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory %s: %w", dir, err)
	}

	f := &Fetcher{
		client:      &http.Client{Timeout: DefaultTimeout},
		dir:         dir,
		webURL:      github.DefaultWebURL,
		retryConfig: DefaultRetryConfig(),
		sleep:       sleepContext,
		waiting:     make(map[string]*flightState),
	}
	for _, opt := range opts {
		opt(f)
	}

	return f, nil
}

// Dir returns the cache directory
func (f *Fetcher) Dir() string {
	return f.dir
}

// Lookup returns the cached image of id, or nil when there is none. Any
// regular file carrying the identity's prefix counts as a hit, whatever its
// age or content.
func (f *Fetcher) Lookup(id repo.Identity) (*repo.CachedImage, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache directory %s: %w", f.dir, err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if !entry.Type().IsRegular() || strings.HasPrefix(name, tempPrefix) {
			continue
		}
		if id.OwnsCacheFile(name) {
			return f.cachedImage(id, name), nil
		}
	}

	return nil, nil
}

// Fetch returns the cached image of id, downloading imageURL first on a
// cache miss. Concurrent calls for the same identity share one download; a
// caller whose ctx ends leaves it without failing the others, and the
// download is cancelled once every caller has left.
func (f *Fetcher) Fetch(ctx context.Context, imageURL string, id repo.Identity) (*repo.CachedImage, error) {
	logger := log.FromContext(ctx).WithValues("repository", id.String())

	if err := id.Validate(); err != nil {
		return nil, err
	}

	cached, err := f.Lookup(id)
	if err != nil {
		return nil, errdefs.DownloadFailed(err, "failed to check the image cache")
	}
	if cached != nil {
		logger.V(1).Info("Serving cached image", "file", cached.FileName)
		return cached, nil
	}

	key := id.CachePrefix()
	flightCtx := f.join(ctx, key)
	defer f.leave(key)

	for {
		ch := f.flights.DoChan(key, func() (interface{}, error) {
			// a flight that finished just before this one started has already
			// written the file
			if cached, err := f.Lookup(id); err == nil && cached != nil {
				return cached, nil
			}
			return f.download(flightCtx, imageURL, id)
		})

		select {
		case <-ctx.Done():
			return nil, errdefs.DownloadFailed(ctx.Err(), "download of %s cancelled", imageURL)
		case res := <-ch:
			if res.Err != nil {
				// joined a flight whose callers had all left; start our own
				if errors.Is(res.Err, context.Canceled) && flightCtx.Err() == nil {
					continue
				}
				return nil, res.Err
			}
			if res.Shared {
				logger.V(1).Info("Joined in-flight download")
			}
			return res.Val.(*repo.CachedImage), nil
		}
	}
}

// join registers a caller waiting on the download of key and returns the
// context the download runs under. It outlives any single caller.
func (f *Fetcher) join(ctx context.Context, key string) context.Context {
	f.mu.Lock()
	defer f.mu.Unlock()

	st, ok := f.waiting[key]
	if !ok {
		flightCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		st = &flightState{ctx: flightCtx, cancel: cancel}
		f.waiting[key] = st
	}
	st.waiters++
	return st.ctx
}

// leave drops a waiter, cancelling the download when none remain
func (f *Fetcher) leave(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	st, ok := f.waiting[key]
	if !ok {
		return
	}
	st.waiters--
	if st.waiters == 0 {
		st.cancel()
		delete(f.waiting, key)
	}
}

// download fetches imageURL and stores it under the identity's cache name
func (f *Fetcher) download(ctx context.Context, imageURL string, id repo.Identity) (*repo.CachedImage, error) {
	logger := log.FromContext(ctx)

	resp, err := f.getWithRetry(ctx, imageURL, id)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	ext := ExtensionFor(resp.Header.Get("Content-Type"), imageURL)
	name := id.CacheFileName(ext)

	written, err := f.store(name, resp.Body)
	if err != nil {
		return nil, errdefs.DownloadFailed(err, "failed to save image for %s", id)
	}

	logger.Info("Downloaded Open Graph image", "repository", id.String(), "file", name, "bytes", written)
	return f.cachedImage(id, name), nil
}

// newRequest builds the image GET with browser-like headers
func (f *Fetcher) newRequest(ctx context.Context, imageURL string, id repo.Identity) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", github.BrowserUserAgent)
	req.Header.Set("Accept", acceptImages)
	req.Header.Set("Referer", id.PageURL(f.webURL))
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
	return req, nil
}

// store streams body into a temporary file and renames it to name, so a
// failed transfer never leaves a file Lookup would accept.
func (f *Fetcher) store(name string, body io.Reader) (int64, error) {
	tmp, err := os.CreateTemp(f.dir, tempPrefix+"*")
	if err != nil {
		return 0, err
	}
	tmpName := tmp.Name()

	committed := false
	defer func() {
		if !committed {
			tmp.Close()        //nolint:errcheck,gosec
			os.Remove(tmpName) //nolint:errcheck,gosec
		}
	}()

	buf := make([]byte, chunkSize)
	// the wrappers hide ReaderFrom/WriterTo so the copy goes through buf
	written, err := io.CopyBuffer(struct{ io.Writer }{tmp}, struct{ io.Reader }{body}, buf)
	if err != nil {
		return written, err
	}
	if err := tmp.Close(); err != nil {
		return written, err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return written, err
	}
	if err := os.Rename(tmpName, filepath.Join(f.dir, name)); err != nil {
		return written, err
	}

	committed = true
	return written, nil
}

func (f *Fetcher) cachedImage(id repo.Identity, name string) *repo.CachedImage {
	return &repo.CachedImage{
		Identity:  id,
		Path:      filepath.Join(f.dir, name),
		FileName:  name,
		Extension: filepath.Ext(name),
	}
}
