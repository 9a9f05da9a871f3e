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
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Noaahfx/Github-Thumbnail-Extractor/internal/errdefs"
	"github.com/Noaahfx/Github-Thumbnail-Extractor/internal/github"
	"github.com/Noaahfx/Github-Thumbnail-Extractor/internal/repo"
)

var helloWorld = repo.Identity{Owner: "octocat", Name: "Hello-World"}

// fastRetry keeps backoff tests quick
func fastRetry(maxRetries int) *RetryConfig {
	return &RetryConfig{
		MaxRetries:     maxRetries,
		InitialBackoff: time.Millisecond,
		BackoffFactor:  2.0,
		MaxJitter:      0,
	}
}

func newTestFetcher(t *testing.T, opts ...Option) *Fetcher {
	t.Helper()
	f, err := New(t.TempDir(), opts...)
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}
	return f
}

// listDir returns the file names in dir
func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir(%s): %v", dir, err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

// TestFetch_WritesImage covers the download round trip
func TestFetch_WritesImage(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		path        string
		size        int
		wantFile    string
	}{
		{
			name:        "PNG content type",
			contentType: "image/png",
			path:        "/1/octocat/Hello-World",
			size:        2048,
			wantFile:    "octocat-Hello-World-opengraph.png",
		},
		{
			name:        "JPEG with parameters",
			contentType: "image/jpeg; charset=binary",
			path:        "/img",
			size:        100,
			wantFile:    "octocat-Hello-World-opengraph.jpg",
		},
		{
			name:        "Unknown type falls back to URL suffix",
			contentType: "application/octet-stream",
			path:        "/preview.webp",
			size:        10,
			wantFile:    "octocat-Hello-World-opengraph.webp",
		},
		{
			name:        "Larger than one chunk",
			contentType: "image/gif",
			path:        "/anim",
			size:        5*chunkSize + 17,
			wantFile:    "octocat-Hello-World-opengraph.gif",
		},
		{
			name:        "Empty body",
			contentType: "",
			path:        "/empty",
			size:        0,
			wantFile:    "octocat-Hello-World-opengraph.jpg",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := bytes.Repeat([]byte{0xAB}, tt.size)

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.contentType != "" {
					w.Header().Set("Content-Type", tt.contentType)
				} else {
					w.Header()["Content-Type"] = nil
				}
				w.Write(body) //nolint:errcheck
			}))
			defer server.Close()

			f := newTestFetcher(t, WithRetryConfig(fastRetry(2)))
			got, err := f.Fetch(context.Background(), server.URL+tt.path, helloWorld)
			if err != nil {
				t.Fatalf("Fetch() unexpected error: %v", err)
			}

			if got.FileName != tt.wantFile {
				t.Errorf("FileName = %q, want %q", got.FileName, tt.wantFile)
			}
			if got.Extension != filepath.Ext(tt.wantFile) {
				t.Errorf("Extension = %q, want %q", got.Extension, filepath.Ext(tt.wantFile))
			}
			if got.Identity != helloWorld {
				t.Errorf("Identity = %+v", got.Identity)
			}

			data, err := os.ReadFile(got.Path)
			if err != nil {
				t.Fatalf("ReadFile(%s): %v", got.Path, err)
			}
			if len(data) != tt.size {
				t.Errorf("cached file has %d bytes, want %d", len(data), tt.size)
			}

			if files := listDir(t, f.Dir()); len(files) != 1 {
				t.Errorf("cache dir contains %v, want exactly one file", files)
			}
		})
	}
}

// TestFetch_SendsBrowserHeaders verifies the outbound request
func TestFetch_SendsBrowserHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		want := map[string]string{
			"User-Agent":    github.BrowserUserAgent,
			"Accept":        acceptImages,
			"Referer":       "https://github.com/octocat/Hello-World",
			"Cache-Control": "no-cache",
			"Pragma":        "no-cache",
		}
		for k, v := range want {
			if got := r.Header.Get(k); got != v {
				t.Errorf("header %s = %q, want %q", k, got, v)
			}
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("png")) //nolint:errcheck
	}))
	defer server.Close()

	f := newTestFetcher(t)
	if _, err := f.Fetch(context.Background(), server.URL, helloWorld); err != nil {
		t.Fatalf("Fetch() unexpected error: %v", err)
	}
}

// TestFetch_CacheHitSkipsNetwork checks that a second fetch never leaves the process
func TestFetch_CacheHitSkipsNetwork(t *testing.T) {
	var requests int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("first")) //nolint:errcheck
	}))
	defer server.Close()

	f := newTestFetcher(t)

	first, err := f.Fetch(context.Background(), server.URL+"/a", helloWorld)
	if err != nil {
		t.Fatalf("first Fetch() unexpected error: %v", err)
	}

	// a different URL still hits: the cache key is the identity only
	second, err := f.Fetch(context.Background(), server.URL+"/b", helloWorld)
	if err != nil {
		t.Fatalf("second Fetch() unexpected error: %v", err)
	}

	if got := atomic.LoadInt32(&requests); got != 1 {
		t.Errorf("server saw %d requests, want 1", got)
	}
	if first.Path != second.Path {
		t.Errorf("second Fetch() path = %q, want %q", second.Path, first.Path)
	}
}

func TestFetch_PreexistingFileIsHit(t *testing.T) {
	f := newTestFetcher(t)
	stale := filepath.Join(f.Dir(), "octocat-Hello-World-opengraph.webp")
	if err := os.WriteFile(stale, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	// unreachable URL: any network access would fail the test
	got, err := f.Fetch(context.Background(), "http://127.0.0.1:1/never", helloWorld)
	if err != nil {
		t.Fatalf("Fetch() unexpected error: %v", err)
	}
	if got.Path != stale || got.Extension != ".webp" {
		t.Errorf("Fetch() = %+v, want cached %s", got, stale)
	}
}

// TestFetch_RateLimitRetries covers the 429 backoff budget
func TestFetch_RateLimitRetries(t *testing.T) {
	tests := []struct {
		name         string
		maxRetries   int
		rateLimited  int
		wantAttempts int32
		wantCode     string
	}{
		{
			name:         "Succeeds on first attempt",
			maxRetries:   5,
			rateLimited:  0,
			wantAttempts: 1,
		},
		{
			name:         "Retries on 429 and succeeds",
			maxRetries:   5,
			rateLimited:  2,
			wantAttempts: 3,
		},
		{
			name:         "429 exactly max retries times then 200",
			maxRetries:   5,
			rateLimited:  5,
			wantAttempts: 6,
		},
		{
			name:         "Exhausts retries",
			maxRetries:   5,
			rateLimited:  6,
			wantAttempts: 6,
			wantCode:     string(errdefs.CodeRateLimited),
		},
		{
			name:         "No retries configured",
			maxRetries:   0,
			rateLimited:  1,
			wantAttempts: 1,
			wantCode:     string(errdefs.CodeRateLimited),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var attempts int32

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := atomic.AddInt32(&attempts, 1)
				if int(n) <= tt.rateLimited {
					w.WriteHeader(http.StatusTooManyRequests)
					return
				}
				w.Header().Set("Content-Type", "image/png")
				w.Write([]byte("image")) //nolint:errcheck
			}))
			defer server.Close()

			f := newTestFetcher(t, WithRetryConfig(fastRetry(tt.maxRetries)))
			_, err := f.Fetch(context.Background(), server.URL, helloWorld)

			if got := atomic.LoadInt32(&attempts); got != tt.wantAttempts {
				t.Errorf("made %d attempts, want %d", got, tt.wantAttempts)
			}

			files := listDir(t, f.Dir())
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("Fetch() unexpected error: %v", err)
				}
				if len(files) != 1 {
					t.Errorf("cache dir contains %v, want exactly one file", files)
				}
				return
			}

			if got := errdefs.ToResponse(err).Code; got != tt.wantCode {
				t.Errorf("error code = %q, want %q (%v)", got, tt.wantCode, err)
			}
			if len(files) != 0 {
				t.Errorf("cache dir contains %v after failure, want none", files)
			}
		})
	}
}

func TestFetch_RateLimitBacksOffExponentially(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	f := newTestFetcher(t, WithRetryConfig(&RetryConfig{
		MaxRetries:     3,
		InitialBackoff: time.Second,
		BackoffFactor:  2.0,
	}))

	var slept []time.Duration
	f.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	_, err := f.Fetch(context.Background(), server.URL, helloWorld)
	if !errdefs.Is(err, errdefs.CodeRateLimited) {
		t.Fatalf("Fetch() error = %v, want rate limited", err)
	}

	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	if len(slept) != len(want) {
		t.Fatalf("slept %v, want %v", slept, want)
	}
	for i := range want {
		if slept[i] != want[i] {
			t.Errorf("backoff[%d] = %v, want %v", i, slept[i], want[i])
		}
	}
}

func TestFetch_CancelledDuringBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	f := newTestFetcher(t, WithRetryConfig(&RetryConfig{
		MaxRetries:     5,
		InitialBackoff: time.Hour,
		BackoffFactor:  2.0,
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := f.Fetch(ctx, server.URL, helloWorld)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Fetch() error = %v, want context deadline", err)
	}
	if !errdefs.Is(err, errdefs.CodeDownloadFailed) {
		t.Errorf("Fetch() code = %v, want DOWNLOAD_FAILED", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("Fetch() did not return promptly after cancellation")
	}
}

// TestFetch_DownloadFailures covers fatal outcomes
func TestFetch_DownloadFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "Not found is not retried",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.NotFound(w, r)
			},
		},
		{
			name: "Server error is not retried",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
		},
		{
			name: "Truncated body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "image/png")
				w.Header().Set("Content-Length", "1000")
				w.Write([]byte("short")) //nolint:errcheck
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var attempts int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&attempts, 1)
				tt.handler(w, r)
			}))
			defer server.Close()

			f := newTestFetcher(t, WithRetryConfig(fastRetry(3)))
			_, err := f.Fetch(context.Background(), server.URL, helloWorld)

			if !errdefs.Is(err, errdefs.CodeDownloadFailed) {
				t.Fatalf("Fetch() error = %v, want DOWNLOAD_FAILED", err)
			}
			if got := atomic.LoadInt32(&attempts); got != 1 {
				t.Errorf("made %d attempts, want 1", got)
			}
			if files := listDir(t, f.Dir()); len(files) != 0 {
				t.Errorf("cache dir contains %v after failure, want none", files)
			}

			// nothing was cached, so a later lookup still misses
			cached, err := f.Lookup(helloWorld)
			if err != nil || cached != nil {
				t.Errorf("Lookup() = %v, %v; want miss", cached, err)
			}
		})
	}
}

func TestFetch_StatusErrorIsInspectable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	f := newTestFetcher(t)
	_, err := f.Fetch(context.Background(), server.URL, helloWorld)

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Fetch() error = %v, want *StatusError in chain", err)
	}
	if statusErr.StatusCode != http.StatusForbidden {
		t.Errorf("StatusCode = %d, want %d", statusErr.StatusCode, http.StatusForbidden)
	}
}

func TestFetch_InvalidIdentity(t *testing.T) {
	f := newTestFetcher(t)
	_, err := f.Fetch(context.Background(), "https://example.com/a.png", repo.Identity{Owner: "octocat"})
	if !errdefs.Is(err, errdefs.CodeInvalidInput) {
		t.Errorf("Fetch() error = %v, want INVALID_INPUT", err)
	}
}

// TestFetch_ConcurrentSameIdentity checks that parallel first fetches share one download
func TestFetch_ConcurrentSameIdentity(t *testing.T) {
	var requests int32
	release := make(chan struct{})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		<-release
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("shared")) //nolint:errcheck
	}))
	defer server.Close()

	f := newTestFetcher(t)

	const workers = 8
	var wg sync.WaitGroup
	paths := make([]string, workers)
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			img, err := f.Fetch(context.Background(), server.URL, helloWorld)
			errs[i] = err
			if img != nil {
				paths[i] = img.Path
			}
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Errorf("worker %d: unexpected error: %v", i, errs[i])
		}
		if paths[i] != paths[0] {
			t.Errorf("worker %d path = %q, want %q", i, paths[i], paths[0])
		}
	}
	if got := atomic.LoadInt32(&requests); got != 1 {
		t.Errorf("server saw %d requests, want 1", got)
	}
}

// waitForWaiters blocks until n callers wait on the download of id
func waitForWaiters(t *testing.T, f *Fetcher, id repo.Identity, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		f.mu.Lock()
		st := f.waiting[id.CachePrefix()]
		got := 0
		if st != nil {
			got = st.waiters
		}
		f.mu.Unlock()
		if got == n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d callers on %s", n, id)
}

func TestFetch_CancelledCallerLeavesSharedDownload(t *testing.T) {
	var requests int32
	started := make(chan struct{}, 1)
	release := make(chan struct{})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		started <- struct{}{}
		<-release
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("shared")) //nolint:errcheck
	}))
	defer server.Close()
	defer close(release)

	f := newTestFetcher(t)

	ctxA, cancelA := context.WithCancel(context.Background())
	defer cancelA()
	errA := make(chan error, 1)
	go func() {
		_, err := f.Fetch(ctxA, server.URL, helloWorld)
		errA <- err
	}()
	<-started

	type result struct {
		img *repo.CachedImage
		err error
	}
	resB := make(chan result, 1)
	go func() {
		img, err := f.Fetch(context.Background(), server.URL, helloWorld)
		resB <- result{img, err}
	}()
	waitForWaiters(t, f, helloWorld, 2)

	cancelA()
	select {
	case err := <-errA:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("cancelled caller error = %v, want context.Canceled", err)
		}
		if !errdefs.Is(err, errdefs.CodeDownloadFailed) {
			t.Errorf("cancelled caller code = %v, want DOWNLOAD_FAILED", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled caller did not return")
	}

	release <- struct{}{}
	select {
	case res := <-resB:
		if res.err != nil {
			t.Fatalf("remaining caller: unexpected error: %v", res.err)
		}
		data, err := os.ReadFile(res.img.Path)
		if err != nil {
			t.Fatalf("ReadFile: %v", err)
		}
		if string(data) != "shared" {
			t.Errorf("cached file = %q, want %q", data, "shared")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("remaining caller did not return")
	}

	if got := atomic.LoadInt32(&requests); got != 1 {
		t.Errorf("server saw %d requests, want 1", got)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.waiting) != 0 {
		t.Errorf("%d flights still tracked after every caller returned", len(f.waiting))
	}
}

func TestLookup_IgnoresOtherFiles(t *testing.T) {
	f := newTestFetcher(t)

	for _, name := range []string{
		"octocat-Hello-World-Extra-opengraph.png",
		"octocat-Spoon-Knife-opengraph.png",
		tempPrefix + "octocat-Hello-World-opengraph.png",
		// belongs to octocat/Hello-World-opengraph.io
		"octocat-Hello-World-opengraph.io-opengraph.png",
	} {
		if err := os.WriteFile(filepath.Join(f.Dir(), name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(f.Dir(), "octocat-Hello-World-opengraph.dir"), 0o755); err != nil {
		t.Fatal(err)
	}

	cached, err := f.Lookup(helloWorld)
	if err != nil {
		t.Fatalf("Lookup() unexpected error: %v", err)
	}
	if cached != nil {
		t.Errorf("Lookup() = %+v, want miss", cached)
	}
}

// TestFetch_EndToEndScenario follows a repository from URL to cached file
func TestFetch_EndToEndScenario(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(png) //nolint:errcheck
	}))
	defer server.Close()

	id, err := repo.ParseIdentity("github.com/octocat/Hello-World.git")
	if err != nil {
		t.Fatalf("ParseIdentity() unexpected error: %v", err)
	}

	f := newTestFetcher(t)
	img, err := f.Fetch(context.Background(), server.URL+"/1/octocat/Hello-World", id)
	if err != nil {
		t.Fatalf("Fetch() unexpected error: %v", err)
	}

	if img.FileName != "octocat-Hello-World-opengraph.png" {
		t.Errorf("FileName = %q", img.FileName)
	}
	data, err := os.ReadFile(img.Path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, png) {
		t.Errorf("cached bytes = %q, want %q", data, png)
	}
}
