// Copyright 2025 The Previewd Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Noaahfx/Github-Thumbnail-Extractor/internal/errdefs"
	"github.com/Noaahfx/Github-Thumbnail-Extractor/internal/fetcher"
	"github.com/Noaahfx/Github-Thumbnail-Extractor/internal/github"
	"github.com/Noaahfx/Github-Thumbnail-Extractor/internal/resolver"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 2040)...)

var _ = Describe("Thumbnail downloader", func() {
	var (
		upstream   *httptest.Server
		app        *httptest.Server
		cacheDir   string
		imageHits  atomic.Int32
		imageCodes []int
	)

	BeforeEach(func() {
		imageHits.Store(0)
		imageCodes = nil
		cacheDir = GinkgoT().TempDir()

		mux := http.NewServeMux()
		mux.HandleFunc("/octocat/Hello-World", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintf(w, `<html><head><meta property="og:image" content="%s/og/octocat.png"></head></html>`, upstream.URL)
		})
		mux.HandleFunc("/octocat/no-image", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `<html><head><title>nothing</title></head></html>`)
		})
		mux.HandleFunc("/og/octocat.png", func(w http.ResponseWriter, r *http.Request) {
			n := int(imageHits.Add(1))
			if n <= len(imageCodes) {
				w.WriteHeader(imageCodes[n-1])
				return
			}
			w.Header().Set("Content-Type", "image/png")
			w.Write(pngBytes) //nolint:errcheck
		})
		upstream = httptest.NewServer(mux)

		res := resolver.New(github.NewPageClient(github.WithBaseURL(upstream.URL)))
		fetch, err := fetcher.New(cacheDir,
			fetcher.WithWebURL(upstream.URL),
			fetcher.WithRetryConfig(&fetcher.RetryConfig{
				MaxRetries:     2,
				InitialBackoff: time.Millisecond,
				BackoffFactor:  2,
			}))
		Expect(err).NotTo(HaveOccurred())

		app = httptest.NewServer(NewServer("localhost", 0, res, fetch).Handler())
	})

	AfterEach(func() {
		app.Close()
		upstream.Close()
	})

	resolve := func(repoURL string) (*http.Response, []byte) {
		resp, err := http.Get(app.URL + "/api/og?url=" + url.QueryEscape(repoURL))
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close() //nolint:errcheck
		body, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		return resp, body
	}

	save := func(imageURL string) (*http.Response, []byte) {
		q := url.Values{"owner": {"octocat"}, "repo": {"Hello-World"}, "img_url": {imageURL}}
		resp, err := http.Get(app.URL + "/save?" + q.Encode())
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close() //nolint:errcheck
		body, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		return resp, body
	}

	Describe("Scenario: resolve then download", func() {
		It("resolves the og:image and serves the cached file as an attachment", func() {
			resp, body := resolve("https://github.com/octocat/Hello-World")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var og ogResponse
			Expect(json.Unmarshal(body, &og)).To(Succeed())
			Expect(og.Owner).To(Equal("octocat"))
			Expect(og.Repo).To(Equal("Hello-World"))
			Expect(og.Source).To(Equal("html"))
			Expect(og.ImageURL).To(Equal(upstream.URL + "/og/octocat.png"))

			resp, body = save(og.ImageURL)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Disposition")).To(ContainSubstring("octocat-Hello-World-opengraph.png"))
			Expect(body).To(Equal(pngBytes))

			info, err := os.Stat(filepath.Join(cacheDir, "octocat-Hello-World-opengraph.png"))
			Expect(err).NotTo(HaveOccurred())
			Expect(info.Size()).To(BeEquivalentTo(len(pngBytes)))
		})

		It("serves the second download from the cache", func() {
			imageURL := upstream.URL + "/og/octocat.png"

			resp, _ := save(imageURL)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			resp, body := save(imageURL)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body).To(Equal(pngBytes))

			Expect(imageHits.Load()).To(BeEquivalentTo(1))
		})
	})

	Describe("Scenario: repository without an Open Graph image", func() {
		It("answers RESOLUTION_FAILED", func() {
			resp, body := resolve("github.com/octocat/no-image")
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

			var errResp errdefs.Response
			Expect(json.Unmarshal(body, &errResp)).To(Succeed())
			Expect(errResp.Code).To(Equal(string(errdefs.CodeResolutionFailed)))
			Expect(errResp.Error).To(ContainSubstring("Could not find Open Graph image"))
		})
	})

	Describe("Scenario: image CDN rate limiting", func() {
		It("recovers when the CDN stops answering 429 within the retry budget", func() {
			imageCodes = []int{http.StatusTooManyRequests, http.StatusTooManyRequests}

			resp, body := save(upstream.URL + "/og/octocat.png")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body).To(Equal(pngBytes))
			Expect(imageHits.Load()).To(BeEquivalentTo(3))
		})

		It("answers 429 with RATE_LIMIT_EXCEEDED once retries are exhausted", func() {
			imageCodes = []int{429, 429, 429}

			resp, body := save(upstream.URL + "/og/octocat.png")
			Expect(resp.StatusCode).To(Equal(http.StatusTooManyRequests))

			var errResp errdefs.Response
			Expect(json.Unmarshal(body, &errResp)).To(Succeed())
			Expect(errResp.Code).To(Equal(string(errdefs.CodeRateLimited)))
			Expect(errResp.Error).To(ContainSubstring("Open image URL"))

			entries, err := os.ReadDir(cacheDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(BeEmpty())
		})
	})

	Describe("Scenario: invalid input", func() {
		It("rejects a non-GitHub URL", func() {
			resp, body := resolve("https://gitlab.com/a/b")
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

			var errResp errdefs.Response
			Expect(json.Unmarshal(body, &errResp)).To(Succeed())
			Expect(errResp.Code).To(Equal(string(errdefs.CodeInvalidInput)))
		})
	})
})
