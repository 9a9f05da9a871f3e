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
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/go-logr/logr"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/Noaahfx/Github-Thumbnail-Extractor/internal/errdefs"
	"github.com/Noaahfx/Github-Thumbnail-Extractor/internal/repo"
)

// Server serves the thumbnail downloader web interface
type Server struct {
	addr        string
	port        int
	resolver    Resolver
	fetcher     Fetcher
	logger      logr.Logger
	server      *http.Server
	rateLimiter *RateLimiter
}

// Option configures a Server
type Option func(*Server)

// WithRateLimit replaces the default of 10 requests per second per client
func WithRateLimit(limit int, window time.Duration) Option {
	return func(s *Server) {
		s.rateLimiter = NewRateLimiter(limit, window)
	}
}

// WithLogger sets the logger placed in every request context
func WithLogger(logger logr.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new web server
func NewServer(addr string, port int, res Resolver, fetch Fetcher, opts ...Option) *Server {
	s := &Server{
		addr:        addr,
		port:        port,
		resolver:    res,
		fetcher:     fetch,
		logger:      log.Log.WithName("server"),
		rateLimiter: NewRateLimiter(10, time.Second), // 10 requests per second per client
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler, with the request logger attached
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/", s.limited(s.handleIndex))
	mux.Handle("/save", s.limited(s.handleSave))
	mux.Handle("/api/og", s.limited(s.handleAPI))
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticFiles()))))
	mux.HandleFunc("/healthz", s.handleHealth)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := log.IntoContext(r.Context(), s.logger.WithValues("method", r.Method, "path", r.URL.Path))
		mux.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Start starts the web server
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.addr, s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in goroutine
	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("Starting web server", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	case err := <-errChan:
		return err
	}
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.logger.Info("Shutting down web server")
	return s.server.Shutdown(ctx)
}

// limited rejects clients over their request budget
func (s *Server) limited(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client := clientKey(r)
		if !s.rateLimiter.Allow(client) {
			log.FromContext(r.Context()).Info("Rate limit exceeded", "client", client)
			http.Error(w, "Too many requests", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	})
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK")) //nolint:errcheck,gosec
}

// handleIndex renders the form and, on POST, the resolved image
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet, http.MethodHead:
		s.render(w, r, http.StatusOK, pageData{})
	case http.MethodPost:
		s.handleIndexPost(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleIndexPost(w http.ResponseWriter, r *http.Request) {
	logger := log.FromContext(r.Context())

	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}
	input := r.PostFormValue("repo_url")

	res, err := s.resolver.Resolve(r.Context(), input)
	if err != nil {
		logger.Info("Resolve failed", "input", input, "error", err.Error())
		s.render(w, r, http.StatusOK, pageData{Input: input, Error: errdefs.Message(err)})
		return
	}

	s.render(w, r, http.StatusOK, pageData{
		Input: input,
		Result: &pageResult{
			Owner:        res.Identity.Owner,
			Repo:         res.Identity.Name,
			ImageURL:     res.ImageURL,
			DownloadHref: downloadHref(res.Identity, res.ImageURL),
		},
	})
}

// handleSave fetches the image into the cache and sends it as an attachment.
// HEAD never downloads: it answers 404 until a GET has cached the image.
func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	logger := log.FromContext(r.Context())

	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	id := repo.Identity{Owner: q.Get("owner"), Name: q.Get("repo")}
	imageURL := q.Get("img_url")

	if err := id.Validate(); err != nil {
		writeError(w, err)
		return
	}
	if err := validateImageURL(imageURL); err != nil {
		writeError(w, err)
		return
	}

	// HEAD only reports what is already cached
	if r.Method == http.MethodHead {
		img, err := s.fetcher.Lookup(id)
		if err != nil {
			writeError(w, errdefs.DownloadFailed(err, "failed to check the image cache"))
			return
		}
		if img == nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		s.serveImage(w, r, img)
		return
	}

	img, err := s.fetcher.Fetch(r.Context(), imageURL, id)
	if err != nil {
		logger.Info("Fetch failed", "repository", id.String(), "error", err.Error())
		writeError(w, err)
		return
	}

	s.serveImage(w, r, img)
}

// serveImage sends a cached image as an attachment
func (s *Server) serveImage(w http.ResponseWriter, r *http.Request, img *repo.CachedImage) {
	f, err := os.Open(img.Path)
	if err != nil {
		writeError(w, errdefs.DownloadFailed(err, "failed to open cached image"))
		return
	}
	defer f.Close() //nolint:errcheck

	info, err := f.Stat()
	if err != nil {
		writeError(w, errdefs.DownloadFailed(err, "failed to stat cached image"))
		return
	}

	if ctype := mime.TypeByExtension(img.Extension); ctype != "" {
		w.Header().Set("Content-Type", ctype)
	}
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": img.FileName}))
	http.ServeContent(w, r, filepath.Base(img.Path), info.ModTime(), f)
}

// handleAPI resolves ?url= and answers with JSON
func (s *Server) handleAPI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	res, err := s.resolver.Resolve(r.Context(), r.URL.Query().Get("url"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ogResponse{
		Owner:    res.Identity.Owner,
		Repo:     res.Identity.Name,
		ImageURL: res.ImageURL,
		Source:   string(res.Source),
	})
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := indexTemplate.Execute(w, data); err != nil {
		log.FromContext(r.Context()).Error(err, "Failed to render page")
	}
}

// downloadHref links the page result to /save
func downloadHref(id repo.Identity, imageURL string) string {
	q := url.Values{}
	q.Set("owner", id.Owner)
	q.Set("repo", id.Name)
	q.Set("img_url", imageURL)
	return "/save?" + q.Encode()
}

// validateImageURL accepts absolute http(s) URLs only
func validateImageURL(raw string) error {
	if raw == "" {
		return errdefs.InvalidInput("img_url is required")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errdefs.InvalidInput("img_url must be an absolute http(s) URL")
	}
	return nil
}

// clientKey identifies the caller for rate limiting
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, errdefs.HTTPStatus(err), errdefs.ToResponse(err))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck,gosec
}
