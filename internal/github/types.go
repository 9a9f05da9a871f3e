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

package github

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Noaahfx/Github-Thumbnail-Extractor/internal/repo"
)

// BrowserUserAgent is sent on every outbound request. GitHub serves the
// same markup to it as to a desktop browser.
const BrowserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

const (
	// DefaultWebURL is where public repository pages live
	DefaultWebURL = "https://github.com"
	// DefaultAPIURL is the REST/GraphQL API root
	DefaultAPIURL = "https://api.github.com/"
	// DefaultTimeout bounds each API or page request
	DefaultTimeout = 20 * time.Second
)

// ErrNoOpenGraphImage is returned when the API answered but carried no image URL
var ErrNoOpenGraphImage = fmt.Errorf("repository has no openGraphImageUrl")

// API queries the authenticated GitHub API
type API interface {
	// OpenGraphImageURL returns the repository's Open Graph image URL
	OpenGraphImageURL(ctx context.Context, id repo.Identity) (string, error)
}

// Pages fetches public repository pages
type Pages interface {
	// RepositoryPage returns the HTML of the repository's public page
	RepositoryPage(ctx context.Context, id repo.Identity) (string, error)
}

// StatusError is a non-2xx answer to a page request
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: HTTP %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// GraphQLError carries the errors array of a GraphQL response
type GraphQLError struct {
	Messages []string
}

func (e *GraphQLError) Error() string {
	return "GraphQL query failed: " + strings.Join(e.Messages, "; ")
}

// Option configures API and page clients
type Option func(*options)

type options struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
}

func newOptions(opts []Option) *options {
	cfg := &options{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

func (o *options) httpClient() *http.Client {
	if o.client != nil {
		return o.client
	}
	return &http.Client{Timeout: o.timeout}
}

// WithBaseURL points the client at another host, e.g. a test server
func WithBaseURL(u string) Option {
	return func(o *options) {
		o.baseURL = u
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithHTTPClient replaces the HTTP client entirely
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.client = c
	}
}

// graphQLRequest is the POST body of a GraphQL query
type graphQLRequest struct {
	Query     string            `json:"query"`
	Variables map[string]string `json:"variables"`
}

// graphQLResponse is the subset of the GraphQL answer we read
type graphQLResponse struct {
	Data struct {
		Repository *struct {
			OpenGraphImageURL string `json:"openGraphImageUrl"`
		} `json:"repository"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (r *graphQLResponse) errorMessages() []string {
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Message)
	}
	return msgs
}
