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

package resolver

import (
	"context"

	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/Noaahfx/Github-Thumbnail-Extractor/internal/errdefs"
	"github.com/Noaahfx/Github-Thumbnail-Extractor/internal/github"
	"github.com/Noaahfx/Github-Thumbnail-Extractor/internal/repo"
)

// Source names the strategy that produced an image URL
type Source string

const (
	// SourceAPI means the authenticated GraphQL query answered
	SourceAPI Source = "api"
	// SourceHTML means the og:image meta tag of the public page was used
	SourceHTML Source = "html"
)

// AttemptStatus is the outcome of the best-effort API query
type AttemptStatus string

const (
	// AttemptSkipped means no token was configured
	AttemptSkipped AttemptStatus = "skipped"
	// AttemptSucceeded means the API returned an image URL
	AttemptSucceeded AttemptStatus = "succeeded"
	// AttemptUnavailable means the API path failed and the page was used instead
	AttemptUnavailable AttemptStatus = "unavailable"
)

// APIAttempt records what happened on the API path. Err is set only when
// Status is AttemptUnavailable.
type APIAttempt struct {
	Status   AttemptStatus
	ImageURL string
	Err      error
}

// Resolution is a resolved image plus how it was found
type Resolution struct {
	repo.ResolvedImage
	Source Source
	API    APIAttempt
}

// Resolver maps repository URLs to Open Graph image URLs. The API path is
// enabled only when an API client is supplied at construction.
type Resolver struct {
	api   github.API
	pages github.Pages
}

// Option configures a Resolver
type Option func(*Resolver)

// WithAPI enables the authenticated GraphQL path. A nil client leaves it
// disabled.
func WithAPI(api github.API) Option {
	return func(r *Resolver) {
		r.api = api
	}
}

// New creates a Resolver that scrapes pages through pages
func New(pages github.Pages, opts ...Option) *Resolver {
	r := &Resolver{pages: pages}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve parses rawURL into an identity and finds its Open Graph image,
// trying the API first when enabled and the public page otherwise.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) (*Resolution, error) {
	logger := log.FromContext(ctx)

	id, err := repo.ParseIdentity(rawURL)
	if err != nil {
		return nil, err
	}

	attempt := r.queryAPI(ctx, id)
	if attempt.Status == AttemptSucceeded {
		logger.V(1).Info("Resolved Open Graph image", "repository", id.String(), "source", SourceAPI)
		return &Resolution{
			ResolvedImage: repo.ResolvedImage{Identity: id, ImageURL: attempt.ImageURL},
			Source:        SourceAPI,
			API:           attempt,
		}, nil
	}
	if attempt.Status == AttemptUnavailable {
		logger.V(1).Info("GraphQL lookup unavailable, falling back to page scrape",
			"repository", id.String(), "reason", attempt.Err.Error())
	}

	page, err := r.pages.RepositoryPage(ctx, id)
	if err != nil {
		return nil, errdefs.ResolutionFailed(err, "could not fetch the repository page")
	}

	imageURL, ok := ExtractOpenGraphImage(page)
	if !ok {
		return nil, errdefs.ResolutionFailed(nil, "Could not find Open Graph image for this repository.")
	}

	logger.V(1).Info("Resolved Open Graph image", "repository", id.String(), "source", SourceHTML)
	return &Resolution{
		ResolvedImage: repo.ResolvedImage{Identity: id, ImageURL: imageURL},
		Source:        SourceHTML,
		API:           attempt,
	}, nil
}

// queryAPI runs the authenticated lookup. It never fails: every problem is
// reported as AttemptUnavailable so the caller can fall back.
func (r *Resolver) queryAPI(ctx context.Context, id repo.Identity) APIAttempt {
	if r.api == nil {
		return APIAttempt{Status: AttemptSkipped}
	}

	imageURL, err := r.api.OpenGraphImageURL(ctx, id)
	if err != nil {
		return APIAttempt{Status: AttemptUnavailable, Err: err}
	}
	if imageURL == "" {
		return APIAttempt{Status: AttemptUnavailable, Err: github.ErrNoOpenGraphImage}
	}

	return APIAttempt{Status: AttemptSucceeded, ImageURL: imageURL}
}
