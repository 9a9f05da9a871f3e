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
	"net/url"
	"strings"

	"github.com/google/go-github/v66/github"
	"github.com/jmgilman/go/errors"

	"github.com/Noaahfx/Github-Thumbnail-Extractor/internal/repo"
)

// openGraphQuery asks the GraphQL API for the repository's social preview.
const openGraphQuery = `query($owner:String!, $name:String!){
  repository(owner:$owner, name:$name){ openGraphImageUrl }
}`

// apiClient implements API using go-github's authenticated transport
type apiClient struct {
	client *github.Client
}

// NewAPIClient creates a GraphQL client authenticated with token.
// An empty token is a configuration error: callers decide whether the API
// path is enabled before constructing the client.
func NewAPIClient(token string, opts ...Option) (API, error) {
	if token == "" {
		err := errors.New(errors.CodeInvalidConfig, "token cannot be empty")
		return nil, errors.WithContext(err, "field", "github_token")
	}

	cfg := newOptions(opts)

	gh := github.NewClient(cfg.httpClient()).WithAuthToken(token)
	gh.UserAgent = BrowserUserAgent

	if cfg.baseURL != "" {
		base := cfg.baseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, errors.Wrapf(err, errors.CodeInvalidConfig, "invalid API base URL %q", cfg.baseURL)
		}
		gh.BaseURL = u
	}

	return &apiClient{client: gh}, nil
}

// OpenGraphImageURL queries the repository's openGraphImageUrl field
func (c *apiClient) OpenGraphImageURL(ctx context.Context, id repo.Identity) (string, error) {
	body := &graphQLRequest{
		Query: openGraphQuery,
		Variables: map[string]string{
			"owner": id.Owner,
			"name":  id.Name,
		},
	}

	req, err := c.client.NewRequest(http.MethodPost, "graphql", body)
	if err != nil {
		return "", fmt.Errorf("failed to build GraphQL request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	var out graphQLResponse
	if _, err := c.client.Do(ctx, req, &out); err != nil {
		return "", fmt.Errorf("failed to query GraphQL API for %s: %w", id, err)
	}

	if len(out.Errors) > 0 {
		return "", &GraphQLError{Messages: out.errorMessages()}
	}

	if out.Data.Repository == nil || out.Data.Repository.OpenGraphImageURL == "" {
		return "", ErrNoOpenGraphImage
	}

	return out.Data.Repository.OpenGraphImageURL, nil
}
