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
	"embed"
	"html/template"
	"io/fs"

	"github.com/Noaahfx/Github-Thumbnail-Extractor/internal/repo"
	"github.com/Noaahfx/Github-Thumbnail-Extractor/internal/resolver"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// staticFiles serves the embedded static directory at its root
func staticFiles() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return sub
}

// Resolver finds the Open Graph image of a repository URL
type Resolver interface {
	Resolve(ctx context.Context, rawURL string) (*resolver.Resolution, error)
}

// Fetcher downloads and caches an Open Graph image
type Fetcher interface {
	Fetch(ctx context.Context, imageURL string, id repo.Identity) (*repo.CachedImage, error)
	// Lookup returns the cached image of id without any network access, or
	// nil when there is none
	Lookup(id repo.Identity) (*repo.CachedImage, error)
}

// pageData is rendered by the index template
type pageData struct {
	Input  string
	Result *pageResult
	Error  string
}

// pageResult describes a resolved repository on the index page
type pageResult struct {
	Owner        string
	Repo         string
	ImageURL     string
	DownloadHref string
}

// ogResponse is the JSON body of /api/og
type ogResponse struct {
	Owner    string `json:"owner"`
	Repo     string `json:"repo"`
	ImageURL string `json:"image_url"`
	Source   string `json:"source"`
}
