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

package repo

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/Noaahfx/Github-Thumbnail-Extractor/internal/errdefs"
)

// DefaultHost is the code-hosting domain repository URLs must point at.
const DefaultHost = "github.com"

// cacheSuffix separates the identity from the file extension in cache file names.
const cacheSuffix = "-opengraph"

var (
	// acceptedHosts are the host names treated as DefaultHost.
	acceptedHosts = sets.New[string](DefaultHost, "www."+DefaultHost)

	unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)
)

// Identity is the (owner, name) pair naming a repository.
type Identity struct {
	Owner string
	Name  string
}

// String returns "owner/name".
func (id Identity) String() string {
	return fmt.Sprintf("%s/%s", id.Owner, id.Name)
}

// Validate reports whether both halves of the identity are present.
func (id Identity) Validate() error {
	if id.Owner == "" || id.Name == "" {
		return errdefs.InvalidInput("repository owner and name are required")
	}
	return nil
}

// PageURL returns the repository's public page under base
// (e.g. "https://github.com").
func (id Identity) PageURL(base string) string {
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(base, "/"), id.Owner, id.Name)
}

// CachePrefix is the file name prefix every cached image of this identity
// starts with. The extension follows it.
func (id Identity) CachePrefix() string {
	return SanitizeFileName(id.Owner + "-" + id.Name + cacheSuffix + ".")
}

// CacheFileName returns the cache file name for an image with extension ext
// (including the leading dot).
func (id Identity) CacheFileName(ext string) string {
	return SanitizeFileName(id.Owner + "-" + id.Name + cacheSuffix + ext)
}

// OwnsCacheFile reports whether name is a cache file of id: the cache prefix
// followed by a bare extension. Another repository whose name extends this
// one (octocat/Hello vs octocat/Hello-opengraph.io) leaves a further "." after
// the prefix and does not match.
func (id Identity) OwnsCacheFile(name string) bool {
	prefix := id.CachePrefix()
	if !strings.HasPrefix(name, prefix) {
		return false
	}
	ext := name[len(prefix):]
	return ext != "" && !strings.Contains(ext, ".")
}

// SanitizeFileName replaces every character outside [A-Za-z0-9_.-] with '_'.
func SanitizeFileName(name string) string {
	return unsafeFileChars.ReplaceAllString(name, "_")
}

// ParseIdentity extracts the repository identity from a GitHub URL. The
// scheme is optional and defaults to https. A trailing ".git" on the name is
// dropped; case is preserved.
func ParseIdentity(raw string) (Identity, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Identity{}, errdefs.InvalidInput("repository URL is required")
	}

	lower := strings.ToLower(raw)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Identity{}, errdefs.InvalidInput("could not parse repository URL %q", raw)
	}
	if !acceptedHosts.Has(strings.ToLower(u.Hostname())) {
		return Identity{}, errdefs.InvalidInput("URL must be a GitHub repository URL")
	}

	var parts []string
	for _, p := range strings.Split(u.Path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) < 2 {
		return Identity{}, errdefs.InvalidInput("could not parse owner/repo from URL")
	}

	name := parts[1]
	if len(name) >= 4 && strings.EqualFold(name[len(name)-4:], ".git") {
		name = name[:len(name)-4]
	}
	if name == "" {
		return Identity{}, errdefs.InvalidInput("could not parse owner/repo from URL")
	}

	return Identity{Owner: parts[0], Name: name}, nil
}
