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

package cleanup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/Noaahfx/Github-Thumbnail-Extractor/internal/repo"
)

const (
	// cacheMarker appears in every cache file name
	cacheMarker = "-opengraph."
	// partialPrefix marks interrupted downloads
	partialPrefix = ".partial-"
)

// Options selects which cached images a prune pass removes
type Options struct {
	// Identity restricts the pass to one repository when set
	Identity *repo.Identity
	// OlderThan keeps files modified more recently than now-OlderThan; zero
	// means any age
	OlderThan time.Duration
	// DryRun reports matches without deleting them
	DryRun bool
}

// Pruner deletes cache entries from a cache directory
type Pruner struct {
	dir string
	now func() time.Time
}

// NewPruner creates a Pruner for the given cache directory
func NewPruner(dir string) *Pruner {
	return &Pruner{
		dir: dir,
		now: time.Now,
	}
}

// Prune performs a single pass and returns the names of the files it removed
// (or would remove, for a dry run).
//
// The following rules apply:
//   - Directories and files that are not cache entries are skipped
//   - Partial downloads are only considered when no identity is given
//   - Only files whose modification time is before now-OlderThan are removed
func (p *Pruner) Prune(ctx context.Context, opts Options) ([]string, error) {
	logger := log.FromContext(ctx)

	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache directory %s: %w", p.dir, err)
	}

	var cutoff time.Time
	if opts.OlderThan > 0 {
		cutoff = p.now().Add(-opts.OlderThan)
	}

	removed := []string{}
	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return removed, ctx.Err()
		default:
		}

		if !entry.Type().IsRegular() || !p.matches(entry.Name(), opts.Identity) {
			continue
		}

		if !cutoff.IsZero() {
			info, err := entry.Info()
			if err != nil {
				// removed underneath us
				continue
			}
			if !info.ModTime().Before(cutoff) {
				continue
			}
		}

		if !opts.DryRun {
			if err := os.Remove(filepath.Join(p.dir, entry.Name())); err != nil && !os.IsNotExist(err) {
				return removed, fmt.Errorf("failed to remove %s: %w", entry.Name(), err)
			}
		}

		logger.Info("Pruned cached image", "file", entry.Name(), "dryRun", opts.DryRun)
		removed = append(removed, entry.Name())
	}

	return removed, nil
}

// matches reports whether name is a cache entry selected by id
func (p *Pruner) matches(name string, id *repo.Identity) bool {
	if id != nil {
		return id.OwnsCacheFile(name)
	}
	return strings.HasPrefix(name, partialPrefix) || strings.Contains(name, cacheMarker)
}
