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

package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Noaahfx/Github-Thumbnail-Extractor/internal/cleanup"
	"github.com/Noaahfx/Github-Thumbnail-Extractor/internal/repo"
)

// newPruneCmd creates the `prune` command.
// Usage: ogthumb prune [--repo owner/name] [--older-than DURATION] [--dry-run]
func newPruneCmd(opts *globalOptions) *cobra.Command {
	var (
		repoFlag  string
		olderThan time.Duration
		dryRun    bool
	)

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove cached images",
		Long: `Cached images are never refreshed: if a repository's preview image changes,
the old file keeps being served. prune deletes cached images (and leftover
partial downloads) so the next request downloads them again.

Without --repo every cached image is considered.`,
		Example: `  ogthumb prune --repo octocat/Hello-World
  ogthumb prune --older-than 720h --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			pruneOpts := cleanup.Options{OlderThan: olderThan, DryRun: dryRun}
			if repoFlag != "" {
				id, err := parseRepoFlag(repoFlag)
				if err != nil {
					return err
				}
				pruneOpts.Identity = &id
			}

			return runPruneWith(cmd.Context(), cmd.OutOrStdout(), cleanup.NewPruner(cfg.CacheDir), pruneOpts)
		},
	}

	cmd.Flags().StringVar(&repoFlag, "repo", "", "Only prune this repository (owner/name or URL)")
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Only prune files last written before this long ago")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List the files without removing them")

	return cmd
}

// parseRepoFlag accepts "owner/name" as well as a full repository URL
func parseRepoFlag(value string) (repo.Identity, error) {
	if !strings.Contains(value, "://") && !strings.HasPrefix(strings.ToLower(value), "github.com/") &&
		!strings.HasPrefix(strings.ToLower(value), "www.github.com/") {
		value = "https://github.com/" + strings.TrimPrefix(value, "/")
	}
	return repo.ParseIdentity(value)
}

func runPruneWith(ctx context.Context, out io.Writer, pruner *cleanup.Pruner, opts cleanup.Options) error {
	removed, err := pruner.Prune(ctx, opts)
	if err != nil {
		return err
	}

	verb := "Removed"
	if opts.DryRun {
		verb = "Would remove"
	}
	for _, name := range removed {
		fmt.Fprintf(out, "%s %s\n", verb, name)
	}
	fmt.Fprintf(out, "%s %d file(s)\n", verb, len(removed))
	return nil
}
