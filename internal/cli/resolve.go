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

	"github.com/spf13/cobra"

	"github.com/Noaahfx/Github-Thumbnail-Extractor/internal/repo"
	"github.com/Noaahfx/Github-Thumbnail-Extractor/internal/resolver"
)

// imageResolver is the part of resolver.Resolver the commands use
type imageResolver interface {
	Resolve(ctx context.Context, rawURL string) (*resolver.Resolution, error)
}

// imageFetcher is the part of fetcher.Fetcher the commands use
type imageFetcher interface {
	Fetch(ctx context.Context, imageURL string, id repo.Identity) (*repo.CachedImage, error)
}

// newResolveCmd creates the `resolve` command.
// Usage: ogthumb resolve <repository-url>
func newResolveCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <repository-url>",
		Short: "Print the Open Graph image URL of a repository",
		Example: `  ogthumb resolve https://github.com/octocat/Hello-World
  ogthumb resolve github.com/octocat/Hello-World.git`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			res, err := newResolver(cfg)
			if err != nil {
				return err
			}
			return runResolveWith(cmd.Context(), cmd.OutOrStdout(), res, args[0])
		},
	}
}

func runResolveWith(ctx context.Context, out io.Writer, res imageResolver, rawURL string) error {
	resolution, err := res.Resolve(ctx, rawURL)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Repository: %s\n", resolution.Identity)
	fmt.Fprintf(out, "Image URL:  %s\n", resolution.ImageURL)
	fmt.Fprintf(out, "Source:     %s\n", resolution.Source)
	if resolution.API.Status == resolver.AttemptUnavailable && resolution.API.Err != nil {
		fmt.Fprintf(out, "API:        %s (%v)\n", resolution.API.Status, resolution.API.Err)
	} else {
		fmt.Fprintf(out, "API:        %s\n", resolution.API.Status)
	}
	return nil
}
