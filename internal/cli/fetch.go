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
)

// newFetchCmd creates the `fetch` command.
// Usage: ogthumb fetch <repository-url>
func newFetchCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch <repository-url>",
		Short: "Download the Open Graph image of a repository into the cache",
		Long: `Resolves the repository's Open Graph image and downloads it into the cache
directory as <owner>-<name>-opengraph.<ext>, then prints the file path. An
image already in the cache is not downloaded again.`,
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
			fetch, err := newFetcher(cfg)
			if err != nil {
				return err
			}
			return runFetchWith(cmd.Context(), cmd.OutOrStdout(), res, fetch, args[0])
		},
	}
}

func runFetchWith(ctx context.Context, out io.Writer, res imageResolver, fetch imageFetcher, rawURL string) error {
	resolution, err := res.Resolve(ctx, rawURL)
	if err != nil {
		return err
	}

	img, err := fetch.Fetch(ctx, resolution.ImageURL, resolution.Identity)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, img.Path)
	return nil
}
