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

// Package cli implements the ogthumb command tree.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/Noaahfx/Github-Thumbnail-Extractor/internal/config"
	"github.com/Noaahfx/Github-Thumbnail-Extractor/internal/errdefs"
	"github.com/Noaahfx/Github-Thumbnail-Extractor/internal/fetcher"
	"github.com/Noaahfx/Github-Thumbnail-Extractor/internal/github"
	"github.com/Noaahfx/Github-Thumbnail-Extractor/internal/resolver"
)

// version is set at build time via -ldflags.
var version = "dev"

// globalOptions are the persistent flags shared by every subcommand
type globalOptions struct {
	configPath string
	cacheDir   string
	verbose    bool
}

// NewRootCmd creates the top-level `ogthumb` command.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "ogthumb",
		Short: "Download the social preview image of a GitHub repository",
		Long: `ogthumb finds the Open Graph image GitHub shows for a repository,
downloads it into a local cache and serves it for saving through a small web
interface.

Set GITHUB_TOKEN (or GH_TOKEN) to look the image up through the GraphQL API
first; without a token the public repository page is used.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log.SetLogger(zap.New(zap.UseDevMode(opts.verbose), zap.WriteTo(cmd.ErrOrStderr())))
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to a TOML config file")
	root.PersistentFlags().StringVar(&opts.cacheDir, "cache-dir", "", "Directory holding downloaded images (overrides cache_dir)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newResolveCmd(opts))
	root.AddCommand(newFetchCmd(opts))
	root.AddCommand(newPruneCmd(opts))

	return root
}

// Execute runs the root command.
func Execute() {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", errdefs.Message(err))
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies flag overrides
func loadConfig(opts *globalOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.cacheDir != "" {
		cfg.CacheDir = opts.cacheDir
	}
	return cfg, nil
}

// newResolver builds a Resolver, with the GraphQL path only when a token is set
func newResolver(cfg *config.Config) (*resolver.Resolver, error) {
	pages := github.NewPageClient(
		github.WithBaseURL(cfg.GitHubBaseURL),
		github.WithTimeout(cfg.APITimeout),
	)
	if !cfg.HasToken() {
		return resolver.New(pages), nil
	}

	api, err := github.NewAPIClient(cfg.GitHubToken,
		github.WithBaseURL(cfg.APIBaseURL),
		github.WithTimeout(cfg.APITimeout),
	)
	if err != nil {
		return nil, err
	}
	return resolver.New(pages, resolver.WithAPI(api)), nil
}

// newFetcher builds a Fetcher over the configured cache directory
func newFetcher(cfg *config.Config) (*fetcher.Fetcher, error) {
	return fetcher.New(cfg.CacheDir,
		fetcher.WithTimeout(cfg.DownloadTimeout),
		fetcher.WithWebURL(cfg.GitHubBaseURL),
		fetcher.WithRetryConfig(&fetcher.RetryConfig{
			MaxRetries:     cfg.MaxRetries,
			InitialBackoff: cfg.InitialBackoff,
			BackoffFactor:  2.0,
			MaxJitter:      cfg.MaxJitter,
		}),
	)
}
