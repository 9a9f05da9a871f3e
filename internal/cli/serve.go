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

	"github.com/spf13/cobra"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/manager/signals"

	"github.com/Noaahfx/Github-Thumbnail-Extractor/internal/config"
	"github.com/Noaahfx/Github-Thumbnail-Extractor/internal/server"
)

// newServeCmd creates the `serve` command.
// Usage: ogthumb serve [--addr ADDR] [--port PORT]
func newServeCmd(opts *globalOptions) *cobra.Command {
	var (
		addr string
		port int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web interface",
		Long: `Serves the repository form on / and downloads on /save until interrupted.
Images are cached in the cache directory and never deleted by the server; use
'ogthumb prune' to clear stale ones.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.ListenAddr = addr
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runServe(signals.SetupSignalHandler(), cfg)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides listen_addr)")
	cmd.Flags().IntVar(&port, "port", 0, "Listen port (overrides port)")

	return cmd
}

// runServe blocks until ctx is cancelled or the listener fails
func runServe(ctx context.Context, cfg *config.Config) error {
	logger := log.Log.WithName("serve")

	res, err := newResolver(cfg)
	if err != nil {
		return err
	}
	fetch, err := newFetcher(cfg)
	if err != nil {
		return err
	}

	logger.Info("Configured", "cacheDir", fetch.Dir(), "graphql", cfg.HasToken())

	srv := server.NewServer(cfg.ListenAddr, cfg.Port, res, fetch,
		server.WithLogger(log.Log.WithName("server")),
		server.WithRateLimit(cfg.RateLimit, cfg.RateWindow),
	)
	return srv.Start(ctx)
}
