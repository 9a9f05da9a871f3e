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

// Package config loads ogthumb settings from a TOML file, the environment
// and command line overrides, in that order.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/jmgilman/go/errors"
)

// tokenEnvVars lists the environment variables checked for a GitHub token,
// in priority order.
var tokenEnvVars = []string{
	"GITHUB_TOKEN",
	"GH_TOKEN",
}

// Config holds every tunable of the server and the CLI
type Config struct {
	ListenAddr string `toml:"listen_addr"`
	Port       int    `toml:"port"`
	CacheDir   string `toml:"cache_dir"`

	// GitHubToken enables the GraphQL lookup. Empty disables it.
	GitHubToken   string `toml:"github_token"`
	GitHubBaseURL string `toml:"github_base_url"`
	APIBaseURL    string `toml:"api_base_url"`

	APITimeout      time.Duration `toml:"api_timeout"`
	DownloadTimeout time.Duration `toml:"download_timeout"`

	MaxRetries     int           `toml:"max_retries"`
	InitialBackoff time.Duration `toml:"initial_backoff"`
	MaxJitter      time.Duration `toml:"max_jitter"`

	RateLimit  int           `toml:"rate_limit"`
	RateWindow time.Duration `toml:"rate_window"`
}

// Default returns the built-in settings
func Default() *Config {
	return &Config{
		ListenAddr:      "0.0.0.0",
		Port:            8000,
		CacheDir:        "downloads",
		GitHubBaseURL:   "https://github.com",
		APIBaseURL:      "https://api.github.com/",
		APITimeout:      20 * time.Second,
		DownloadTimeout: 60 * time.Second,
		MaxRetries:      5,
		InitialBackoff:  time.Second,
		MaxJitter:       350 * time.Millisecond,
		RateLimit:       10,
		RateWindow:      time.Second,
	}
}

// Load reads path over the defaults (an empty path skips the file), then
// applies the token from the environment if one is set.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		meta, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, errors.Wrapf(err, errors.CodeInvalidConfig, "failed to read config file %s", path)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, 0, len(undecoded))
			for _, k := range undecoded {
				keys = append(keys, k.String())
			}
			err := errors.Newf(errors.CodeInvalidConfig, "unknown keys in %s: %s", path, strings.Join(keys, ", "))
			return nil, errors.WithContext(err, "file", path)
		}
	}

	if token := TokenFromEnv(); token != "" {
		cfg.GitHubToken = token
	}
	cfg.GitHubToken = strings.TrimSpace(cfg.GitHubToken)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// TokenFromEnv returns the first non-blank token among GITHUB_TOKEN and
// GH_TOKEN, trimmed. No token is not an error.
func TokenFromEnv() string {
	for _, env := range tokenEnvVars {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			return v
		}
	}
	return ""
}

// Validate checks that every setting is usable
func (c *Config) Validate() error {
	var problems []string

	if c.Port <= 0 || c.Port > 65535 {
		problems = append(problems, fmt.Sprintf("port %d out of range", c.Port))
	}
	if c.CacheDir == "" {
		problems = append(problems, "cache_dir is empty")
	}
	if c.GitHubBaseURL == "" {
		problems = append(problems, "github_base_url is empty")
	}
	if c.APIBaseURL == "" {
		problems = append(problems, "api_base_url is empty")
	}
	if c.APITimeout <= 0 {
		problems = append(problems, "api_timeout must be positive")
	}
	if c.DownloadTimeout <= 0 {
		problems = append(problems, "download_timeout must be positive")
	}
	if c.MaxRetries < 0 {
		problems = append(problems, "max_retries must not be negative")
	}
	if c.InitialBackoff <= 0 {
		problems = append(problems, "initial_backoff must be positive")
	}
	if c.MaxJitter < 0 {
		problems = append(problems, "max_jitter must not be negative")
	}
	if c.RateLimit <= 0 {
		problems = append(problems, "rate_limit must be positive")
	}
	if c.RateWindow <= 0 {
		problems = append(problems, "rate_window must be positive")
	}

	if len(problems) > 0 {
		return errors.Newf(errors.CodeInvalidConfig, "invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// HasToken reports whether the GraphQL path is enabled
func (c *Config) HasToken() bool {
	return c.GitHubToken != ""
}

// Addr returns the listen address as host:port
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.ListenAddr, c.Port)
}
