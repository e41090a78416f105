// Package config loads CLI configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds settings shared by every assetcache command.
// Command-line flags override these values.
type Config struct {
	CacheDir           string        `env:"ASSETCACHE_DIR"`
	Origin             string        `env:"ASSETCACHE_ORIGIN"              envDefault:"http://localhost:8080"`
	Manifest           string        `env:"ASSETCACHE_MANIFEST"`
	Version            string        `env:"ASSETCACHE_VERSION"`
	Compress           bool          `env:"ASSETCACHE_COMPRESS"`
	Listen             string        `env:"ASSETCACHE_LISTEN"              envDefault:":8081"`
	InstallConcurrency int           `env:"ASSETCACHE_INSTALL_CONCURRENCY" envDefault:"6"`
	ShutdownTimeout    time.Duration `env:"ASSETCACHE_SHUTDOWN_TIMEOUT"    envDefault:"10s"`
	LogLevel           string        `env:"ASSETCACHE_LOG_LEVEL"           envDefault:"info"`
	LogFormat          string        `env:"ASSETCACHE_LOG_FORMAT"          envDefault:"text"`
}

// Load parses configuration from environment variables.
// An unset cache dir defaults to assetcache under the user cache directory.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.CacheDir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			base = os.TempDir()
		}
		cfg.CacheDir = filepath.Join(base, "assetcache")
	}
	return cfg, nil
}

// OriginURL parses Origin and requires it to be absolute.
func (c Config) OriginURL() (*url.URL, error) {
	u, err := url.Parse(c.Origin)
	if err != nil {
		return nil, fmt.Errorf("parse origin: %w", err)
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("origin %q must be an absolute URL", c.Origin)
	}
	return u, nil
}

// Logger builds a slog.Logger writing to w in the configured format and level.
func (c Config) Logger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return nil, fmt.Errorf("log level %q: %w", c.LogLevel, err)
	}
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(c.LogFormat) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, errors.New("log format must be text or json")
	}
}
