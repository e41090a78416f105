package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/meigma/assetcache"
	"github.com/meigma/assetcache/cache/disk"
	assethttp "github.com/meigma/assetcache/http"
	"github.com/meigma/assetcache/internal/config"
	"github.com/meigma/assetcache/manifest"
)

// app carries configuration and dependencies shared by subcommands.
type app struct {
	cfg    config.Config
	out    io.Writer
	errOut io.Writer
	logger *slog.Logger
}

func newApp(out, errOut io.Writer) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, out: out, errOut: errOut}, nil
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "assetcache",
		Short: "Offline-first versioned asset cache for static sites",
		Long: `assetcache keeps a versioned cache of a static site's assets.

install fetches every manifest asset into the cache for the current version.
activate removes caches left by previous versions. serve answers requests
cache-first and falls back to the origin on a miss.

Every flag can also be set through an ASSETCACHE_* environment variable.

Examples:
  assetcache install --version zyzz-legacy-v2 --origin https://zyzz.example
  assetcache serve --manifest assets.yaml --listen :8081
  assetcache keys`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := a.cfg.Logger(a.errOut)
			if err != nil {
				return err
			}
			a.logger = logger
			return nil
		},
	}
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfg.CacheDir, "cache-dir", a.cfg.CacheDir, "directory holding cache stores")
	flags.StringVar(&a.cfg.Origin, "origin", a.cfg.Origin, "site origin used to resolve relative assets")
	flags.StringVar(&a.cfg.Manifest, "manifest", a.cfg.Manifest, "manifest file (YAML or JSON); built-in site list when empty")
	flags.StringVar(&a.cfg.Version, "version", a.cfg.Version, "cache version identifier; overrides the manifest")
	flags.BoolVar(&a.cfg.Compress, "compress", a.cfg.Compress, "store new entries zstd-compressed")
	flags.IntVar(&a.cfg.InstallConcurrency, "install-concurrency", a.cfg.InstallConcurrency, "assets fetched in parallel during install")
	flags.StringVar(&a.cfg.LogLevel, "log-level", a.cfg.LogLevel, "log level (debug, info, warn, error)")
	flags.StringVar(&a.cfg.LogFormat, "log-format", a.cfg.LogFormat, "log format (text, json)")

	root.AddCommand(
		a.installCmd(),
		a.activateCmd(),
		a.keysCmd(),
		a.purgeCmd(),
		a.serveCmd(),
	)
	return root
}

func (a *app) openStorage() (*disk.Storage, error) {
	compression := disk.CompressionNone
	if a.cfg.Compress {
		compression = disk.CompressionZstd
	}
	return disk.New(a.cfg.CacheDir, disk.WithCompression(compression))
}

// loadManifest returns the configured manifest and the effective version.
func (a *app) loadManifest() (*manifest.Manifest, string, error) {
	m := manifest.Default()
	if a.cfg.Manifest != "" {
		loaded, err := manifest.Load(a.cfg.Manifest)
		if err != nil {
			return nil, "", err
		}
		m = loaded
	}
	version := a.cfg.Version
	if version == "" {
		version = m.Version
	}
	if version == "" {
		return nil, "", errors.New("no cache version: set --version or a version in the manifest")
	}
	return m, version, nil
}

func (a *app) newManager(storage *disk.Storage) (*assetcache.Manager, error) {
	m, version, err := a.loadManifest()
	if err != nil {
		return nil, err
	}
	origin, err := a.cfg.OriginURL()
	if err != nil {
		return nil, err
	}
	mgr, err := assetcache.New(storage, assethttp.NewFetcher(),
		assetcache.WithVersion(version),
		assetcache.WithOrigin(origin),
		assetcache.WithManifest(m.Assets...),
		assetcache.WithInstallConcurrency(a.cfg.InstallConcurrency),
		assetcache.WithLogger(a.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("create cache manager: %w", err)
	}
	return mgr, nil
}
