package assetcache

import (
	"errors"
	"log/slog"
	"net/url"
)

// Option configures a Manager.
type Option func(*Manager) error

// DefaultInstallConcurrency is the number of manifest assets fetched in
// parallel during Install.
const DefaultInstallConcurrency = 6

// WithVersion sets the cache version identifier. Required.
//
// Changing the version is the only way to make clients refresh every cached
// asset: the next Activate removes caches stored under any other version.
func WithVersion(version string) Option {
	return func(m *Manager) error {
		m.version = version
		return nil
	}
}

// WithManifest sets the asset URLs fetched during Install.
// Relative entries are resolved against the origin set by [WithOrigin].
func WithManifest(urls ...string) Option {
	return func(m *Manager) error {
		m.manifest = append([]string(nil), urls...)
		return nil
	}
}

// WithOrigin sets the base URL used to resolve relative manifest entries and
// relative request URLs.
func WithOrigin(origin *url.URL) Option {
	return func(m *Manager) error {
		if origin == nil {
			return errors.New("origin is nil")
		}
		if !origin.IsAbs() {
			return errors.New("origin must be an absolute URL")
		}
		m.origin = origin
		return nil
	}
}

// WithLogger sets a custom logger for lifecycle events.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) error {
		if logger != nil {
			m.logger = logger
		}
		return nil
	}
}

// WithInstallConcurrency sets how many manifest assets are fetched at once.
// Values < 1 force serial fetching.
func WithInstallConcurrency(n int) Option {
	return func(m *Manager) error {
		if n < 1 {
			n = 1
		}
		m.installWorkers = n
		return nil
	}
}
