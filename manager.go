package assetcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/meigma/assetcache/cache"
)

// Fetcher performs network requests on behalf of a Manager.
//
// Implementations return the response unmodified; the Manager closes the
// body of responses it consumes during Install.
type Fetcher interface {
	Fetch(ctx context.Context, req *http.Request) (*http.Response, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, req *http.Request) (*http.Response, error)

// Fetch calls f(ctx, req).
func (f FetcherFunc) Fetch(ctx context.Context, req *http.Request) (*http.Response, error) {
	return f(ctx, req)
}

// Source reports where a fetched response came from.
type Source uint8

const (
	// SourceNetwork means the response came from a live network request.
	SourceNetwork Source = iota
	// SourceCache means the response was served from the cache.
	SourceCache
)

func (s Source) String() string {
	if s == SourceCache {
		return "cache"
	}
	return "network"
}

// Manager owns one version of the asset cache and drives its lifecycle.
//
// Install and Activate are serialized. Fetch may be called concurrently from
// any number of goroutines; fetches that arrive while Activate runs wait for
// the cutover to finish.
type Manager struct {
	storage cache.Storage
	network Fetcher

	version        string
	manifest       []string
	origin         *url.URL
	installWorkers int
	logger         *slog.Logger

	// lifecycle serializes Install and Activate.
	lifecycle sync.Mutex

	// mu guards phase and store.
	mu    sync.RWMutex
	phase Phase
	store cache.Store
}

// New creates a Manager for the given storage and network.
//
// [WithVersion] is required. Relative manifest entries require [WithOrigin].
// Manifest entries are resolved to request keys once, here; duplicates are
// dropped, keeping the first occurrence.
func New(storage cache.Storage, network Fetcher, opts ...Option) (*Manager, error) {
	if storage == nil {
		return nil, errors.New("storage is nil")
	}
	if network == nil {
		return nil, errors.New("network fetcher is nil")
	}
	m := &Manager{
		storage:        storage,
		network:        network,
		installWorkers: DefaultInstallConcurrency,
		logger:         slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	if m.version == "" {
		return nil, ErrNoVersion
	}

	keys, err := m.resolveManifest(m.manifest)
	if err != nil {
		return nil, err
	}
	m.manifest = keys
	m.logger = m.logger.With(slog.String("version", m.version))
	return m, nil
}

// Version returns the cache version identifier.
func (m *Manager) Version() string {
	return m.version
}

// Manifest returns the resolved request keys installed by Install.
func (m *Manager) Manifest() []string {
	return append([]string(nil), m.manifest...)
}

// Phase returns the current lifecycle phase.
func (m *Manager) Phase() Phase {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.phase
}

// Install opens the cache for the current version and stores a response for
// every manifest entry.
//
// Install is all-or-nothing. Every asset is fetched and held in memory first;
// if any fetch fails or returns a non-2xx status, the remaining fetches are
// cancelled, nothing is written, the phase becomes [PhaseRedundant], and the
// returned error wraps [ErrInstallFailed]. Install may be retried from the
// redundant phase; existing entries are overwritten.
func (m *Manager) Install(ctx context.Context) error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	m.mu.Lock()
	if m.phase != PhaseParsed && m.phase != PhaseRedundant {
		phase := m.phase
		m.mu.Unlock()
		return fmt.Errorf("%w: install from %s", ErrInvalidTransition, phase)
	}
	m.phase = PhaseInstalling
	m.mu.Unlock()

	store, err := m.install(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.phase = PhaseRedundant
		m.logger.Warn("install failed", slog.Any("error", err))
		return err
	}
	m.store = store
	m.phase = PhaseInstalled
	m.logger.Info("installed", slog.Int("assets", len(m.manifest)))
	return nil
}

func (m *Manager) install(ctx context.Context) (cache.Store, error) {
	store, err := m.storage.Open(ctx, m.version)
	if err != nil {
		return nil, fmt.Errorf("%w: open cache %q: %w", ErrInstallFailed, m.version, err)
	}

	m.logger.Info("caching all assets", slog.Int("assets", len(m.manifest)))

	staged := make([]*cache.Response, len(m.manifest))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.installWorkers)
	for i, key := range m.manifest {
		g.Go(func() error {
			resp, err := m.fetchAsset(gctx, key)
			if err != nil {
				return fmt.Errorf("%w: %s: %w", ErrInstallFailed, key, err)
			}
			staged[i] = resp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, key := range m.manifest {
		if err := store.Put(ctx, key, staged[i]); err != nil {
			m.rollback(store, m.manifest[:i])
			return nil, fmt.Errorf("%w: store %s: %w", ErrInstallFailed, key, err)
		}
	}
	return store, nil
}

// rollback removes entries written by a failed install. Failures are logged.
func (m *Manager) rollback(store cache.Store, keys []string) {
	ctx := context.Background()
	for _, key := range keys {
		if err := store.Delete(ctx, key); err != nil {
			m.logger.Warn("rollback entry failed", slog.String("key", key), slog.Any("error", err))
		}
	}
}

// fetchAsset fetches one manifest entry and captures the response.
func (m *Manager) fetchAsset(ctx context.Context, key string) (*cache.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, key, http.NoBody)
	if err != nil {
		return nil, err
	}
	resp, err := m.network.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	captured, err := cache.FromHTTP(resp)
	if err != nil {
		return nil, err
	}
	captured.URL = key
	return captured, nil
}

// Activate removes every cache whose name is not the current version and
// makes the current cache serve fetches. It returns the removed names in
// storage order.
//
// Activate waits for all deletions before returning. A deletion failure is
// logged and does not stop the others or block activation. Activate must
// follow a successful Install; otherwise it returns [ErrInvalidTransition].
func (m *Manager) Activate(ctx context.Context) ([]string, error) {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	// Fetches block on mu until the cutover completes.
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseInstalled {
		return nil, fmt.Errorf("%w: activate from %s", ErrInvalidTransition, m.phase)
	}
	m.phase = PhaseActivating

	names, err := m.storage.Keys(ctx)
	if err != nil {
		m.phase = PhaseInstalled
		return nil, fmt.Errorf("list caches: %w", err)
	}

	deleted := make([]bool, len(names))
	var g errgroup.Group
	for i, name := range names {
		if name == m.version {
			continue
		}
		g.Go(func() error {
			m.logger.Info("removing old cache", slog.String("cache", name))
			ok, err := m.storage.Delete(ctx, name)
			if err != nil {
				m.logger.Warn("remove old cache failed",
					slog.String("cache", name),
					slog.Any("error", err))
				return nil
			}
			deleted[i] = ok
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // deletion errors are logged, never returned

	var removed []string
	for i, name := range names {
		if deleted[i] {
			removed = append(removed, name)
		}
	}

	m.phase = PhaseActivated
	m.logger.Info("activated", slog.Int("removed", len(removed)))
	return removed, nil
}

// Fetch answers req cache-first with network fallback.
//
// See [Manager.Resolve] for the full policy.
func (m *Manager) Fetch(ctx context.Context, req *http.Request) (*http.Response, error) {
	resp, _, err := m.Resolve(ctx, req)
	return resp, err
}

// Resolve answers req and reports where the response came from.
//
// Before activation every request goes to the network. Once activated, GET
// and HEAD requests are looked up in the current cache by URL; a hit is
// returned without any network activity. On a miss, or for other methods,
// exactly one network request is made and its response is returned
// unmodified. Network responses are never written to the cache. A failed
// network request is returned wrapping [ErrNetwork], with no retry.
func (m *Manager) Resolve(ctx context.Context, req *http.Request) (*http.Response, Source, error) {
	if req == nil || req.URL == nil {
		return nil, SourceNetwork, errors.New("request has no URL")
	}
	target := m.resolveURL(req.URL)

	if cached, ok := m.lookup(ctx, req.Method, target); ok {
		m.logger.Debug("cache hit", slog.String("url", cache.RequestKey(target)))
		return cached.HTTP(req), SourceCache, nil
	}

	out := req
	if target != req.URL {
		out = req.Clone(ctx)
		out.URL = target
		out.Host = ""
	}
	resp, err := m.network.Fetch(ctx, out)
	if err != nil {
		return nil, SourceNetwork, fmt.Errorf("%w: %s %s: %w", ErrNetwork, out.Method, target.Redacted(), err)
	}
	return resp, SourceNetwork, nil
}

// lookup returns the cached response for target if the manager is active and
// the method can be matched. Store errors are logged and treated as misses.
func (m *Manager) lookup(ctx context.Context, method string, target *url.URL) (*cache.Response, bool) {
	if method != "" && method != http.MethodGet && method != http.MethodHead {
		return nil, false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.phase != PhaseActivated || m.store == nil {
		return nil, false
	}

	key := cache.RequestKey(target)
	resp, ok, err := m.store.Get(ctx, key)
	if err != nil {
		m.logger.Warn("cache lookup failed", slog.String("url", key), slog.Any("error", err))
		return nil, false
	}
	return resp, ok
}

// resolveURL resolves a relative request URL against the origin.
func (m *Manager) resolveURL(u *url.URL) *url.URL {
	if u.IsAbs() || m.origin == nil {
		return u
	}
	return m.origin.ResolveReference(u)
}

func (m *Manager) resolveManifest(entries []string) ([]string, error) {
	seen := make(map[string]struct{}, len(entries))
	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		u, err := url.Parse(entry)
		if err != nil {
			return nil, fmt.Errorf("parse manifest entry %q: %w", entry, err)
		}
		if !u.IsAbs() {
			if m.origin == nil {
				return nil, fmt.Errorf("manifest entry %q is relative and no origin is set", entry)
			}
			u = m.origin.ResolveReference(u)
		}
		key := cache.RequestKey(u)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	return keys, nil
}
