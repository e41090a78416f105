// Package assetcache provides an offline-first, versioned cache of static
// site assets.
//
// A [Manager] owns one generation of cached assets, named by a version
// identifier. Its lifecycle mirrors a browser service worker:
//
//   - Install fetches every URL in the asset manifest and stores the
//     responses in the cache for the current version. Install is
//     all-or-nothing: if any fetch fails, nothing is written.
//   - Activate deletes the caches of every other version. After it returns,
//     the current version's cache is the only one left.
//   - Fetch answers requests cache-first, falling back to the network on a
//     miss. Network responses are not written back to the cache.
//
// # Quick Start
//
//	storage := memory.New()
//	m, err := assetcache.New(storage, assethttp.NewFetcher(),
//	    assetcache.WithVersion("site-v2"),
//	    assetcache.WithOrigin(origin),
//	    assetcache.WithManifest("/", "/index.html", "/styles/main.css"),
//	)
//	if err != nil {
//	    return err
//	}
//	if err := m.Install(ctx); err != nil {
//	    return err
//	}
//	if _, err := m.Activate(ctx); err != nil {
//	    return err
//	}
//	resp, err := m.Fetch(ctx, req)
//
// # Events
//
// Hosts that deliver lifecycle triggers asynchronously can feed them to
// [Manager.Run] as [Event] values. Lifecycle events are handled one at a
// time in arrival order; fetch events are answered concurrently.
//
// Storage backends live in cache/memory and cache/disk. The http subpackage
// provides a network [Fetcher] and an http.Handler that serves through a
// Manager.
package assetcache
