//go:build integration

package integration

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/assetcache"
	"github.com/meigma/assetcache/cache/disk"
	assethttp "github.com/meigma/assetcache/http"
)

var manifest = []string{"/index.html", "/styles/main.css", "/js/main.js"}

func fetchBody(t *testing.T, m *assetcache.Manager, rawURL string) (string, assetcache.Source) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, rawURL, http.NoBody)
	require.NoError(t, err)
	resp, src, err := m.Resolve(context.Background(), req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body), src
}

func TestOfflineAfterInstall(t *testing.T) {
	ctx := context.Background()
	container, origin := startOrigin(t, siteFiles)

	storage, err := disk.New(t.TempDir(), disk.WithCompression(disk.CompressionZstd))
	require.NoError(t, err)
	defer storage.Close()

	m, err := assetcache.New(storage, assethttp.NewFetcher(),
		assetcache.WithVersion("site-v1"),
		assetcache.WithOrigin(origin),
		assetcache.WithManifest(manifest...),
	)
	require.NoError(t, err)
	require.NoError(t, m.Install(ctx))
	_, err = m.Activate(ctx)
	require.NoError(t, err)

	body, src := fetchBody(t, m, origin.String()+"/vault.html")
	assert.Equal(t, siteFiles["vault.html"], body)
	assert.Equal(t, assetcache.SourceNetwork, src)

	timeout := 5 * time.Second
	require.NoError(t, container.Stop(ctx, &timeout))

	body, src = fetchBody(t, m, origin.String()+"/index.html")
	assert.Equal(t, siteFiles["index.html"], body)
	assert.Equal(t, assetcache.SourceCache, src)

	req, err := http.NewRequest(http.MethodGet, origin.String()+"/vault.html", http.NoBody)
	require.NoError(t, err)
	_, err = m.Fetch(ctx, req)
	assert.ErrorIs(t, err, assetcache.ErrNetwork)
}

func TestRedeployPicksUpNewContent(t *testing.T) {
	ctx := context.Background()
	container, origin := startOrigin(t, siteFiles)

	dir := t.TempDir()
	storage, err := disk.New(dir)
	require.NoError(t, err)
	defer storage.Close()

	v1, err := assetcache.New(storage, assethttp.NewFetcher(),
		assetcache.WithVersion("site-v1"),
		assetcache.WithOrigin(origin),
		assetcache.WithManifest(manifest...),
	)
	require.NoError(t, err)
	require.NoError(t, v1.Install(ctx))
	_, err = v1.Activate(ctx)
	require.NoError(t, err)

	updated := "body{margin:0;background:#000}"
	require.NoError(t, container.CopyToContainer(ctx, []byte(updated), docRoot+"/styles/main.css", 0o644))

	// Same version: the stale stylesheet keeps being served from cache.
	body, src := fetchBody(t, v1, origin.String()+"/styles/main.css")
	assert.Equal(t, siteFiles["styles/main.css"], body)
	assert.Equal(t, assetcache.SourceCache, src)

	v2, err := assetcache.New(storage, assethttp.NewFetcher(),
		assetcache.WithVersion("site-v2"),
		assetcache.WithOrigin(origin),
		assetcache.WithManifest(manifest...),
	)
	require.NoError(t, err)
	require.NoError(t, v2.Install(ctx))
	removed, err := v2.Activate(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"site-v1"}, removed)

	body, src = fetchBody(t, v2, origin.String()+"/styles/main.css")
	assert.Equal(t, updated, body)
	assert.Equal(t, assetcache.SourceCache, src)

	keys, err := storage.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"site-v2"}, keys)
}
