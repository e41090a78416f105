package http_test

import (
	"context"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/assetcache"
	"github.com/meigma/assetcache/cache/memory"
	assethttp "github.com/meigma/assetcache/http"
)

type originServer struct {
	*httptest.Server
	hits atomic.Int32
}

func newOrigin(t *testing.T, files map[string]string) *originServer {
	t.Helper()
	o := &originServer{}
	o.Server = httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		o.hits.Add(1)
		body, ok := files[r.URL.Path]
		if !ok {
			nethttp.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(o.Close)
	return o
}

func newActiveManager(t *testing.T, o *originServer, manifest ...string) (*assetcache.Manager, *url.URL) {
	t.Helper()
	u, err := url.Parse(o.URL)
	require.NoError(t, err)

	m, err := assetcache.New(memory.New(), assethttp.NewFetcher(assethttp.WithClient(o.Client())),
		assetcache.WithVersion("v1"),
		assetcache.WithOrigin(u),
		assetcache.WithManifest(manifest...),
	)
	require.NoError(t, err)
	require.NoError(t, m.Install(context.Background()))
	_, err = m.Activate(context.Background())
	require.NoError(t, err)
	return m, u
}

func TestHandlerServesFromCache(t *testing.T) {
	t.Parallel()

	o := newOrigin(t, map[string]string{
		"/":           "home",
		"/index.html": "index",
		"/vault.html": "vault",
	})
	m, u := newActiveManager(t, o, "/", "/index.html")
	o.hits.Store(0)

	h, err := assethttp.NewHandler(m, u)
	require.NoError(t, err)
	front := httptest.NewServer(h)
	t.Cleanup(front.Close)

	tests := []struct {
		name      string
		path      string
		wantBody  string
		wantCache string
		wantCode  int
	}{
		{name: "root cached", path: "/", wantBody: "home", wantCache: "HIT", wantCode: nethttp.StatusOK},
		{name: "page cached", path: "/index.html", wantBody: "index", wantCache: "HIT", wantCode: nethttp.StatusOK},
		{name: "page not in manifest", path: "/vault.html", wantBody: "vault", wantCache: "MISS", wantCode: nethttp.StatusOK},
		{name: "missing page", path: "/nope.html", wantBody: "404 page not found\n", wantCache: "MISS", wantCode: nethttp.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := front.Client().Get(front.URL + tt.path)
			require.NoError(t, err)
			defer resp.Body.Close()
			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCode, resp.StatusCode)
			assert.Equal(t, tt.wantBody, string(body))
			assert.Equal(t, tt.wantCache, resp.Header.Get(assethttp.CacheStatusHeader))
		})
	}
	assert.Equal(t, int32(2), o.hits.Load(), "only misses reach the origin")
}

func TestHandlerOfflineOrigin(t *testing.T) {
	t.Parallel()

	o := newOrigin(t, map[string]string{"/index.html": "index"})
	m, u := newActiveManager(t, o, "/index.html")

	h, err := assethttp.NewHandler(m, u)
	require.NoError(t, err)

	o.Close()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(nethttp.MethodGet, "/index.html", nethttp.NoBody))
	assert.Equal(t, nethttp.StatusOK, rec.Code)
	assert.Equal(t, "index", rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(nethttp.MethodGet, "/audio.html", nethttp.NoBody))
	assert.Equal(t, nethttp.StatusBadGateway, rec.Code)
}

func TestHandlerHead(t *testing.T) {
	t.Parallel()

	o := newOrigin(t, map[string]string{"/styles/main.css": "body{margin:0}"})
	m, u := newActiveManager(t, o, "/styles/main.css")

	h, err := assethttp.NewHandler(m, u)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(nethttp.MethodHead, "/styles/main.css", nethttp.NoBody))
	assert.Equal(t, nethttp.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Equal(t, "HIT", rec.Header().Get(assethttp.CacheStatusHeader))
}

func TestFetcherSetsHeaders(t *testing.T) {
	t.Parallel()

	var gotUA, gotExtra atomic.Value
	srv := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		gotUA.Store(r.Header.Get("User-Agent"))
		gotExtra.Store(r.Header.Get("X-Site"))
	}))
	t.Cleanup(srv.Close)

	f := assethttp.NewFetcher(
		assethttp.WithClient(srv.Client()),
		assethttp.WithHeader("X-Site", "zyzz"),
	)
	req, err := nethttp.NewRequest(nethttp.MethodGet, srv.URL, nethttp.NoBody)
	require.NoError(t, err)
	resp, err := f.Fetch(context.Background(), req)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, assethttp.DefaultUserAgent, gotUA.Load())
	assert.Equal(t, "zyzz", gotExtra.Load())

	f = assethttp.NewFetcher(assethttp.WithClient(srv.Client()), assethttp.WithUserAgent("custom/2"))
	resp, err = f.Fetch(context.Background(), req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, "custom/2", gotUA.Load())
}

func TestNewHandlerValidation(t *testing.T) {
	t.Parallel()

	_, err := assethttp.NewHandler(nil, &url.URL{Scheme: "https", Host: "example.com"})
	require.Error(t, err)

	o := newOrigin(t, nil)
	m, _ := newActiveManager(t, o)
	_, err = assethttp.NewHandler(m, &url.URL{Path: "/"})
	require.Error(t, err)
}
