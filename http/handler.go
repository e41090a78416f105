package http //nolint:revive // intentional naming for domain clarity

import (
	"context"
	"errors"
	"io"
	"log/slog"
	nethttp "net/http"
	"net/url"

	"github.com/meigma/assetcache"
)

// CacheStatusHeader reports whether a response was served from the cache.
const CacheStatusHeader = "X-Cache"

// hopHeaders are connection-level headers that must not be forwarded.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Resolver answers requests cache-first. *assetcache.Manager satisfies it.
type Resolver interface {
	Resolve(ctx context.Context, req *nethttp.Request) (*nethttp.Response, assetcache.Source, error)
}

// Handler serves requests for a static origin through a Resolver.
//
// Request paths are resolved against the origin, so the handler can be
// mounted as a caching front for the site. Requests that already carry an
// absolute URL (forward-proxy style) are used as is.
type Handler struct {
	resolver Resolver
	origin   *url.URL
	logger   *slog.Logger
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithLogger sets a custom logger for request failures.
func WithLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHandler creates a Handler for origin.
func NewHandler(resolver Resolver, origin *url.URL, opts ...HandlerOption) (*Handler, error) {
	if resolver == nil {
		return nil, errors.New("resolver is nil")
	}
	if origin == nil || !origin.IsAbs() {
		return nil, errors.New("origin must be an absolute URL")
	}
	h := &Handler{
		resolver: resolver,
		origin:   origin,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// ServeHTTP implements nethttp.Handler.
//
// A network failure on a cache miss answers 502 Bad Gateway.
func (h *Handler) ServeHTTP(w nethttp.ResponseWriter, r *nethttp.Request) {
	out := r.Clone(r.Context())
	out.RequestURI = ""
	if !r.URL.IsAbs() {
		out.URL = h.origin.ResolveReference(&url.URL{
			Path:     r.URL.Path,
			RawPath:  r.URL.RawPath,
			RawQuery: r.URL.RawQuery,
		})
		out.Host = h.origin.Host
	}
	for _, name := range hopHeaders {
		out.Header.Del(name)
	}

	resp, src, err := h.resolver.Resolve(r.Context(), out)
	if err != nil {
		h.logger.Warn("fetch failed",
			slog.String("method", r.Method),
			slog.String("url", out.URL.Redacted()),
			slog.Any("error", err))
		nethttp.Error(w, nethttp.StatusText(nethttp.StatusBadGateway), nethttp.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	header := w.Header()
	for key, values := range resp.Header {
		for _, value := range values {
			header.Add(key, value)
		}
	}
	for _, name := range hopHeaders {
		header.Del(name)
	}
	if src == assetcache.SourceCache {
		header.Set(CacheStatusHeader, "HIT")
	} else {
		header.Set(CacheStatusHeader, "MISS")
	}
	w.WriteHeader(resp.StatusCode)
	if r.Method == nethttp.MethodHead {
		return
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		h.logger.Debug("copy response body", slog.Any("error", err))
	}
}
