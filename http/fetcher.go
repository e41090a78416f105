// Package http provides the network side of the asset cache: a Fetcher backed
// by net/http and an http.Handler that serves requests through a Manager.
package http //nolint:revive // intentional naming for domain clarity

import (
	"context"
	nethttp "net/http"
)

// DefaultUserAgent is sent when no User-Agent header is configured.
const DefaultUserAgent = "assetcache/1"

// Fetcher performs live network requests with a net/http client.
// It satisfies assetcache.Fetcher.
type Fetcher struct {
	client  *nethttp.Client
	headers nethttp.Header
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithClient sets the HTTP client used for requests.
func WithClient(client *nethttp.Client) Option {
	return func(f *Fetcher) {
		f.client = client
	}
}

// WithHeaders sets additional headers on each request.
func WithHeaders(headers nethttp.Header) Option {
	return func(f *Fetcher) {
		if headers == nil {
			return
		}
		f.headers = headers.Clone()
	}
}

// WithHeader sets a single header on each request.
func WithHeader(key, value string) Option {
	return func(f *Fetcher) {
		if f.headers == nil {
			f.headers = make(nethttp.Header)
		}
		f.headers.Set(key, value)
	}
}

// WithUserAgent sets the User-Agent header on each request.
func WithUserAgent(ua string) Option {
	return WithHeader("User-Agent", ua)
}

// NewFetcher creates a Fetcher. Without [WithClient] it uses
// nethttp.DefaultClient.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{client: nethttp.DefaultClient}
	for _, opt := range opts {
		opt(f)
	}
	if f.client == nil {
		f.client = nethttp.DefaultClient
	}
	return f
}

// Fetch sends req and returns the response unmodified.
//
// Configured headers are added only where req does not already set them.
// The caller must close the response body.
func (f *Fetcher) Fetch(ctx context.Context, req *nethttp.Request) (*nethttp.Response, error) {
	out := req.Clone(ctx)
	// Inbound server requests carry RequestURI, which clients reject.
	out.RequestURI = ""
	for key, values := range f.headers {
		if out.Header.Get(key) != "" {
			continue
		}
		for _, value := range values {
			out.Header.Add(key, value)
		}
	}
	if out.Header.Get("User-Agent") == "" {
		out.Header.Set("User-Agent", DefaultUserAgent)
	}
	return f.client.Do(out)
}
