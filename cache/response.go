package cache

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
)

// Response is a captured HTTP response.
type Response struct {
	URL    string
	Status int
	Header http.Header
	Body   []byte
}

// FromHTTP reads resp to completion and captures it.
// The caller still owns resp and must close its body.
func FromHTTP(resp *http.Response) (*Response, error) {
	var body []byte
	if resp.Body != nil {
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read response body: %w", err)
		}
		body = b
	}
	out := &Response{
		Status: resp.StatusCode,
		Header: resp.Header.Clone(),
		Body:   body,
	}
	if resp.Request != nil && resp.Request.URL != nil {
		out.URL = resp.Request.URL.String()
	}
	if out.Header == nil {
		out.Header = make(http.Header)
	}
	return out, nil
}

// OK reports whether the status is in the 2xx range.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status <= 299
}

// Clone returns a deep copy of r.
func (r *Response) Clone() *Response {
	if r == nil {
		return nil
	}
	out := &Response{
		URL:    r.URL,
		Status: r.Status,
		Header: r.Header.Clone(),
	}
	if r.Body != nil {
		out.Body = bytes.Clone(r.Body)
	}
	if out.Header == nil {
		out.Header = make(http.Header)
	}
	return out
}

// HTTP builds an *http.Response answering req from the captured data.
// HEAD requests receive an empty body with the stored Content-Length.
func (r *Response) HTTP(req *http.Request) *http.Response {
	header := r.Header.Clone()
	if header == nil {
		header = make(http.Header)
	}
	if header.Get("Content-Length") == "" {
		header.Set("Content-Length", strconv.Itoa(len(r.Body)))
	}
	body := r.Body
	if req != nil && req.Method == http.MethodHead {
		body = nil
	}
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", r.Status, http.StatusText(r.Status)),
		StatusCode:    r.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(r.Body)),
		Request:       req,
	}
}

// RequestKey returns the lookup key for u: the absolute URL without fragment.
func RequestKey(u *url.URL) string {
	if u == nil {
		return ""
	}
	c := *u
	c.Fragment = ""
	c.RawFragment = ""
	return c.String()
}
