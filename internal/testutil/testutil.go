// Package testutil provides fake networks and storage wrappers for tests.
package testutil

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/meigma/assetcache/cache"
)

// ErrOffline is returned by MockNetwork for URLs marked as failing.
var ErrOffline = errors.New("mock network offline")

// MockNetwork is an in-memory network keyed by absolute URL.
//
// It records every request so tests can assert how many network calls were
// made. URLs without a registered body answer 404.
type MockNetwork struct {
	mu      sync.Mutex
	bodies  map[string]string
	status  map[string]int
	failing map[string]bool
	calls   map[string]int
	total   int
}

// NewMockNetwork returns a network serving the given URL -> body pairs with 200 OK.
func NewMockNetwork(bodies map[string]string) *MockNetwork {
	n := &MockNetwork{
		bodies:  make(map[string]string, len(bodies)),
		status:  make(map[string]int),
		failing: make(map[string]bool),
		calls:   make(map[string]int),
	}
	for k, v := range bodies {
		n.bodies[k] = v
	}
	return n
}

// Set registers body for url with the given status.
func (n *MockNetwork) Set(url string, status int, body string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.bodies[url] = body
	n.status[url] = status
}

// Fail makes requests for url return ErrOffline.
func (n *MockNetwork) Fail(url string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failing[url] = true
}

// Recover clears a failure set with Fail.
func (n *MockNetwork) Recover(url string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.failing, url)
}

// Fetch implements assetcache.Fetcher.
func (n *MockNetwork) Fetch(ctx context.Context, req *http.Request) (*http.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := req.URL.String()

	n.mu.Lock()
	n.calls[key]++
	n.total++
	failing := n.failing[key]
	body, ok := n.bodies[key]
	status := n.status[key]
	n.mu.Unlock()

	if failing {
		return nil, ErrOffline
	}
	if !ok {
		status = http.StatusNotFound
		body = "not found"
	}
	if status == 0 {
		status = http.StatusOK
	}
	return &http.Response{
		Status:        strconv.Itoa(status) + " " + http.StatusText(status),
		StatusCode:    status,
		Header:        http.Header{"Content-Length": {strconv.Itoa(len(body))}},
		Body:          io.NopCloser(strings.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}, nil
}

// Calls returns how many requests were made for url.
func (n *MockNetwork) Calls(url string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls[url]
}

// Total returns the total number of requests made.
func (n *MockNetwork) Total() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.total
}

// Reset clears recorded calls.
func (n *MockNetwork) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = make(map[string]int)
	n.total = 0
}

// FailingStorage wraps a cache.Storage and injects errors.
type FailingStorage struct {
	cache.Storage

	mu         sync.Mutex
	deleteErrs map[string]error
	keysErr    error
	putErr     error
}

// NewFailingStorage wraps base.
func NewFailingStorage(base cache.Storage) *FailingStorage {
	return &FailingStorage{Storage: base, deleteErrs: make(map[string]error)}
}

// FailDelete makes Delete(name) return err.
func (s *FailingStorage) FailDelete(name string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteErrs[name] = err
}

// FailKeys makes Keys return err.
func (s *FailingStorage) FailKeys(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keysErr = err
}

// FailPut makes Put on every opened store return err.
func (s *FailingStorage) FailPut(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putErr = err
}

// Open opens the underlying store, wrapping it when Put failures are set.
func (s *FailingStorage) Open(ctx context.Context, name string) (cache.Store, error) {
	st, err := s.Storage.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return &failingStore{Store: st, parent: s}, nil
}

// Delete returns the injected error for name, if any.
func (s *FailingStorage) Delete(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	err := s.deleteErrs[name]
	s.mu.Unlock()
	if err != nil {
		return false, err
	}
	return s.Storage.Delete(ctx, name)
}

// Keys returns the injected error, if any.
func (s *FailingStorage) Keys(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	err := s.keysErr
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.Storage.Keys(ctx)
}

type failingStore struct {
	cache.Store
	parent *FailingStorage
}

func (s *failingStore) Put(ctx context.Context, key string, resp *cache.Response) error {
	s.parent.mu.Lock()
	err := s.parent.putErr
	s.parent.mu.Unlock()
	if err != nil {
		return err
	}
	return s.Store.Put(ctx, key, resp)
}
