// Package memory provides an in-process implementation of cache.Storage.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/meigma/assetcache/cache"
)

// Storage keeps named stores in memory.
//
// Store names and request keys are returned in insertion order.
type Storage struct {
	mu     sync.Mutex
	names  []string
	stores map[string]*Store
}

// Interface compliance.
var (
	_ cache.Storage = (*Storage)(nil)
	_ cache.Store   = (*Store)(nil)
)

// New creates an empty Storage.
func New() *Storage {
	return &Storage{stores: make(map[string]*Store)}
}

// Open returns the store for name, creating it if absent.
func (s *Storage) Open(_ context.Context, name string) (cache.Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.stores[name]; ok {
		return st, nil
	}
	st := &Store{entries: make(map[string]*cache.Response)}
	s.stores[name] = st
	s.names = append(s.names, name)
	return st, nil
}

// Has reports whether a store named name exists.
func (s *Storage) Has(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.stores[name]
	return ok, nil
}

// Delete removes the store named name.
func (s *Storage) Delete(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.stores[name]; !ok {
		return false, nil
	}
	delete(s.stores, name)
	s.names = slices.DeleteFunc(s.names, func(n string) bool { return n == name })
	return true, nil
}

// Keys returns store names in creation order.
func (s *Storage) Keys(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.names), nil
}

// Store is an in-memory cache.Store.
type Store struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]*cache.Response
}

// Get returns a copy of the response stored under key.
func (s *Store) Get(_ context.Context, key string) (*cache.Response, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	resp, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	return resp.Clone(), true, nil
}

// Put stores a copy of resp under key, replacing any existing entry.
func (s *Store) Put(_ context.Context, key string, resp *cache.Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[key]; !ok {
		s.order = append(s.order, key)
	}
	s.entries[key] = resp.Clone()
	return nil
}

// Delete removes the entry for key.
func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[key]; !ok {
		return nil
	}
	delete(s.entries, key)
	s.order = slices.DeleteFunc(s.order, func(k string) bool { return k == key })
	return nil
}

// Keys returns request keys in insertion order.
func (s *Store) Keys(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.order), nil
}

// Len returns the number of cached entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
