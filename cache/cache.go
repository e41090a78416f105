package cache

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a named store does not exist.
var ErrNotFound = errors.New("cache store not found")

// Store holds captured responses for one cache version.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the response stored under key.
	// Returns nil, false, nil if the key is not cached.
	Get(ctx context.Context, key string) (*Response, bool, error)

	// Put stores resp under key, replacing any existing entry.
	Put(ctx context.Context, key string, resp *Response) error

	// Delete removes the entry for key.
	// Implementations should treat missing entries as a no-op.
	Delete(ctx context.Context, key string) error

	// Keys returns the request keys currently stored.
	Keys(ctx context.Context) ([]string, error)
}

// Storage is the process-wide set of named stores.
//
// Implementations must be safe for concurrent use.
type Storage interface {
	// Open returns the store for name, creating it if absent.
	Open(ctx context.Context, name string) (Store, error)

	// Has reports whether a store named name exists.
	Has(ctx context.Context, name string) (bool, error)

	// Delete removes the store named name and all of its entries.
	// It reports whether a store was removed.
	Delete(ctx context.Context, name string) (bool, error)

	// Keys returns the names of all stores in creation order.
	Keys(ctx context.Context) ([]string, error)
}
