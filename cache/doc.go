// Package cache defines the storage capability used by the asset cache manager.
//
// A [Storage] holds named, versioned [Store] instances. Each Store maps a
// request key (an absolute URL without fragment) to a captured [Response].
// The manager only ever appends to the current store and deletes whole stores
// from previous versions, so implementations need no cross-store
// transactions.
//
// Two implementations ship with the module: cache/memory for in-process use
// and tests, and cache/disk for persistence across restarts.
package cache
