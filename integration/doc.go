//go:build integration

// Package integration provides integration tests for the asset cache.
//
// These tests require Docker and serve the site from a real nginx container
// using testcontainers.
// Run with: go test -tags=integration ./integration/...
package integration
