package assetcache

import "errors"

var (
	// ErrNoVersion is returned when a Manager is built without a version identifier.
	ErrNoVersion = errors.New("cache version is empty")

	// ErrInstallFailed is returned when any manifest asset could not be fetched
	// during install. Nothing is written to the cache in that case.
	ErrInstallFailed = errors.New("install failed")

	// ErrInvalidTransition is returned when a lifecycle phase is triggered
	// out of order, such as Activate before a successful Install.
	ErrInvalidTransition = errors.New("invalid lifecycle transition")

	// ErrNetwork is returned when a cache miss falls back to the network and
	// the network request fails.
	ErrNetwork = errors.New("network request failed")
)
