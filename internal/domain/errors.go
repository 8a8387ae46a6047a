package domain

import "errors"

// Sentinel errors for domain operations
var (
	// ErrStorageUnavailable indicates the local store could not be opened or written
	ErrStorageUnavailable = errors.New("local storage is unavailable")

	// ErrServerOffline indicates the directory server is unreachable
	ErrServerOffline = errors.New("directory server is unreachable")

	// ErrAuthFailed indicates the directory API rejected the token
	ErrAuthFailed = errors.New("authentication token is invalid")

	// ErrPermissionUnavailable indicates notifications are unsupported or denied
	ErrPermissionUnavailable = errors.New("notification permission is unavailable")

	// ErrSubscriptionFailed indicates push registration failed after permission was granted
	ErrSubscriptionFailed = errors.New("push subscription failed")

	// ErrNoBackground indicates the platform has no background execution context
	ErrNoBackground = errors.New("background execution context is unavailable")
)
