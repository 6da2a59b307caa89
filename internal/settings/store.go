package settings

import (
	"context"
	"errors"
)

// Common errors.
var (
	ErrNotFound    = errors.New("setting not found")
	ErrStoreClosed = errors.New("settings store is closed")
)

// Store persists small key/value settings that must survive restarts: the
// login session, notification permission and subscription, and the sticky
// denial and backoff markers of the push manager.
type Store interface {
	// Get returns the value stored under key.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Removing a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close closes the store.
	Close() error
}
