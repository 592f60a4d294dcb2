// Package store defines the key/value persistence contract used by the
// session store, with an in-memory implementation. Durable implementations
// live in the sqlite and redis subpackages.
package store

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrClosed is returned by adapters used after Close.
var ErrClosed = errors.New("store: adapter closed")

// Adapter defines the interface for persistence backends.
// Implementations must be thread-safe.
type Adapter interface {
	// Get retrieves a value by key. Returns nil, false, nil if not found.
	Get(ctx context.Context, key string) (json.RawMessage, bool, error)

	// Set stores a value by key, replacing any previous value.
	Set(ctx context.Context, key string, value json.RawMessage) error

	// Delete removes a key. No error if key doesn't exist.
	Delete(ctx context.Context, key string) error

	// Keys returns all keys starting with prefix. An empty prefix matches all keys.
	Keys(ctx context.Context, prefix string) ([]string, error)
}
