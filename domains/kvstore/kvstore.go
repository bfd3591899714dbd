package kvstore

import (
	"context"
)

// Store is an asynchronous string-keyed storage that survives process restarts.
// Every implementation must be safe for concurrent use.
type Store interface {
	// Get returns the value stored under key.
	// found is false (with a nil error) when the key does not exist.
	Get(ctx context.Context, key string) (value string, found bool, err error)

	// Set upserts the value stored under key.
	Set(ctx context.Context, key, value string) error

	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error

	// MultiGet returns the values of the keys that exist. Missing keys are absent from the map.
	MultiGet(ctx context.Context, keys []string) (map[string]string, error)

	// MultiRemove deletes every key in one round trip where the backend allows it.
	MultiRemove(ctx context.Context, keys []string) error

	// Close releases the backend resources.
	Close() error
}
