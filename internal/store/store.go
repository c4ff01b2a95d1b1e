// Package store defines the namespaced key-value persistence contract used by
// the registry and guild settings, and its Redis implementation.
package store

import "context"

// Store is a namespaced persistent mapping from string keys to serialized
// records. Implementations must be safe for concurrent use across independent
// keys; no cross-key transactions are offered.
type Store interface {
	// Get returns the record stored under namespace/key, or
	// domain.ErrNotFound when absent.
	Get(ctx context.Context, namespace, key string) ([]byte, error)

	// Set stores the record under namespace/key, overwriting any previous
	// value.
	Set(ctx context.Context, namespace, key string, value []byte) error

	// Delete removes namespace/key and reports whether a deletion occurred.
	Delete(ctx context.Context, namespace, key string) (bool, error)

	// ScanKeys enumerates all keys in the namespace starting with prefix.
	// Order is unspecified.
	ScanKeys(ctx context.Context, namespace, prefix string) ([]string, error)
}
