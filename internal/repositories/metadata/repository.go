// Package metadata keeps the small binary values the credential store needs
// next to the credentials table: the key-derivation salt and the sealed
// key-check record.
package metadata

import (
	"context"
)

// Repository is a write-once binary key/value store.
type Repository interface {
	// Get returns the value under key, or (nil, nil) when it is missing.
	Get(ctx context.Context, key string) ([]byte, error)

	// SetIfAbsent stores value only when key is missing and returns whatever
	// value the key holds afterwards. Concurrent callers all observe the
	// first value written.
	SetIfAbsent(ctx context.Context, key string, value []byte) ([]byte, error)
}
