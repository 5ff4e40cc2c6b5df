// Package kvstore is a small JSON key-value store used for cached calendar
// events, saved pins and downloaded map areas.
package kvstore

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable is returned when the backing store cannot be reached.
var ErrUnavailable = errors.New("key-value store unavailable")

// Store persists JSON-encodable values under string keys.
type Store interface {
	// Get decodes the value stored at key into dst. It reports false
	// without error when the key does not exist.
	Get(ctx context.Context, key string, dst any) (bool, error)
	// Set stores value at key. A zero ttl keeps the value until deleted.
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
