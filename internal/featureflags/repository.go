package featureflags

import (
	"context"
	"errors"
)

// ErrFlagNotFound is returned when no value is stored for a key. The
// service then falls back to DefaultFlags.
var ErrFlagNotFound = errors.New("feature flag not found")

// Repository persists flag overrides. Only keys known to DefaultFlags are
// ever written.
type Repository interface {
	GetFlag(ctx context.Context, key string) (*Flag, error)
	GetAllFlags(ctx context.Context) (map[string]*Flag, error)

	// SetFlag upserts one override.
	SetFlag(ctx context.Context, flag *Flag) error

	// SetFlags upserts several overrides in one transaction.
	SetFlags(ctx context.Context, flags []*Flag) error
}
