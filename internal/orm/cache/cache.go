// Package cache provides the object cache: an identity map of hydrated
// entities keyed by entity type and identifier, with per-entity TTLs.
package cache

import (
	"context"
	"errors"
	"reflect"
	"time"
)

// Store is a key-value backend with TTL and add-if-absent writes
type Store interface {
	// Get returns the value stored under key. typ is the entity struct type
	// for stores that must decode values.
	Get(ctx context.Context, key string, typ reflect.Type) (any, error)

	// Add stores value only if key is absent and reports whether it did
	Add(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)

	// Delete removes a value from the cache
	Delete(ctx context.Context, key string) error

	// Clear removes all values from the cache
	Clear(ctx context.Context) error

	// Exists checks if a key exists in the cache
	Exists(ctx context.Context, key string) (bool, error)

	// Close releases the backend
	Close() error
}

// Config holds common configuration for cache backends
type Config struct {
	// DefaultTTL applies when Add is called with a zero TTL
	DefaultTTL time.Duration
	// Prefix is prepended to all cache keys
	Prefix string
}

// DefaultConfig returns a default cache configuration
func DefaultConfig() Config {
	return Config{
		DefaultTTL: time.Hour,
		Prefix:     "omega:",
	}
}

// ErrCacheMiss is returned when a key is not found in the cache
type ErrCacheMiss struct {
	Key string
}

func (e ErrCacheMiss) Error() string {
	return "cache miss: " + e.Key
}

// IsCacheMiss checks if an error is a cache miss
func IsCacheMiss(err error) bool {
	var miss ErrCacheMiss
	return errors.As(err, &miss)
}
