// Package cache provides a generic, thread-safe bounded expiring cache.
//
// The cache combines per-entry TTL expiry with LRU-bounded capacity and is
// used to memoize expensive provider calls (embedding generation, structured
// judgment calls) keyed by a stable fingerprint of their semantic inputs.
//
// Statistics are always collected for observability, with optional
// Prometheus export via functional options. A cache constructed with a
// non-positive TTL or capacity is permanently disabled: Get always misses
// and Set/Delete are no-ops, so call sites never branch on "caching off".
package cache

import (
	"time"

	"github.com/virajxp1/forkfolio/errors"
)

// Cache represents a generic cache interface parameterized by value type V.
type Cache[V any] interface {
	// Get retrieves a value by key. Returns the value and true if found and
	// not expired, zero value and false otherwise.
	Get(key string) (V, bool)

	// Set stores a value with the given key using the cache-wide default TTL.
	// Returns true if a new entry was created, false if an entry was updated.
	Set(key string, value V) (bool, error)

	// SetWithTTL stores a value with an explicit TTL. A non-positive TTL is
	// a no-op.
	SetWithTTL(key string, value V, ttl time.Duration) (bool, error)

	// Delete removes an entry by key. Returns true if the key existed.
	// Used to evict entries that failed post-cache validation.
	Delete(key string) (bool, error)

	// Clear removes all entries from the cache.
	Clear() error

	// Size returns the current number of entries in the cache.
	Size() int

	// Keys returns the unexpired keys in recency order (most recent first).
	Keys() []string

	// Stats returns cache statistics, or nil for a disabled cache.
	Stats() *Statistics
}

// validateKey validates a cache key for basic requirements.
func validateKey(key string) error {
	if key == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "cache", "validateKey", "key cannot be empty")
	}
	return nil
}

// noopCache is the permanently disabled cache. Every read misses and every
// write is silently dropped.
type noopCache[V any] struct{}

// NewNoop creates a cache that does nothing (always returns cache misses).
func NewNoop[V any]() Cache[V] {
	return &noopCache[V]{}
}

func (c *noopCache[V]) Get(_ string) (V, bool) {
	var zero V
	return zero, false
}

func (c *noopCache[V]) Set(_ string, _ V) (bool, error) { return false, nil }

func (c *noopCache[V]) SetWithTTL(_ string, _ V, _ time.Duration) (bool, error) {
	return false, nil
}

func (c *noopCache[V]) Delete(_ string) (bool, error) { return false, nil }

func (c *noopCache[V]) Clear() error { return nil }

func (c *noopCache[V]) Size() int { return 0 }

func (c *noopCache[V]) Keys() []string { return nil }

func (c *noopCache[V]) Stats() *Statistics { return nil }
