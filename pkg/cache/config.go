package cache

import (
	"time"
)

// Config contains configuration for cache creation.
//
// Disabled caching (Enabled false, or a non-positive TTL or MaxEntries) is
// a legitimate state, not a configuration error: it yields a noop cache.
type Config struct {
	// Enabled determines if caching is enabled.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// MaxEntries is the maximum number of entries before LRU eviction.
	MaxEntries int `json:"max_entries" yaml:"max_entries"`

	// TTL is the default time-to-live for entries.
	TTL time.Duration `json:"ttl" yaml:"ttl"`
}

// DefaultConfig returns a default cache configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:    true,
		MaxEntries: 1000,
		TTL:        1 * time.Hour,
	}
}

// NewFromConfig creates a cache based on the provided configuration.
// Returns a noop cache if caching is disabled.
func NewFromConfig[V any](config Config, options ...Option[V]) (Cache[V], error) {
	if !config.Enabled {
		return NewNoop[V](), nil
	}
	return NewBounded[V](config.MaxEntries, config.TTL, options...)
}
