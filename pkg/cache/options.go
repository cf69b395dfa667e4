package cache

import (
	"time"

	"github.com/virajxp1/forkfolio/metric"
)

// Option configures cache behavior using the functional options pattern.
type Option[V any] func(*cacheOptions[V])

// cacheOptions holds internal configuration for cache instances.
// Stats are always collected; Prometheus export is optional.
type cacheOptions[V any] struct {
	// metricsReg is optional - if provided, cache stats are also exposed as
	// Prometheus metrics
	metricsReg *metric.Registry

	// metricsPrefix is used as the metric name prefix for Prometheus metrics
	metricsPrefix string

	// clock overrides time.Now, used by tests to control expiry
	clock func() time.Time
}

// WithMetrics enables Prometheus metrics export for cache statistics.
// If registry is nil or prefix is empty, this option is ignored.
func WithMetrics[V any](registry *metric.Registry, prefix string) Option[V] {
	return func(opts *cacheOptions[V]) {
		if registry != nil && prefix != "" {
			opts.metricsReg = registry
			opts.metricsPrefix = prefix
		}
	}
}

// WithClock overrides the cache's time source. Intended for tests.
func WithClock[V any](clock func() time.Time) Option[V] {
	return func(opts *cacheOptions[V]) {
		if clock != nil {
			opts.clock = clock
		}
	}
}

// applyOptions applies functional options to create final cache configuration.
func applyOptions[V any](options ...Option[V]) *cacheOptions[V] {
	opts := &cacheOptions[V]{}
	for _, opt := range options {
		if opt != nil {
			opt(opts)
		}
	}
	return opts
}
