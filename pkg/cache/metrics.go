package cache

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/virajxp1/forkfolio/errors"
	"github.com/virajxp1/forkfolio/metric"
)

// cacheMetrics exposes cache statistics as Prometheus metrics.
type cacheMetrics struct {
	hits      prometheus.Counter
	misses    prometheus.Counter
	sets      prometheus.Counter
	deletes   prometheus.Counter
	evictions prometheus.Counter
	size      prometheus.Gauge
}

// newCacheMetrics creates and registers Prometheus metrics for a cache.
// The prefix identifies the cache instance (e.g. "embedding_cache").
func newCacheMetrics(registry *metric.Registry, prefix string) (*cacheMetrics, error) {
	m := &cacheMetrics{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_hits_total",
			Help: "Total cache hits",
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_misses_total",
			Help: "Total cache misses",
		}),
		sets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_sets_total",
			Help: "Total cache set operations",
		}),
		deletes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_deletes_total",
			Help: "Total cache delete operations",
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_evictions_total",
			Help: "Total cache evictions (expired and LRU)",
		}),
		size: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: prefix + "_size",
			Help: "Current number of cache entries",
		}),
	}

	registrations := map[string]prometheus.Collector{
		prefix + "_hits_total":      m.hits,
		prefix + "_misses_total":    m.misses,
		prefix + "_sets_total":      m.sets,
		prefix + "_deletes_total":   m.deletes,
		prefix + "_evictions_total": m.evictions,
		prefix + "_size":            m.size,
	}
	for name, collector := range registrations {
		if err := registry.Register("cache", name, collector); err != nil {
			return nil, errors.WrapInvalid(err, "cache", "newCacheMetrics", "metrics registration")
		}
	}

	return m, nil
}

func (m *cacheMetrics) recordHit()      { m.hits.Inc() }
func (m *cacheMetrics) recordMiss()     { m.misses.Inc() }
func (m *cacheMetrics) recordSet()      { m.sets.Inc() }
func (m *cacheMetrics) recordDelete()   { m.deletes.Inc() }
func (m *cacheMetrics) recordEviction() { m.evictions.Inc() }
func (m *cacheMetrics) updateSize(size int) {
	m.size.Set(float64(size))
}
