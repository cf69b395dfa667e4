// Package metric provides Prometheus metrics registration and the core
// service metrics for forkfolio.
package metric

import (
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/virajxp1/forkfolio/errors"
)

// Registrar defines the interface for registering component-specific metrics.
type Registrar interface {
	Register(component, metricName string, collector prometheus.Collector) error
	Unregister(component, metricName string) bool
}

// Registry manages the registration and lifecycle of metrics on a
// process-local Prometheus registry.
type Registry struct {
	prometheusRegistry *prometheus.Registry
	Core               *CoreMetrics
	registered         map[string]prometheus.Collector
	mu                 sync.RWMutex
}

// NewRegistry creates a new metrics registry with core service metrics and
// Go runtime collectors pre-registered.
func NewRegistry() *Registry {
	prometheusRegistry := prometheus.NewRegistry()

	registry := &Registry{
		prometheusRegistry: prometheusRegistry,
		registered:         make(map[string]prometheus.Collector),
	}

	registry.Core = NewCoreMetrics()
	registry.Core.mustRegister(prometheusRegistry)

	prometheusRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return registry
}

// PrometheusRegistry returns the underlying Prometheus registry.
func (r *Registry) PrometheusRegistry() *prometheus.Registry {
	return r.prometheusRegistry
}

// CoreMetrics returns the core service metrics.
func (r *Registry) CoreMetrics() *CoreMetrics {
	return r.Core
}

// Register registers a collector for a component. Duplicate registrations
// (in this registry or the underlying Prometheus one) are invalid; other
// registration failures are fatal.
func (r *Registry) Register(component, metricName string, collector prometheus.Collector) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := fmt.Sprintf("%s.%s", component, metricName)

	if _, exists := r.registered[key]; exists {
		return errors.WrapInvalid(
			fmt.Errorf("metric %s already registered for component %s", metricName, component),
			"Registry", "Register", "duplicate metric registration")
	}

	if err := r.prometheusRegistry.Register(collector); err != nil {
		var alreadyRegErr prometheus.AlreadyRegisteredError
		if stderrors.As(err, &alreadyRegErr) {
			return errors.WrapInvalid(err, "Registry", "Register",
				fmt.Sprintf("prometheus conflict for metric %s", metricName))
		}
		return errors.WrapFatal(err, "Registry", "Register",
			"failed to register collector with prometheus")
	}

	r.registered[key] = collector
	return nil
}

// Unregister removes a metric from the registry.
func (r *Registry) Unregister(component, metricName string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := fmt.Sprintf("%s.%s", component, metricName)

	collector, exists := r.registered[key]
	if !exists {
		return false
	}

	success := r.prometheusRegistry.Unregister(collector)
	if success {
		delete(r.registered, key)
	}

	return success
}
