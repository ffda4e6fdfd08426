// Package metrics gates whether the client collects Prometheus metrics at
// all. Collaborators ask IsEnabled before constructing a concrete
// implementation, and every concrete metrics method tolerates a nil
// receiver, so passing nil metrics through the dispatch path is always
// correct and has zero overhead.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	mu       sync.RWMutex
	enabled  bool
	registry *prometheus.Registry
)

// Init enables metrics collection against a fresh registry. Calling it
// again replaces the registry; it is meant to be called once during
// client construction.
func Init() *prometheus.Registry {
	mu.Lock()
	defer mu.Unlock()
	registry = prometheus.NewRegistry()
	enabled = true
	return registry
}

// Disable turns metrics collection back off, for tests that want a clean
// no-metrics baseline.
func Disable() {
	mu.Lock()
	defer mu.Unlock()
	enabled = false
	registry = nil
}

// IsEnabled reports whether Init has been called.
func IsEnabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return enabled
}

// GetRegistry returns the active registry, or nil if metrics are disabled.
func GetRegistry() *prometheus.Registry {
	mu.RLock()
	defer mu.RUnlock()
	return registry
}
