// Package metrics supplies collectors for metric-based gates.
package metrics

import (
	"context"
	"sync"
)

// StaticCollector serves fixed metric values. It backs tests and dry runs;
// values can be updated while a gate is polling.
type StaticCollector struct {
	mu     sync.RWMutex
	values map[string]float64
}

// NewStaticCollector creates a collector serving the given values.
func NewStaticCollector(values map[string]float64) *StaticCollector {
	copied := make(map[string]float64, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return &StaticCollector{values: copied}
}

// Set updates one metric value.
func (c *StaticCollector) Set(name string, value float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[name] = value
}

// Fetch implements engine.MetricsCollector. Unknown metrics are omitted
// from the result.
func (c *StaticCollector) Fetch(ctx context.Context, names []string) (map[string]float64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]float64, len(names))
	for _, name := range names {
		if v, ok := c.values[name]; ok {
			out[name] = v
		}
	}
	return out, nil
}
