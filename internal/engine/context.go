package engine

import "sync"

// ExecutionContext is the per-deployment scratch space executors and gates
// use to exchange strategy-specific handles, such as which environment
// became active. The engine never interprets its contents. Stages running
// in parallel share one context, so access is guarded.
type ExecutionContext struct {
	mu     sync.RWMutex
	values map[string]interface{}
}

// NewExecutionContext creates an empty execution context.
func NewExecutionContext() *ExecutionContext {
	return &ExecutionContext{values: make(map[string]interface{})}
}

// Set stores a value under key, replacing any previous value.
func (c *ExecutionContext) Set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
}

// Get returns the value stored under key.
func (c *ExecutionContext) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[key]
	return v, ok
}

// GetString returns the value under key if it is a string.
func (c *ExecutionContext) GetString(key string) (string, bool) {
	v, ok := c.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// GetFloat64 returns the value under key if it is numeric.
func (c *ExecutionContext) GetFloat64(key string) (float64, bool) {
	v, ok := c.Get(key)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// Delete removes the value stored under key.
func (c *ExecutionContext) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, key)
}

// Snapshot returns a shallow copy of the stored values.
func (c *ExecutionContext) Snapshot() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]interface{}, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}
