// Package executor provides in-process reference executors for the built-in
// deployment strategies. They operate purely on the execution context, so
// the engine is runnable and testable without load balancer or flag-service
// plumbing; production setups register external executors for the same
// strategy types.
package executor

import (
	"strconv"

	"github.com/deployops/rollout/internal/engine"
	"github.com/rs/zerolog"
)

// RegisterBuiltins registers the reference executors for every built-in
// strategy type.
func RegisterBuiltins(registry *engine.Registry, logger zerolog.Logger) {
	registry.Register(engine.StrategyBlueGreen, NewBlueGreen(logger))
	registry.Register(engine.StrategyCanary, NewCanary(logger))
	registry.Register(engine.StrategyFeatureFlag, NewFeatureFlag(logger))
	registry.Register(engine.StrategyShadow, NewShadow(logger))
}

func configString(config map[string]interface{}, key, fallback string) string {
	if v, ok := config[key]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return fallback
}

func configFloat(config map[string]interface{}, key string, fallback float64) (float64, bool) {
	v, ok := config[key]
	if !ok {
		return fallback, true
	}
	return toFloat(v)
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}
