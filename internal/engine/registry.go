package engine

import (
	"context"
	"sort"
	"sync"
)

// Result is the outcome of one executor call. Expected failures are
// reported through Success, never as errors.
type Result struct {
	Success bool
	Message string
}

// StageExecutor performs the deployment actions for one strategy type.
// Implementations report expected failures via the Result and must be safe
// to call at most once per stage attempt.
type StageExecutor interface {
	// Execute performs the stage's deployment action.
	Execute(ctx context.Context, stage *Stage, ec *ExecutionContext) Result

	// Validate verifies the action took effect.
	Validate(ctx context.Context, stage *Stage, ec *ExecutionContext) Result

	// Rollback reverses the stage's action after a failure elsewhere.
	Rollback(ctx context.Context, stage *Stage, ec *ExecutionContext) Result
}

// Registry maps strategy types to executor implementations. It is
// populated during setup, before any deployment starts, and is read-mostly
// afterwards.
type Registry struct {
	mu        sync.RWMutex
	executors map[StrategyType]StageExecutor
}

// NewRegistry creates an empty executor registry.
func NewRegistry() *Registry {
	return &Registry{executors: make(map[StrategyType]StageExecutor)}
}

// Register associates an executor with a strategy type, replacing any
// previous registration.
func (r *Registry) Register(strategy StrategyType, executor StageExecutor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[strategy] = executor
}

// Lookup returns the executor registered for a strategy type.
func (r *Registry) Lookup(strategy StrategyType) (StageExecutor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ex, ok := r.executors[strategy]
	return ex, ok
}

// Registered reports whether a strategy type has an executor.
func (r *Registry) Registered(strategy StrategyType) bool {
	_, ok := r.Lookup(strategy)
	return ok
}

// Strategies returns the registered strategy types in sorted order.
func (r *Registry) Strategies() []StrategyType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]StrategyType, 0, len(r.executors))
	for s := range r.executors {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
