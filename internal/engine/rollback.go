package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
)

// Coordinator unwinds completed and in-progress stages after a deployment
// failure. Rollback is best-effort: a per-stage rollback failure is logged
// and recorded but never stops the walk.
type Coordinator struct {
	registry *Registry
	logger   zerolog.Logger
}

// NewCoordinator creates a rollback coordinator.
func NewCoordinator(registry *Registry, logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		registry: registry,
		logger:   logger.With().Str("component", "rollback").Logger(),
	}
}

// Rollback walks the deployment's stages in reverse start order, rolling
// back every completed or in-progress stage until it reaches one whose
// rollback flag is false. It is invoked exactly once per failed deployment.
func (c *Coordinator) Rollback(ctx context.Context, d *Deployment, ec *ExecutionContext, reason string) {
	d.recordHistory("", ActionRolledBack, fmt.Sprintf("rollback initiated: %s", reason))
	c.logger.Warn().
		Str("deployment_id", d.ID.String()).
		Str("reason", reason).
		Msg("Starting rollback")

	for _, st := range rollbackTargets(d) {
		executor, ok := c.registry.Lookup(st.Strategy)
		if !ok {
			// Validation guarantees registration at create time.
			c.logger.Error().
				Str("stage", st.Name).
				Str("strategy", string(st.Strategy)).
				Msg("No executor for stage rollback")
			d.recordHistory(st.Name, ActionRolledBack, fmt.Sprintf("rollback skipped: no executor for strategy %s", st.Strategy))
			continue
		}

		result := executor.Rollback(ctx, st, ec)
		if !result.Success {
			failure := &RollbackFailure{Stage: st.Name, Message: result.Message}
			c.logger.Error().
				Str("deployment_id", d.ID.String()).
				Str("stage", st.Name).
				Str("message", result.Message).
				Msg("Stage rollback failed")
			d.recordHistory(st.Name, ActionRolledBack, failure.Error())
			continue
		}

		d.markRolledBack(st, result.Message)
		c.logger.Info().
			Str("deployment_id", d.ID.String()).
			Str("stage", st.Name).
			Msg("Stage rolled back")
	}
}

// rollbackTargets selects the stages to roll back: every completed or
// in-progress stage in reverse start order, stopping before the first one
// that opted out with rollback_on_failure=false.
func rollbackTargets(d *Deployment) []*Stage {
	d.mu.Lock()
	defer d.mu.Unlock()

	started := make([]*Stage, 0, len(d.Stages))
	for _, st := range d.Stages {
		if st.StartedAt == nil {
			continue
		}
		if st.Status != StageCompleted && st.Status != StageInProgress {
			continue
		}
		started = append(started, st)
	}
	sort.SliceStable(started, func(i, j int) bool {
		return started[i].StartedAt.After(*started[j].StartedAt)
	})

	targets := make([]*Stage, 0, len(started))
	for _, st := range started {
		if !st.RollbackOnFailure {
			break
		}
		targets = append(targets, st)
	}
	return targets
}
