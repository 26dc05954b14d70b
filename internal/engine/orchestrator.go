package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Archiver persists a finished deployment to a historical store.
type Archiver interface {
	Archive(ctx context.Context, d *Deployment) error
}

// Orchestrator validates deployment definitions, creates and starts
// deployments, and owns the set of in-flight and finished runs. Two
// different deployments never contend for shared mutable state.
type Orchestrator struct {
	registry  *Registry
	scheduler *Scheduler
	archiver  Archiver
	logger    zerolog.Logger

	mu   sync.RWMutex
	runs map[uuid.UUID]*run
}

type run struct {
	deployment *Deployment
	ec         *ExecutionContext
	pause      *pauseLatch
	done       chan struct{}
}

// NewOrchestrator creates an orchestrator. The archiver may be nil; finished
// deployments are then kept in memory only.
func NewOrchestrator(registry *Registry, gates *GateEvaluator, archiver Archiver, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		registry:  registry,
		scheduler: NewScheduler(registry, gates, NewCoordinator(registry, logger), logger),
		archiver:  archiver,
		logger:    logger.With().Str("component", "orchestrator").Logger(),
		runs:      make(map[uuid.UUID]*run),
	}
}

// SetOperationTimeout bounds individual executor calls; see Scheduler.
func (o *Orchestrator) SetOperationTimeout(d time.Duration) {
	o.scheduler.SetOperationTimeout(d)
}

// RegisterExecutor associates an executor with a strategy type. It must be
// called before any deployment referencing that type is created.
func (o *Orchestrator) RegisterExecutor(strategy StrategyType, executor StageExecutor) {
	o.registry.Register(strategy, executor)
}

// Create validates a definition and stores the resulting deployment as
// pending. A ValidationError names every problem found and no deployment
// is created.
func (o *Orchestrator) Create(def *Definition) (Snapshot, error) {
	d, err := ValidateDefinition(def, o.registry)
	if err != nil {
		return Snapshot{}, err
	}

	o.mu.Lock()
	o.runs[d.ID] = &run{
		deployment: d,
		ec:         NewExecutionContext(),
		pause:      newPauseLatch(),
		done:       make(chan struct{}),
	}
	o.mu.Unlock()

	o.logger.Info().
		Str("deployment_id", d.ID.String()).
		Str("name", d.Name).
		Str("version", d.Version).
		Int("stages", len(d.Stages)).
		Msg("Deployment created")

	return d.Snapshot(), nil
}

// Start launches the scheduler for a pending deployment and returns
// immediately. The run outlives the caller's context.
func (o *Orchestrator) Start(ctx context.Context, id uuid.UUID) error {
	r, err := o.run(id)
	if err != nil {
		return err
	}
	d := r.deployment
	if !d.begin() {
		return fmt.Errorf("start deployment %s: %w", id, ErrNotPending)
	}

	runCtx := context.WithoutCancel(ctx)
	go func() {
		defer close(r.done)
		o.scheduler.Run(runCtx, d, r.ec, r.pause)
		if o.archiver != nil {
			if archiveErr := o.archiver.Archive(context.Background(), d); archiveErr != nil {
				o.logger.Error().
					Err(archiveErr).
					Str("deployment_id", d.ID.String()).
					Msg("Failed to archive finished deployment")
			}
		}
	}()

	o.logger.Info().
		Str("deployment_id", d.ID.String()).
		Str("mode", string(d.Mode)).
		Msg("Deployment started")
	return nil
}

// Pause prevents the scheduler from starting new stages. It never
// interrupts a stage already in flight.
func (o *Orchestrator) Pause(id uuid.UUID) error {
	r, err := o.run(id)
	if err != nil {
		return err
	}
	if !r.deployment.setPaused(true) {
		return fmt.Errorf("pause deployment %s: %w", id, ErrNotActive)
	}
	r.pause.pause()
	o.logger.Info().Str("deployment_id", id.String()).Msg("Deployment paused")
	return nil
}

// Resume allows scheduling to continue from the unchanged state.
func (o *Orchestrator) Resume(id uuid.UUID) error {
	r, err := o.run(id)
	if err != nil {
		return err
	}
	if !r.deployment.setPaused(false) {
		return fmt.Errorf("resume deployment %s: %w", id, ErrNotActive)
	}
	r.pause.unpause()
	o.logger.Info().Str("deployment_id", id.String()).Msg("Deployment resumed")
	return nil
}

// Status returns a complete, consistent snapshot of an active or finished
// deployment.
func (o *Orchestrator) Status(id uuid.UUID) (Snapshot, error) {
	r, err := o.run(id)
	if err != nil {
		return Snapshot{}, err
	}
	return r.deployment.Snapshot(), nil
}

// List returns snapshots of every known deployment, newest first.
func (o *Orchestrator) List() []Snapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := make([]Snapshot, 0, len(o.runs))
	for _, r := range o.runs {
		out = append(out, r.deployment.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// Wait blocks until the deployment's run finishes or the context ends. A
// deployment that was never started blocks until the context ends.
func (o *Orchestrator) Wait(ctx context.Context, id uuid.UUID) error {
	r, err := o.run(id)
	if err != nil {
		return err
	}
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) run(id uuid.UUID) (*run, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	r, ok := o.runs[id]
	if !ok {
		return nil, fmt.Errorf("deployment %s: %w", id, ErrDeploymentNotFound)
	}
	return r, nil
}
