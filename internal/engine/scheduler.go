package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultOperationTimeout bounds a single executor execute, validate, or
// rollback call so a non-responsive executor cannot hang a deployment.
const DefaultOperationTimeout = 10 * time.Minute

// Scheduler drives every stage of one deployment to a terminal state,
// honoring dependencies and the deployment's execution mode.
type Scheduler struct {
	registry  *Registry
	gates     *GateEvaluator
	rollback  *Coordinator
	opTimeout time.Duration
	logger    zerolog.Logger
}

// NewScheduler creates a stage scheduler.
func NewScheduler(registry *Registry, gates *GateEvaluator, rollback *Coordinator, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		registry:  registry,
		gates:     gates,
		rollback:  rollback,
		opTimeout: DefaultOperationTimeout,
		logger:    logger.With().Str("component", "scheduler").Logger(),
	}
}

// SetOperationTimeout overrides the per-call executor timeout. Zero keeps
// the current value.
func (s *Scheduler) SetOperationTimeout(d time.Duration) {
	if d > 0 {
		s.opTimeout = d
	}
}

type stageResult struct {
	stage *Stage
	err   error
}

// Run executes one deployment until every started stage reaches a terminal
// state, then records the final deployment status. On failure it hands
// control to the rollback coordinator before finishing.
func (s *Scheduler) Run(ctx context.Context, d *Deployment, ec *ExecutionContext, pause *pauseLatch) {
	logger := s.logger.With().Str("deployment_id", d.ID.String()).Logger()

	if d.MaxDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.MaxDuration)
		defer cancel()
	}

	var runErr error
	switch d.Mode {
	case ModeParallel:
		runErr = s.runParallel(ctx, d, ec, pause, logger)
	default:
		runErr = s.runSequential(ctx, d, ec, pause, logger)
	}

	if runErr != nil {
		logger.Error().Err(runErr).Msg("Deployment failed, handing off to rollback")
		// Rollback still runs when the deployment deadline has passed.
		s.rollback.Rollback(context.WithoutCancel(ctx), d, ec, runErr.Error())
		d.finish(DeploymentFailed, runErr.Error())
		return
	}

	d.finish(DeploymentCompleted, "")
	logger.Info().Msg("Deployment completed")
}

func (s *Scheduler) runSequential(ctx context.Context, d *Deployment, ec *ExecutionContext, pause *pauseLatch, logger zerolog.Logger) error {
	for {
		if err := pause.wait(ctx); err != nil {
			return fmt.Errorf("deployment aborted: %w", err)
		}

		next := d.nextReady()
		if next == nil {
			if d.allCompleted() {
				return nil
			}
			return ErrSchedulingDeadlock
		}

		if err := s.runStage(ctx, d, next, ec, logger); err != nil {
			return err
		}
	}
}

// runParallel starts every ready stage concurrently and re-evaluates the
// ready set after each single completion. While paused it keeps consuming
// completions but starts nothing new; after the first failure no new stage
// is started, but running siblings finish and their results are recorded.
func (s *Scheduler) runParallel(ctx context.Context, d *Deployment, ec *ExecutionContext, pause *pauseLatch, logger zerolog.Logger) error {
	results := make(chan stageResult)
	running := 0
	var firstErr error

	for {
		if firstErr == nil && !pause.isPaused() {
			for _, st := range d.claimReady() {
				st := st
				running++
				go func() {
					results <- stageResult{stage: st, err: s.runStage(ctx, d, st, ec, logger)}
				}()
			}
		}

		if running == 0 {
			if firstErr != nil {
				return firstErr
			}
			if d.allCompleted() {
				return nil
			}
			if pause.isPaused() {
				if err := pause.wait(ctx); err != nil {
					return fmt.Errorf("deployment aborted: %w", err)
				}
				continue
			}
			return ErrSchedulingDeadlock
		}

		// A nil channel blocks forever, so the resume case only fires
		// while actually paused.
		var resumed <-chan struct{}
		if pause.isPaused() {
			resumed = pause.resumed()
		}

		select {
		case res := <-results:
			running--
			if res.err != nil && firstErr == nil {
				firstErr = res.err
			}
		case <-resumed:
		}
	}
}

// runStage drives one stage through execute, validate, and its gates.
func (s *Scheduler) runStage(ctx context.Context, d *Deployment, st *Stage, ec *ExecutionContext, logger zerolog.Logger) error {
	executor, ok := s.registry.Lookup(st.Strategy)
	if !ok {
		// Create-time validation checks registration; defensive.
		msg := fmt.Sprintf("no executor registered for strategy %s", st.Strategy)
		d.markFailed(st, msg)
		return &ExecutionFailure{Stage: st.Name, Phase: "execute", Message: msg}
	}

	d.markStarted(st)
	logger.Info().
		Str("stage", st.Name).
		Str("strategy", string(st.Strategy)).
		Msg("Stage started")

	result := s.callExecutor(ctx, func(c context.Context) Result {
		return executor.Execute(c, st, ec)
	})
	if !result.Success {
		d.markFailed(st, result.Message)
		logger.Error().Str("stage", st.Name).Str("message", result.Message).Msg("Stage execution failed")
		return &ExecutionFailure{Stage: st.Name, Phase: "execute", Message: result.Message}
	}

	d.markValidating(st)
	result = s.callExecutor(ctx, func(c context.Context) Result {
		return executor.Validate(c, st, ec)
	})
	if !result.Success {
		d.markFailed(st, result.Message)
		logger.Error().Str("stage", st.Name).Str("message", result.Message).Msg("Stage validation failed")
		return &ExecutionFailure{Stage: st.Name, Phase: "validate", Message: result.Message}
	}

	for _, gate := range st.Gates {
		if err := s.gates.Evaluate(ctx, d, st, gate, ec); err != nil {
			d.markFailed(st, err.Error())
			logger.Error().
				Str("stage", st.Name).
				Str("gate", string(gate.Type)).
				Err(err).
				Msg("Stage gate failed")
			var gf *GateFailure
			if errors.As(err, &gf) {
				return gf
			}
			return &GateFailure{Stage: st.Name, Gate: gate.Type, Reason: err.Error()}
		}
	}

	d.markCompleted(st)
	logger.Info().
		Str("stage", st.Name).
		Dur("duration", st.CompletedAt.Sub(*st.StartedAt)).
		Msg("Stage completed")
	return nil
}

// callExecutor bounds one executor call by the operation timeout. The call
// runs in its own goroutine so an executor that ignores cancellation still
// cannot hang the stage.
func (s *Scheduler) callExecutor(ctx context.Context, call func(context.Context) Result) Result {
	cctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	done := make(chan Result, 1)
	go func() {
		done <- call(cctx)
	}()

	select {
	case result := <-done:
		return result
	case <-cctx.Done():
		if errors.Is(cctx.Err(), context.DeadlineExceeded) {
			return Result{Success: false, Message: fmt.Sprintf("operation timed out after %s", s.opTimeout)}
		}
		return Result{Success: false, Message: "operation cancelled"}
	}
}

// pauseLatch freezes scheduling without touching in-flight stages. It
// starts released.
type pauseLatch struct {
	mu     sync.Mutex
	paused bool
	resume chan struct{}
}

func newPauseLatch() *pauseLatch {
	ch := make(chan struct{})
	close(ch)
	return &pauseLatch{resume: ch}
}

func (p *pauseLatch) pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.paused {
		p.paused = true
		p.resume = make(chan struct{})
	}
}

func (p *pauseLatch) unpause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.paused {
		p.paused = false
		close(p.resume)
	}
}

func (p *pauseLatch) isPaused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

// resumed returns a channel closed when the latch is released.
func (p *pauseLatch) resumed() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.resume
}

// wait blocks while the latch is paused.
func (p *pauseLatch) wait(ctx context.Context) error {
	for {
		p.mu.Lock()
		if !p.paused {
			p.mu.Unlock()
			return nil
		}
		ch := p.resume
		p.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
