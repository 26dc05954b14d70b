package executor

import (
	"context"
	"fmt"

	"github.com/deployops/rollout/internal/engine"
	"github.com/rs/zerolog"
)

// BlueGreen switches the active environment to the stage's target slot and
// remembers the previous one for rollback.
type BlueGreen struct {
	logger zerolog.Logger
}

// NewBlueGreen creates the blue-green reference executor.
func NewBlueGreen(logger zerolog.Logger) *BlueGreen {
	return &BlueGreen{logger: logger.With().Str("executor", "blue_green").Logger()}
}

func (e *BlueGreen) Execute(ctx context.Context, stage *engine.Stage, ec *engine.ExecutionContext) engine.Result {
	if err := ctx.Err(); err != nil {
		return engine.Result{Success: false, Message: err.Error()}
	}

	target := configString(stage.Config, "target_environment", "green")
	previous := configString(stage.Config, "standby_environment", "blue")
	if active, ok := ec.GetString("active_environment"); ok {
		previous = active
	}

	ec.Set("previous_environment:"+stage.Name, previous)
	ec.Set("active_environment", target)

	e.logger.Info().
		Str("stage", stage.Name).
		Str("from", previous).
		Str("to", target).
		Msg("Switched active environment")
	return engine.Result{Success: true, Message: fmt.Sprintf("active environment switched to %s", target)}
}

func (e *BlueGreen) Validate(ctx context.Context, stage *engine.Stage, ec *engine.ExecutionContext) engine.Result {
	target := configString(stage.Config, "target_environment", "green")
	active, ok := ec.GetString("active_environment")
	if !ok || active != target {
		return engine.Result{Success: false, Message: fmt.Sprintf("active environment is %q, want %q", active, target)}
	}
	return engine.Result{Success: true, Message: "active environment verified"}
}

func (e *BlueGreen) Rollback(ctx context.Context, stage *engine.Stage, ec *engine.ExecutionContext) engine.Result {
	previous, ok := ec.GetString("previous_environment:" + stage.Name)
	if !ok {
		return engine.Result{Success: false, Message: "no previous environment recorded"}
	}
	ec.Set("active_environment", previous)

	e.logger.Info().
		Str("stage", stage.Name).
		Str("environment", previous).
		Msg("Restored previous environment")
	return engine.Result{Success: true, Message: fmt.Sprintf("active environment restored to %s", previous)}
}
