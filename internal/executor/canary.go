package executor

import (
	"context"
	"fmt"

	"github.com/deployops/rollout/internal/engine"
	"github.com/rs/zerolog"
)

// Canary walks traffic weight through the configured steps, finishing at
// the last step. Config key "steps" is a list of percentages; the default
// is 10, 50, 100.
type Canary struct {
	logger zerolog.Logger
}

// NewCanary creates the canary reference executor.
func NewCanary(logger zerolog.Logger) *Canary {
	return &Canary{logger: logger.With().Str("executor", "canary").Logger()}
}

func canarySteps(config map[string]interface{}) ([]float64, error) {
	raw, ok := config["steps"]
	if !ok {
		return []float64{10, 50, 100}, nil
	}
	list, ok := raw.([]interface{})
	if !ok || len(list) == 0 {
		return nil, fmt.Errorf("steps must be a non-empty list of percentages")
	}
	steps := make([]float64, 0, len(list))
	for _, v := range list {
		f, ok := toFloat(v)
		if !ok || f < 0 || f > 100 {
			return nil, fmt.Errorf("invalid traffic step %v", v)
		}
		steps = append(steps, f)
	}
	return steps, nil
}

func (e *Canary) Execute(ctx context.Context, stage *engine.Stage, ec *engine.ExecutionContext) engine.Result {
	steps, err := canarySteps(stage.Config)
	if err != nil {
		return engine.Result{Success: false, Message: err.Error()}
	}

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return engine.Result{Success: false, Message: err.Error()}
		}
		ec.Set("traffic_weight", step)
		e.logger.Info().
			Str("stage", stage.Name).
			Float64("weight", step).
			Msg("Shifted canary traffic")
	}

	final := steps[len(steps)-1]
	return engine.Result{Success: true, Message: fmt.Sprintf("canary traffic at %.0f%%", final)}
}

func (e *Canary) Validate(ctx context.Context, stage *engine.Stage, ec *engine.ExecutionContext) engine.Result {
	steps, err := canarySteps(stage.Config)
	if err != nil {
		return engine.Result{Success: false, Message: err.Error()}
	}
	final := steps[len(steps)-1]

	weight, ok := ec.GetFloat64("traffic_weight")
	if !ok || weight != final {
		return engine.Result{Success: false, Message: fmt.Sprintf("traffic weight is %.0f%%, want %.0f%%", weight, final)}
	}
	return engine.Result{Success: true, Message: "canary traffic verified"}
}

func (e *Canary) Rollback(ctx context.Context, stage *engine.Stage, ec *engine.ExecutionContext) engine.Result {
	ec.Set("traffic_weight", float64(0))

	e.logger.Info().Str("stage", stage.Name).Msg("Reset canary traffic to zero")
	return engine.Result{Success: true, Message: "canary traffic reset to 0%"}
}
