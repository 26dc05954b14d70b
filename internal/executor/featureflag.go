package executor

import (
	"context"
	"fmt"

	"github.com/deployops/rollout/internal/engine"
	"github.com/rs/zerolog"
)

// FeatureFlag rolls a flag out to a percentage of traffic. Config keys:
// "flag" (required) and "percentage" (default 100).
type FeatureFlag struct {
	logger zerolog.Logger
}

// NewFeatureFlag creates the feature-flag reference executor.
func NewFeatureFlag(logger zerolog.Logger) *FeatureFlag {
	return &FeatureFlag{logger: logger.With().Str("executor", "feature_flag").Logger()}
}

func (e *FeatureFlag) Execute(ctx context.Context, stage *engine.Stage, ec *engine.ExecutionContext) engine.Result {
	if err := ctx.Err(); err != nil {
		return engine.Result{Success: false, Message: err.Error()}
	}

	name := configString(stage.Config, "flag", "")
	if name == "" {
		return engine.Result{Success: false, Message: "flag name is required"}
	}
	percentage, ok := configFloat(stage.Config, "percentage", 100)
	if !ok || percentage < 0 || percentage > 100 {
		return engine.Result{Success: false, Message: fmt.Sprintf("invalid rollout percentage for flag %s", name)}
	}

	ec.Set("flag:"+name, percentage)

	e.logger.Info().
		Str("stage", stage.Name).
		Str("flag", name).
		Float64("percentage", percentage).
		Msg("Rolled out feature flag")
	return engine.Result{Success: true, Message: fmt.Sprintf("flag %s at %.0f%%", name, percentage)}
}

func (e *FeatureFlag) Validate(ctx context.Context, stage *engine.Stage, ec *engine.ExecutionContext) engine.Result {
	name := configString(stage.Config, "flag", "")
	if name == "" {
		return engine.Result{Success: false, Message: "flag name is required"}
	}
	want, _ := configFloat(stage.Config, "percentage", 100)

	got, ok := ec.GetFloat64("flag:" + name)
	if !ok || got != want {
		return engine.Result{Success: false, Message: fmt.Sprintf("flag %s is at %.0f%%, want %.0f%%", name, got, want)}
	}
	return engine.Result{Success: true, Message: "flag rollout verified"}
}

func (e *FeatureFlag) Rollback(ctx context.Context, stage *engine.Stage, ec *engine.ExecutionContext) engine.Result {
	name := configString(stage.Config, "flag", "")
	if name == "" {
		return engine.Result{Success: false, Message: "flag name is required"}
	}
	ec.Set("flag:"+name, float64(0))

	e.logger.Info().
		Str("stage", stage.Name).
		Str("flag", name).
		Msg("Disabled feature flag")
	return engine.Result{Success: true, Message: fmt.Sprintf("flag %s reset to 0%%", name)}
}
