package executor

import (
	"context"
	"fmt"

	"github.com/deployops/rollout/internal/engine"
	"github.com/rs/zerolog"
)

// Shadow mirrors traffic to a target without serving responses from it.
// Config key "mirror_target" is required.
type Shadow struct {
	logger zerolog.Logger
}

// NewShadow creates the shadow reference executor.
func NewShadow(logger zerolog.Logger) *Shadow {
	return &Shadow{logger: logger.With().Str("executor", "shadow").Logger()}
}

func (e *Shadow) Execute(ctx context.Context, stage *engine.Stage, ec *engine.ExecutionContext) engine.Result {
	if err := ctx.Err(); err != nil {
		return engine.Result{Success: false, Message: err.Error()}
	}

	target := configString(stage.Config, "mirror_target", "")
	if target == "" {
		return engine.Result{Success: false, Message: "mirror_target is required"}
	}

	ec.Set("shadow_target:"+stage.Name, target)

	e.logger.Info().
		Str("stage", stage.Name).
		Str("target", target).
		Msg("Started mirroring traffic")
	return engine.Result{Success: true, Message: fmt.Sprintf("mirroring traffic to %s", target)}
}

func (e *Shadow) Validate(ctx context.Context, stage *engine.Stage, ec *engine.ExecutionContext) engine.Result {
	if _, ok := ec.GetString("shadow_target:" + stage.Name); !ok {
		return engine.Result{Success: false, Message: "traffic mirror is not active"}
	}
	return engine.Result{Success: true, Message: "traffic mirror verified"}
}

func (e *Shadow) Rollback(ctx context.Context, stage *engine.Stage, ec *engine.ExecutionContext) engine.Result {
	ec.Delete("shadow_target:" + stage.Name)

	e.logger.Info().Str("stage", stage.Name).Msg("Stopped mirroring traffic")
	return engine.Result{Success: true, Message: "traffic mirror removed"}
}
