package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Default bounds applied to gates that do not declare their own.
const (
	DefaultGateTimeout  = 10 * time.Minute
	DefaultPollInterval = 15 * time.Second
)

// MetricsCollector fetches the latest value for each named metric. A fetch
// that errors or outlives the polling interval counts as a failed poll; it
// never crashes the gate.
type MetricsCollector interface {
	Fetch(ctx context.Context, names []string) (map[string]float64, error)
}

// Approval is one external approval signal for a manual gate.
type Approval struct {
	Approver  string    `json:"approver"`
	GrantedAt time.Time `json:"granted_at"`
	Note      string    `json:"note,omitempty"`
}

// ApprovalSource blocks until an approval arrives for the given stage of
// the given deployment, or the context ends.
type ApprovalSource interface {
	Await(ctx context.Context, deploymentID uuid.UUID, stage string) (Approval, error)
}

// GateEvaluator decides whether a stage may proceed past a gate. Expected
// business outcomes are GateFailure values; plain errors mean the gate is
// misconfigured.
type GateEvaluator struct {
	collector           MetricsCollector
	approvals           ApprovalSource
	defaultTimeout      time.Duration
	defaultPollInterval time.Duration
	logger              zerolog.Logger
}

// NewGateEvaluator creates a gate evaluator. The collector may be nil when
// no metric gates are used, and the approval source may be nil when no
// manual gates are used.
func NewGateEvaluator(collector MetricsCollector, approvals ApprovalSource, logger zerolog.Logger) *GateEvaluator {
	return &GateEvaluator{
		collector:           collector,
		approvals:           approvals,
		defaultTimeout:      DefaultGateTimeout,
		defaultPollInterval: DefaultPollInterval,
		logger:              logger.With().Str("component", "gates").Logger(),
	}
}

// SetDefaults overrides the default gate timeout and poll interval. Zero
// values keep the current defaults.
func (e *GateEvaluator) SetDefaults(timeout, pollInterval time.Duration) {
	if timeout > 0 {
		e.defaultTimeout = timeout
	}
	if pollInterval > 0 {
		e.defaultPollInterval = pollInterval
	}
}

// Evaluate runs one gate to a pass or fail decision, bounded by the gate's
// timeout.
func (e *GateEvaluator) Evaluate(ctx context.Context, d *Deployment, stage *Stage, gate Gate, ec *ExecutionContext) error {
	timeout := gate.Timeout
	if timeout <= 0 {
		timeout = e.defaultTimeout
	}
	gctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	switch gate.Type {
	case GateAutomatic:
		return nil
	case GateScheduled:
		return e.evaluateScheduled(gctx, stage, gate)
	case GateManual:
		return e.evaluateManual(gctx, d, stage, gate, ec)
	case GateMetricBased:
		return e.evaluateMetric(gctx, stage, gate)
	default:
		return fmt.Errorf("stage %s: unknown gate type %q", stage.Name, gate.Type)
	}
}

// evaluateScheduled passes once the wall clock reaches the target time. A
// target in the past passes immediately.
func (e *GateEvaluator) evaluateScheduled(ctx context.Context, stage *Stage, gate Gate) error {
	wait := time.Until(gate.ScheduleTime)
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return &GateFailure{
			Stage:  stage.Name,
			Gate:   GateScheduled,
			Reason: fmt.Sprintf("schedule time %s not reached within timeout", gate.ScheduleTime.Format(time.RFC3339)),
		}
	}
}

// evaluateManual blocks until an approval arrives or the timeout elapses.
// Approvals from outside the gate's approver list are ignored.
func (e *GateEvaluator) evaluateManual(ctx context.Context, d *Deployment, stage *Stage, gate Gate, ec *ExecutionContext) error {
	if e.approvals == nil {
		return fmt.Errorf("stage %s: manual gate has no approval source configured", stage.Name)
	}

	for {
		approval, err := e.approvals.Await(ctx, d.ID, stage.Name)
		if err != nil {
			return &GateFailure{Stage: stage.Name, Gate: GateManual, Reason: "no approval received within timeout"}
		}
		if len(gate.Approvers) == 0 || containsString(gate.Approvers, approval.Approver) {
			ec.Set("approved_by:"+stage.Name, approval.Approver)
			e.logger.Info().
				Str("deployment_id", d.ID.String()).
				Str("stage", stage.Name).
				Str("approver", approval.Approver).
				Msg("Manual gate approved")
			return nil
		}
		e.logger.Warn().
			Str("deployment_id", d.ID.String()).
			Str("stage", stage.Name).
			Str("approver", approval.Approver).
			Msg("Ignoring approval from approver not in gate list")
	}
}

// evaluateMetric polls the collector until one full cycle clears every
// threshold or the gate times out.
func (e *GateEvaluator) evaluateMetric(ctx context.Context, stage *Stage, gate Gate) error {
	if len(gate.Thresholds) == 0 {
		return fmt.Errorf("stage %s: metric gate declares no thresholds", stage.Name)
	}
	if e.collector == nil {
		return fmt.Errorf("stage %s: metric gate has no metrics collector configured", stage.Name)
	}

	interval := gate.PollInterval
	if interval <= 0 {
		interval = e.defaultPollInterval
	}
	names := gate.Metrics
	if len(names) == 0 {
		for name := range gate.Thresholds {
			names = append(names, name)
		}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		breached, err := e.pollOnce(ctx, names, gate.Thresholds, interval)
		if err == nil && breached == "" {
			return nil
		}
		if err != nil {
			e.logger.Warn().Err(err).Str("stage", stage.Name).Msg("Metric poll failed")
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			reason := "thresholds never cleared within timeout"
			if breached != "" {
				reason = fmt.Sprintf("metric %s above threshold at timeout", breached)
			}
			return &GateFailure{Stage: stage.Name, Gate: GateMetricBased, Reason: reason}
		}
	}
}

// pollOnce runs one poll cycle. It returns the name of a breached metric,
// or an error when the fetch itself failed or a declared metric is missing.
func (e *GateEvaluator) pollOnce(ctx context.Context, names []string, thresholds map[string]float64, interval time.Duration) (string, error) {
	pctx, cancel := context.WithTimeout(ctx, interval)
	defer cancel()

	values, err := e.collector.Fetch(pctx, names)
	if err != nil {
		return "", err
	}
	for name, limit := range thresholds {
		value, ok := values[name]
		if !ok {
			return "", fmt.Errorf("metric %s missing from poll", name)
		}
		if value > limit {
			return name, nil
		}
	}
	return "", nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
