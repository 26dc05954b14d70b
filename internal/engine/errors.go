package engine

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDeploymentNotFound is returned when no deployment with the given
	// ID exists.
	ErrDeploymentNotFound = errors.New("deployment not found")

	// ErrNotPending is returned by Start when the deployment has already
	// been started or has finished.
	ErrNotPending = errors.New("deployment is not pending")

	// ErrNotActive is returned by Pause and Resume when the deployment is
	// not in a state the operation applies to.
	ErrNotActive = errors.New("deployment is not active")

	// ErrSchedulingDeadlock means no stage is ready and none is running
	// although the deployment has not completed. Create-time validation
	// rejects every definition that could reach this, so hitting it is an
	// invariant violation, not a business failure.
	ErrSchedulingDeadlock = errors.New("scheduling deadlock: no stage ready and none running")
)

// ValidationError reports every structural problem found in a deployment
// definition, not just the first.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid deployment definition: %s", strings.Join(e.Problems, "; "))
}

// ExecutionFailure records a failed executor execute or validate call.
type ExecutionFailure struct {
	Stage   string
	Phase   string // "execute" or "validate"
	Message string
}

func (e *ExecutionFailure) Error() string {
	return fmt.Sprintf("stage %s: %s failed: %s", e.Stage, e.Phase, e.Message)
}

// GateFailure records a gate that did not pass within its timeout or whose
// condition was never satisfied.
type GateFailure struct {
	Stage  string
	Gate   GateType
	Reason string
}

func (e *GateFailure) Error() string {
	return fmt.Sprintf("stage %s: %s gate failed: %s", e.Stage, e.Gate, e.Reason)
}

// RollbackFailure records a failed per-stage rollback call. It is logged
// and written to history but never aborts rollback of the remaining stages.
type RollbackFailure struct {
	Stage   string
	Message string
}

func (e *RollbackFailure) Error() string {
	return fmt.Sprintf("stage %s: rollback failed: %s", e.Stage, e.Message)
}
