package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ExecutionMode controls how the scheduler starts ready stages.
type ExecutionMode string

const (
	// ModeSequential starts exactly one ready stage at a time, in
	// definition order.
	ModeSequential ExecutionMode = "sequential"

	// ModeParallel starts every currently-ready stage concurrently.
	ModeParallel ExecutionMode = "parallel"
)

// DeploymentStatus represents the overall state of a deployment.
type DeploymentStatus string

const (
	DeploymentPending    DeploymentStatus = "pending"
	DeploymentInProgress DeploymentStatus = "in_progress"
	DeploymentPaused     DeploymentStatus = "paused"
	DeploymentCompleted  DeploymentStatus = "completed"
	DeploymentFailed     DeploymentStatus = "failed"
)

// Terminal reports whether the deployment can no longer change.
func (s DeploymentStatus) Terminal() bool {
	return s == DeploymentCompleted || s == DeploymentFailed
}

// StageStatus represents the state of one stage. Once a stage leaves
// pending it only moves forward: in_progress -> validating -> completed,
// or to failed / rolled_back, which are terminal.
type StageStatus string

const (
	StagePending    StageStatus = "pending"
	StageInProgress StageStatus = "in_progress"
	StageValidating StageStatus = "validating"
	StageCompleted  StageStatus = "completed"
	StageFailed     StageStatus = "failed"
	StageRolledBack StageStatus = "rolled_back"
)

// StrategyType identifies the deployment strategy a stage is bound to.
type StrategyType string

const (
	StrategyBlueGreen   StrategyType = "blue_green"
	StrategyCanary      StrategyType = "canary"
	StrategyFeatureFlag StrategyType = "feature_flag"
	StrategyShadow      StrategyType = "shadow"
	StrategyCustom      StrategyType = "custom"
)

// GateType identifies the kind of checkpoint a gate implements.
type GateType string

const (
	GateManual      GateType = "manual"
	GateAutomatic   GateType = "automatic"
	GateScheduled   GateType = "scheduled"
	GateMetricBased GateType = "metric_based"
)

// Gate is a decision checkpoint attached to a stage, evaluated after the
// stage's own validation succeeds.
type Gate struct {
	Type         GateType           `json:"type"`
	Timeout      time.Duration      `json:"timeout"`
	Approvers    []string           `json:"approvers,omitempty"`
	ScheduleTime time.Time          `json:"schedule_time,omitempty"`
	Metrics      []string           `json:"metrics,omitempty"`
	Thresholds   map[string]float64 `json:"thresholds,omitempty"`
	PollInterval time.Duration      `json:"poll_interval,omitempty"`
}

// Stage is one unit of deployment work.
type Stage struct {
	Name              string                 `json:"name"`
	Strategy          StrategyType           `json:"strategy"`
	Config            map[string]interface{} `json:"config,omitempty"`
	Gates             []Gate                 `json:"gates,omitempty"`
	Dependencies      []string               `json:"dependencies,omitempty"`
	RollbackOnFailure bool                   `json:"rollback_on_failure"`

	Status      StageStatus `json:"status"`
	StartedAt   *time.Time  `json:"started_at,omitempty"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	LastError   string      `json:"last_error,omitempty"`

	// Set when the scheduler claims the stage, so the ready set is never
	// re-evaluated to include a stage whose goroutine has not yet marked
	// it in_progress.
	claimed bool
}

// HistoryAction is the kind of transition a history entry records.
type HistoryAction string

const (
	ActionStarted    HistoryAction = "started"
	ActionCompleted  HistoryAction = "completed"
	ActionFailed     HistoryAction = "failed"
	ActionRolledBack HistoryAction = "rolled_back"
)

// HistoryEntry is an immutable audit record of one stage transition.
type HistoryEntry struct {
	Stage     string        `json:"stage,omitempty"`
	Action    HistoryAction `json:"action"`
	Timestamp time.Time     `json:"timestamp"`
	Detail    string        `json:"detail,omitempty"`
}

// Deployment is the unit of orchestration: an ordered collection of stages
// plus the run state the scheduler and rollback coordinator maintain.
type Deployment struct {
	ID          uuid.UUID
	Name        string
	Version     string
	Mode        ExecutionMode
	MaxDuration time.Duration
	Stages      []*Stage

	Status        DeploymentStatus
	CurrentStage  string
	FailureReason string
	CreatedAt     time.Time
	StartedAt     *time.Time
	CompletedAt   *time.Time
	History       []HistoryEntry
	Metrics       map[string]interface{}

	mu sync.Mutex
}

func (d *Deployment) stage(name string) *Stage {
	for _, st := range d.Stages {
		if st.Name == name {
			return st
		}
	}
	return nil
}

// begin moves the deployment from pending to in_progress. It returns false
// if the deployment is not pending.
func (d *Deployment) begin() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.Status != DeploymentPending {
		return false
	}
	now := time.Now()
	d.Status = DeploymentInProgress
	d.StartedAt = &now
	return true
}

// setPaused toggles the deployment-level paused state. Pausing only
// succeeds from in_progress, resuming only from paused.
func (d *Deployment) setPaused(paused bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if paused && d.Status == DeploymentInProgress {
		d.Status = DeploymentPaused
		return true
	}
	if !paused && d.Status == DeploymentPaused {
		d.Status = DeploymentInProgress
		return true
	}
	return false
}

// finish records the terminal deployment status and a metrics summary.
func (d *Deployment) finish(status DeploymentStatus, reason string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	d.Status = status
	d.FailureReason = reason
	d.CompletedAt = &now
	d.CurrentStage = ""

	completed, failed, rolledBack := 0, 0, 0
	for _, st := range d.Stages {
		switch st.Status {
		case StageCompleted:
			completed++
		case StageFailed:
			failed++
		case StageRolledBack:
			rolledBack++
		}
	}
	if d.Metrics == nil {
		d.Metrics = make(map[string]interface{})
	}
	d.Metrics["stages_total"] = len(d.Stages)
	d.Metrics["stages_completed"] = completed
	d.Metrics["stages_failed"] = failed
	d.Metrics["stages_rolled_back"] = rolledBack
	if d.StartedAt != nil {
		d.Metrics["duration"] = now.Sub(*d.StartedAt).String()
	}
}

func (d *Deployment) markStarted(st *Stage) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	st.Status = StageInProgress
	st.StartedAt = &now
	d.CurrentStage = st.Name
	d.History = append(d.History, HistoryEntry{Stage: st.Name, Action: ActionStarted, Timestamp: now})
}

func (d *Deployment) markValidating(st *Stage) {
	d.mu.Lock()
	defer d.mu.Unlock()

	st.Status = StageValidating
}

func (d *Deployment) markCompleted(st *Stage) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	st.Status = StageCompleted
	st.CompletedAt = &now
	detail := ""
	if st.StartedAt != nil {
		detail = fmt.Sprintf("completed in %s", now.Sub(*st.StartedAt).Round(time.Millisecond))
	}
	d.History = append(d.History, HistoryEntry{Stage: st.Name, Action: ActionCompleted, Timestamp: now, Detail: detail})
}

func (d *Deployment) markFailed(st *Stage, message string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	st.Status = StageFailed
	st.CompletedAt = &now
	st.LastError = message
	d.History = append(d.History, HistoryEntry{Stage: st.Name, Action: ActionFailed, Timestamp: now, Detail: message})
}

func (d *Deployment) markRolledBack(st *Stage, detail string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	st.Status = StageRolledBack
	d.History = append(d.History, HistoryEntry{Stage: st.Name, Action: ActionRolledBack, Timestamp: time.Now(), Detail: detail})
}

// recordHistory appends an audit entry outside a stage transition, such as
// the rollback coordinator's invocation record.
func (d *Deployment) recordHistory(stage string, action HistoryAction, detail string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.History = append(d.History, HistoryEntry{Stage: stage, Action: action, Timestamp: time.Now(), Detail: detail})
}

func (d *Deployment) depsCompletedLocked(st *Stage) bool {
	for _, dep := range st.Dependencies {
		depStage := d.stage(dep)
		if depStage == nil || depStage.Status != StageCompleted {
			return false
		}
	}
	return true
}

// nextReady claims and returns the first pending stage whose dependencies
// are all completed, or nil if no stage is ready.
func (d *Deployment) nextReady() *Stage {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, st := range d.Stages {
		if st.Status != StagePending || st.claimed {
			continue
		}
		if d.depsCompletedLocked(st) {
			st.claimed = true
			return st
		}
	}
	return nil
}

// claimReady claims and returns every pending stage whose dependencies are
// all completed, in definition order.
func (d *Deployment) claimReady() []*Stage {
	d.mu.Lock()
	defer d.mu.Unlock()

	var ready []*Stage
	for _, st := range d.Stages {
		if st.Status != StagePending || st.claimed {
			continue
		}
		if d.depsCompletedLocked(st) {
			st.claimed = true
			ready = append(ready, st)
		}
	}
	return ready
}

func (d *Deployment) allCompleted() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, st := range d.Stages {
		if st.Status != StageCompleted {
			return false
		}
	}
	return true
}

// StageSnapshot is the read-only view of one stage in a status query.
type StageSnapshot struct {
	Name        string       `json:"name"`
	Strategy    StrategyType `json:"strategy"`
	Status      StageStatus  `json:"status"`
	StartedAt   *time.Time   `json:"started_at,omitempty"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
	Error       string       `json:"error,omitempty"`
}

// Snapshot is a complete, consistent view of a deployment: status, current
// stage, per-stage states and the full history log. It is the sole read
// surface exposed to dashboards and CLIs.
type Snapshot struct {
	ID            uuid.UUID              `json:"id"`
	Name          string                 `json:"name"`
	Version       string                 `json:"version"`
	Mode          ExecutionMode          `json:"mode"`
	Status        DeploymentStatus       `json:"status"`
	CurrentStage  string                 `json:"current_stage,omitempty"`
	FailureReason string                 `json:"failure_reason,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
	StartedAt     *time.Time             `json:"started_at,omitempty"`
	CompletedAt   *time.Time             `json:"completed_at,omitempty"`
	Stages        []StageSnapshot        `json:"stages"`
	History       []HistoryEntry         `json:"history"`
	Metrics       map[string]interface{} `json:"metrics,omitempty"`
}

// Snapshot returns a consistent point-in-time copy of the deployment.
// Transitions are applied atomically per stage, so a snapshot never shows a
// half-updated state.
func (d *Deployment) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	snap := Snapshot{
		ID:            d.ID,
		Name:          d.Name,
		Version:       d.Version,
		Mode:          d.Mode,
		Status:        d.Status,
		CurrentStage:  d.CurrentStage,
		FailureReason: d.FailureReason,
		CreatedAt:     d.CreatedAt,
		StartedAt:     copyTime(d.StartedAt),
		CompletedAt:   copyTime(d.CompletedAt),
		Stages:        make([]StageSnapshot, 0, len(d.Stages)),
		History:       append([]HistoryEntry(nil), d.History...),
	}
	for _, st := range d.Stages {
		snap.Stages = append(snap.Stages, StageSnapshot{
			Name:        st.Name,
			Strategy:    st.Strategy,
			Status:      st.Status,
			StartedAt:   copyTime(st.StartedAt),
			CompletedAt: copyTime(st.CompletedAt),
			Error:       st.LastError,
		})
	}
	if len(d.Metrics) > 0 {
		snap.Metrics = make(map[string]interface{}, len(d.Metrics))
		for k, v := range d.Metrics {
			snap.Metrics[k] = v
		}
	}
	return snap
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
