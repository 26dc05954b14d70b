package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type stubApprovals struct {
	ch chan Approval
}

func (s *stubApprovals) Await(ctx context.Context, deploymentID uuid.UUID, stage string) (Approval, error) {
	select {
	case a := <-s.ch:
		return a, nil
	case <-ctx.Done():
		return Approval{}, ctx.Err()
	}
}

type stubCollector struct {
	mu    sync.Mutex
	fetch func() (map[string]float64, error)
	polls int
}

func (s *stubCollector) Fetch(ctx context.Context, names []string) (map[string]float64, error) {
	s.mu.Lock()
	s.polls++
	fn := s.fetch
	s.mu.Unlock()
	return fn()
}

func (s *stubCollector) pollCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.polls
}

func gateFixture() (*Deployment, *Stage, *ExecutionContext) {
	st := &Stage{Name: "production", Strategy: StrategyCustom, Status: StageValidating}
	d := &Deployment{
		ID:     uuid.New(),
		Name:   "gate-test",
		Stages: []*Stage{st},
		Status: DeploymentInProgress,
	}
	return d, st, NewExecutionContext()
}

func TestAutomaticGatePasses(t *testing.T) {
	e := NewGateEvaluator(nil, nil, zerolog.Nop())
	d, st, ec := gateFixture()

	if err := e.Evaluate(context.Background(), d, st, Gate{Type: GateAutomatic}, ec); err != nil {
		t.Errorf("Expected automatic gate to pass, got %v", err)
	}
}

func TestScheduledGatePastTimePassesImmediately(t *testing.T) {
	e := NewGateEvaluator(nil, nil, zerolog.Nop())
	d, st, ec := gateFixture()

	gate := Gate{Type: GateScheduled, ScheduleTime: time.Now().Add(-time.Hour)}
	start := time.Now()
	if err := e.Evaluate(context.Background(), d, st, gate, ec); err != nil {
		t.Fatalf("Expected past schedule to pass, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("Expected immediate pass, took %s", elapsed)
	}
}

func TestScheduledGateWaitsForTargetTime(t *testing.T) {
	e := NewGateEvaluator(nil, nil, zerolog.Nop())
	d, st, ec := gateFixture()

	target := time.Now().Add(50 * time.Millisecond)
	gate := Gate{Type: GateScheduled, ScheduleTime: target, Timeout: time.Second}
	if err := e.Evaluate(context.Background(), d, st, gate, ec); err != nil {
		t.Fatalf("Expected scheduled gate to pass, got %v", err)
	}
	if time.Now().Before(target) {
		t.Error("Expected gate to hold until the scheduled time")
	}
}

func TestScheduledGateTimesOut(t *testing.T) {
	e := NewGateEvaluator(nil, nil, zerolog.Nop())
	d, st, ec := gateFixture()

	gate := Gate{Type: GateScheduled, ScheduleTime: time.Now().Add(time.Hour), Timeout: 50 * time.Millisecond}
	err := e.Evaluate(context.Background(), d, st, gate, ec)

	var gf *GateFailure
	if !errors.As(err, &gf) {
		t.Fatalf("Expected GateFailure, got %v", err)
	}
	if gf.Gate != GateScheduled {
		t.Errorf("Expected scheduled gate in failure, got %s", gf.Gate)
	}
}

func TestManualGateApproved(t *testing.T) {
	approvals := &stubApprovals{ch: make(chan Approval, 1)}
	approvals.ch <- Approval{Approver: "alice", GrantedAt: time.Now()}

	e := NewGateEvaluator(nil, approvals, zerolog.Nop())
	d, st, ec := gateFixture()

	gate := Gate{Type: GateManual, Approvers: []string{"alice", "bob"}, Timeout: time.Second}
	if err := e.Evaluate(context.Background(), d, st, gate, ec); err != nil {
		t.Fatalf("Expected manual gate to pass, got %v", err)
	}

	approver, ok := ec.GetString("approved_by:production")
	if !ok || approver != "alice" {
		t.Errorf("Expected approved_by:production to record alice, got %q", approver)
	}
}

func TestManualGateIgnoresUnlistedApprover(t *testing.T) {
	approvals := &stubApprovals{ch: make(chan Approval, 2)}
	approvals.ch <- Approval{Approver: "mallory"}
	approvals.ch <- Approval{Approver: "alice"}

	e := NewGateEvaluator(nil, approvals, zerolog.Nop())
	d, st, ec := gateFixture()

	gate := Gate{Type: GateManual, Approvers: []string{"alice"}, Timeout: time.Second}
	if err := e.Evaluate(context.Background(), d, st, gate, ec); err != nil {
		t.Fatalf("Expected gate to pass on the second approval, got %v", err)
	}

	approver, _ := ec.GetString("approved_by:production")
	if approver != "alice" {
		t.Errorf("Expected alice to be recorded, got %q", approver)
	}
}

func TestManualGateAcceptsAnyoneWithoutApproverList(t *testing.T) {
	approvals := &stubApprovals{ch: make(chan Approval, 1)}
	approvals.ch <- Approval{Approver: "whoever"}

	e := NewGateEvaluator(nil, approvals, zerolog.Nop())
	d, st, ec := gateFixture()

	gate := Gate{Type: GateManual, Timeout: time.Second}
	if err := e.Evaluate(context.Background(), d, st, gate, ec); err != nil {
		t.Errorf("Expected gate without approver list to accept anyone, got %v", err)
	}
}

func TestManualGateTimesOut(t *testing.T) {
	approvals := &stubApprovals{ch: make(chan Approval)}

	e := NewGateEvaluator(nil, approvals, zerolog.Nop())
	d, st, ec := gateFixture()

	gate := Gate{Type: GateManual, Timeout: 50 * time.Millisecond}
	err := e.Evaluate(context.Background(), d, st, gate, ec)

	var gf *GateFailure
	if !errors.As(err, &gf) {
		t.Fatalf("Expected GateFailure, got %v", err)
	}
	if !strings.Contains(gf.Reason, "no approval received") {
		t.Errorf("Expected timeout reason, got %q", gf.Reason)
	}
}

func TestManualGateWithoutSourceIsConfigError(t *testing.T) {
	e := NewGateEvaluator(nil, nil, zerolog.Nop())
	d, st, ec := gateFixture()

	err := e.Evaluate(context.Background(), d, st, Gate{Type: GateManual, Timeout: time.Second}, ec)
	if err == nil {
		t.Fatal("Expected error for manual gate without approval source")
	}
	var gf *GateFailure
	if errors.As(err, &gf) {
		t.Error("Expected a configuration error, not a GateFailure")
	}
}

func TestMetricGatePollsImmediately(t *testing.T) {
	collector := &stubCollector{fetch: func() (map[string]float64, error) {
		return map[string]float64{"error_rate": 0.01}, nil
	}}

	e := NewGateEvaluator(collector, nil, zerolog.Nop())
	d, st, ec := gateFixture()

	gate := Gate{
		Type:         GateMetricBased,
		Thresholds:   map[string]float64{"error_rate": 0.05},
		Timeout:      time.Second,
		PollInterval: 10 * time.Second,
	}
	start := time.Now()
	if err := e.Evaluate(context.Background(), d, st, gate, ec); err != nil {
		t.Fatalf("Expected metric gate to pass, got %v", err)
	}
	// Passing must not wait for the first tick of the poll interval
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Expected immediate first poll, took %s", elapsed)
	}
	if collector.pollCount() != 1 {
		t.Errorf("Expected exactly 1 poll, got %d", collector.pollCount())
	}
}

func TestMetricGatePassesOnceThresholdsClear(t *testing.T) {
	var mu sync.Mutex
	value := 0.9
	collector := &stubCollector{}
	collector.fetch = func() (map[string]float64, error) {
		mu.Lock()
		defer mu.Unlock()
		v := value
		value -= 0.5
		return map[string]float64{"error_rate": v}, nil
	}

	e := NewGateEvaluator(collector, nil, zerolog.Nop())
	d, st, ec := gateFixture()

	gate := Gate{
		Type:         GateMetricBased,
		Thresholds:   map[string]float64{"error_rate": 0.05},
		Timeout:      time.Second,
		PollInterval: 10 * time.Millisecond,
	}
	if err := e.Evaluate(context.Background(), d, st, gate, ec); err != nil {
		t.Fatalf("Expected gate to pass once the metric recovered, got %v", err)
	}
	if collector.pollCount() < 2 {
		t.Errorf("Expected at least 2 polls, got %d", collector.pollCount())
	}
}

func TestMetricGateBreachedAtTimeout(t *testing.T) {
	collector := &stubCollector{fetch: func() (map[string]float64, error) {
		return map[string]float64{"error_rate": 0.9}, nil
	}}

	e := NewGateEvaluator(collector, nil, zerolog.Nop())
	d, st, ec := gateFixture()

	gate := Gate{
		Type:         GateMetricBased,
		Thresholds:   map[string]float64{"error_rate": 0.05},
		Timeout:      80 * time.Millisecond,
		PollInterval: 10 * time.Millisecond,
	}
	err := e.Evaluate(context.Background(), d, st, gate, ec)

	var gf *GateFailure
	if !errors.As(err, &gf) {
		t.Fatalf("Expected GateFailure, got %v", err)
	}
	if !strings.Contains(gf.Reason, "error_rate") {
		t.Errorf("Expected breached metric named in reason, got %q", gf.Reason)
	}
}

func TestMetricGateFailedPollsCountTowardTimeout(t *testing.T) {
	collector := &stubCollector{fetch: func() (map[string]float64, error) {
		return nil, errors.New("prometheus unreachable")
	}}

	e := NewGateEvaluator(collector, nil, zerolog.Nop())
	d, st, ec := gateFixture()

	gate := Gate{
		Type:         GateMetricBased,
		Thresholds:   map[string]float64{"error_rate": 0.05},
		Timeout:      80 * time.Millisecond,
		PollInterval: 10 * time.Millisecond,
	}
	err := e.Evaluate(context.Background(), d, st, gate, ec)

	var gf *GateFailure
	if !errors.As(err, &gf) {
		t.Fatalf("Expected GateFailure after timeout, got %v", err)
	}
	if !strings.Contains(gf.Reason, "never cleared") {
		t.Errorf("Expected generic timeout reason, got %q", gf.Reason)
	}
}

func TestUnknownGateTypeIsError(t *testing.T) {
	e := NewGateEvaluator(nil, nil, zerolog.Nop())
	d, st, ec := gateFixture()

	err := e.Evaluate(context.Background(), d, st, Gate{Type: GateType("quantum")}, ec)
	if err == nil || !strings.Contains(err.Error(), "unknown gate type") {
		t.Errorf("Expected unknown gate type error, got %v", err)
	}
}
