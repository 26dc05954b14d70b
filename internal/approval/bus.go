// Package approval delivers manual-gate approval signals from operators to
// awaiting deployments.
package approval

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/deployops/rollout/internal/engine"
	"github.com/google/uuid"
)

// Bus accepts approvals and hands them to awaiting manual gates.
type Bus interface {
	engine.ApprovalSource

	// Approve records an approval for a stage's manual gate.
	Approve(ctx context.Context, deploymentID uuid.UUID, stage, approver, note string) error
}

// pendingApprovals bounds how many approvals can queue up for one gate
// before a waiter consumes them.
const pendingApprovals = 8

// LocalBus delivers approvals between goroutines in one process. It backs
// single-process deployments and tests; multi-process setups use RedisBus.
type LocalBus struct {
	mu      sync.Mutex
	waiting map[string]chan engine.Approval
}

// NewLocalBus creates an in-process approval bus.
func NewLocalBus() *LocalBus {
	return &LocalBus{waiting: make(map[string]chan engine.Approval)}
}

func gateKey(deploymentID uuid.UUID, stage string) string {
	return deploymentID.String() + ":" + stage
}

func (b *LocalBus) channel(key string) chan engine.Approval {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, ok := b.waiting[key]
	if !ok {
		ch = make(chan engine.Approval, pendingApprovals)
		b.waiting[key] = ch
	}
	return ch
}

// Approve implements Bus.
func (b *LocalBus) Approve(ctx context.Context, deploymentID uuid.UUID, stage, approver, note string) error {
	approval := engine.Approval{Approver: approver, GrantedAt: time.Now(), Note: note}
	select {
	case b.channel(gateKey(deploymentID, stage)) <- approval:
		return nil
	default:
		return fmt.Errorf("approval queue full for stage %s", stage)
	}
}

// Await implements engine.ApprovalSource.
func (b *LocalBus) Await(ctx context.Context, deploymentID uuid.UUID, stage string) (engine.Approval, error) {
	select {
	case approval := <-b.channel(gateKey(deploymentID, stage)):
		return approval, nil
	case <-ctx.Done():
		return engine.Approval{}, ctx.Err()
	}
}
