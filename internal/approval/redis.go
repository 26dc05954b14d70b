package approval

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/deployops/rollout/internal/engine"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisBus carries approvals through Redis lists so operators can approve
// from a different process than the one running the deployment.
type RedisBus struct {
	client *redis.Client
}

// NewRedisBus connects to Redis and returns an approval bus backed by it.
func NewRedisBus(addr, password string, db int) (*RedisBus, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	log.Info().
		Str("addr", addr).
		Int("db", db).
		Msg("Redis approval bus connected")

	return &RedisBus{client: client}, nil
}

func approvalListKey(deploymentID uuid.UUID, stage string) string {
	return fmt.Sprintf("approvals:%s:%s", deploymentID, stage)
}

// Approve implements Bus.
func (b *RedisBus) Approve(ctx context.Context, deploymentID uuid.UUID, stage, approver, note string) error {
	approval := engine.Approval{Approver: approver, GrantedAt: time.Now(), Note: note}
	data, err := json.Marshal(approval)
	if err != nil {
		return fmt.Errorf("marshal approval: %w", err)
	}

	key := approvalListKey(deploymentID, stage)
	if err := b.client.RPush(ctx, key, data).Err(); err != nil {
		return fmt.Errorf("push approval: %w", err)
	}
	// Stale approvals for gates nobody is waiting on expire on their own.
	b.client.Expire(ctx, key, 24*time.Hour)

	log.Info().
		Str("deployment_id", deploymentID.String()).
		Str("stage", stage).
		Str("approver", approver).
		Msg("Approval recorded")
	return nil
}

// Await implements engine.ApprovalSource. It blocks on the approval list
// until a signal arrives or the context ends.
func (b *RedisBus) Await(ctx context.Context, deploymentID uuid.UUID, stage string) (engine.Approval, error) {
	key := approvalListKey(deploymentID, stage)

	for {
		result, err := b.client.BLPop(ctx, time.Second, key).Result()
		if err != nil {
			if err == redis.Nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return engine.Approval{}, ctxErr
				}
				continue
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return engine.Approval{}, ctxErr
			}
			return engine.Approval{}, fmt.Errorf("await approval: %w", err)
		}

		// BLPop returns [key, value]
		if len(result) < 2 {
			return engine.Approval{}, fmt.Errorf("unexpected redis response: %v", result)
		}

		var approval engine.Approval
		if err := json.Unmarshal([]byte(result[1]), &approval); err != nil {
			return engine.Approval{}, fmt.Errorf("unmarshal approval: %w", err)
		}
		return approval, nil
	}
}

// Ping checks if the Redis connection is alive.
func (b *RedisBus) Ping(ctx context.Context) error {
	if err := b.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (b *RedisBus) Close() error {
	if err := b.client.Close(); err != nil {
		return fmt.Errorf("close redis connection: %w", err)
	}
	return nil
}
