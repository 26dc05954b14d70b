package state

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/deployops/rollout/internal/engine"
)

// Repository persists finished deployments for later inspection.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Archive writes a finished deployment, its stages, and its history to
// the database. It implements engine.Archiver.
func (r *Repository) Archive(ctx context.Context, d *engine.Deployment) error {
	snap := d.Snapshot()

	record := DeploymentRecord{
		ID:            snap.ID,
		Name:          snap.Name,
		Version:       snap.Version,
		Mode:          string(snap.Mode),
		Status:        string(snap.Status),
		FailureReason: snap.FailureReason,
		CreatedAt:     snap.CreatedAt,
		StartedAt:     snap.StartedAt,
		CompletedAt:   snap.CompletedAt,
	}

	for i, s := range snap.Stages {
		record.Stages = append(record.Stages, StageRecord{
			ID:           uuid.New(),
			DeploymentID: snap.ID,
			Position:     i,
			Name:         s.Name,
			Strategy:     string(s.Strategy),
			Status:       string(s.Status),
			StartedAt:    s.StartedAt,
			CompletedAt:  s.CompletedAt,
			LastError:    s.Error,
		})
	}

	for _, h := range snap.History {
		record.History = append(record.History, HistoryRecord{
			DeploymentID: snap.ID,
			Stage:        h.Stage,
			Action:       string(h.Action),
			Detail:       h.Detail,
			Timestamp:    h.Timestamp,
		})
	}

	if err := r.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("failed to archive deployment: %w", err)
	}

	return nil
}

// GetDeployment retrieves an archived deployment by ID.
func (r *Repository) GetDeployment(id uuid.UUID) (*DeploymentRecord, error) {
	var record DeploymentRecord
	err := r.db.
		Preload("Stages", func(db *gorm.DB) *gorm.DB {
			return db.Order("stage_records.position ASC")
		}).
		Preload("History", func(db *gorm.DB) *gorm.DB {
			return db.Order("history_records.timestamp ASC")
		}).
		First(&record, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("deployment not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get deployment: %w", err)
	}
	return &record, nil
}

// ListDeployments retrieves archived deployments, newest first.
func (r *Repository) ListDeployments(limit, offset int) ([]DeploymentRecord, error) {
	var records []DeploymentRecord
	err := r.db.
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list deployments: %w", err)
	}
	return records, nil
}

// GetDeploymentsByStatus retrieves archived deployments with the given
// final status.
func (r *Repository) GetDeploymentsByStatus(status string) ([]DeploymentRecord, error) {
	var records []DeploymentRecord
	err := r.db.
		Where("status = ?", status).
		Order("created_at DESC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get deployments by status: %w", err)
	}
	return records, nil
}
