package state

import (
	"time"

	"github.com/google/uuid"
)

// DeploymentRecord is the archived form of a finished deployment.
type DeploymentRecord struct {
	ID            uuid.UUID `gorm:"type:uuid;primary_key"`
	Name          string    `gorm:"not null;index"`
	Version       string
	Mode          string
	Status        string `gorm:"not null;index"`
	FailureReason string
	CreatedAt     time.Time
	StartedAt     *time.Time
	CompletedAt   *time.Time

	// Relationships
	Stages  []StageRecord   `gorm:"foreignKey:DeploymentID"`
	History []HistoryRecord `gorm:"foreignKey:DeploymentID"`
}

// StageRecord is the archived form of one stage. Position preserves
// definition order.
type StageRecord struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key"`
	DeploymentID uuid.UUID `gorm:"type:uuid;not null;index"`
	Position     int
	Name         string `gorm:"not null"`
	Strategy     string
	Status       string
	StartedAt    *time.Time
	CompletedAt  *time.Time
	LastError    string
}

// HistoryRecord is one archived audit entry.
type HistoryRecord struct {
	ID           uint      `gorm:"primaryKey;autoIncrement"`
	DeploymentID uuid.UUID `gorm:"type:uuid;not null;index"`
	Stage        string
	Action       string `gorm:"not null"`
	Detail       string
	Timestamp    time.Time
}

// Models returns every model the archive migrates.
func Models() []interface{} {
	return []interface{}{
		&DeploymentRecord{},
		&StageRecord{},
		&HistoryRecord{},
	}
}
