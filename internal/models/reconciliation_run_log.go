package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ReconciliationRunLog is the persisted trace of one engine invocation.
// The engine itself never writes this; the HTTP layer records it after the
// run completes.
type ReconciliationRunLog struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	PeriodFrom     time.Time
	PeriodTo       time.Time
	DryRun         bool
	ModeRequested  string
	ModeUsed       string
	FallbackReason string
	Inserted       int
	Updated        int
	ErrorCount     int
	Summary        datatypes.JSON
	StartedAt      time.Time
	CompletedAt    time.Time
	CreatedAt      time.Time
}
