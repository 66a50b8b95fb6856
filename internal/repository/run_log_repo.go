package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"edu-payments-backend/internal/models"
)

type RunLogRepository struct {
	db *gorm.DB
}

func NewRunLogRepository(db *gorm.DB) *RunLogRepository {
	return &RunLogRepository{db: db}
}

func (r *RunLogRepository) Save(ctx context.Context, log *models.ReconciliationRunLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *RunLogRepository) List(ctx context.Context, limit int) ([]models.ReconciliationRunLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var logs []models.ReconciliationRunLog
	err := r.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}

func (r *RunLogRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ReconciliationRunLog, error) {
	var log models.ReconciliationRunLog
	if err := r.db.WithContext(ctx).First(&log, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &log, nil
}
