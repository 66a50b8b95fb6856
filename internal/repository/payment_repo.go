package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"edu-payments-backend/internal/ledger"
	"edu-payments-backend/internal/models"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Expose DB if needed
func (r *PaymentRepository) DB() *gorm.DB {
	return r.db
}

// QueryPeriod returns the store snapshot for a reconciliation window, in a
// stable paid_at/uid order so identical snapshots diff identically.
func (r *PaymentRepository) QueryPeriod(ctx context.Context, period ledger.Period) ([]models.PaymentRecord, error) {
	var records []models.PaymentRecord
	err := r.db.WithContext(ctx).
		Where("paid_at BETWEEN ? AND ?", period.From, period.To).
		Order("paid_at ASC, provider_uid ASC").
		Find(&records).Error
	return records, err
}

// Insert creates one payment record. When the record has no order linkage
// yet, the most recent order for the same customer email is attached.
func (r *PaymentRepository) Insert(ctx context.Context, rec *models.PaymentRecord) error {
	if rec.OrderID == nil && rec.CustomerEmail != "" {
		var order models.Order
		err := r.db.WithContext(ctx).
			Where("customer_email = ?", rec.CustomerEmail).
			Order("created_at DESC").
			First(&order).Error
		if err == nil {
			rec.OrderID = &order.ID
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("lookup order for %s: %w", rec.ProviderUID, err)
		}
	}
	return r.db.WithContext(ctx).Create(rec).Error
}

// UpdateFields overwrites the given columns of the record with this provider
// UID. The update touches exactly one row or fails.
func (r *PaymentRepository) UpdateFields(ctx context.Context, uid string, fields map[string]interface{}) error {
	res := r.db.WithContext(ctx).
		Model(&models.PaymentRecord{}).
		Where("provider_uid = ?", uid).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// GetByUID fetches a single record by provider UID.
func (r *PaymentRepository) GetByUID(ctx context.Context, uid string) (*models.PaymentRecord, error) {
	var rec models.PaymentRecord
	err := r.db.WithContext(ctx).First(&rec, "provider_uid = ?", uid).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
