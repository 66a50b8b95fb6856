package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// PaymentRecord is the internally stored copy of a provider transaction.
// ProviderUID is the provider-issued identifier and the only matching key
// during reconciliation.
type PaymentRecord struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey"`
	ProviderUID     string    `gorm:"uniqueIndex"`
	OrderID         *uuid.UUID `gorm:"index"`
	CustomerEmail   string
	Amount          decimal.Decimal `gorm:"type:numeric(12,2)"`
	Currency        string
	CanonicalStatus string `gorm:"index"`
	TransactionType string
	CardDetails     datatypes.JSON
	PaidAt          time.Time `gorm:"index"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
