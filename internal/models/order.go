package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Order struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	CourseTitle   string
	CustomerName  string
	CustomerEmail string          `gorm:"index"`
	Amount        decimal.Decimal `gorm:"type:numeric(12,2)"`
	Status        string          `gorm:"index"`
	CreatedAt     time.Time
}
