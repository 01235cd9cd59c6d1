package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Plan is a synced copy of a provider recurring price, kept locally so the
// pricing page renders without a provider round trip.
type Plan struct {
	ID              int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	ProviderPriceID string          `gorm:"uniqueIndex;not null;size:100" json:"provider_price_id"`
	Name            string          `gorm:"not null;size:255" json:"name"`
	Description     string          `gorm:"size:1024" json:"description"`
	Amount          decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	Currency        string          `gorm:"not null;size:10" json:"currency"`
	Interval        string          `gorm:"not null;size:20" json:"interval"`
	IntervalCount   int64           `gorm:"not null;default:1" json:"interval_count"`
	Active          bool            `gorm:"not null;default:true;index" json:"active"`
	CreatedAt       time.Time       `gorm:"default:now()" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"default:now()" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Plan) TableName() string {
	return "plans"
}
