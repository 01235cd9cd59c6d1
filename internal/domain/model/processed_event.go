package model

import "time"

// ProcessedEvent is the append-only idempotency log. Presence of a key means
// the corresponding transition was durably applied exactly once; redelivery
// of the same key is answered with the recorded outcome. Rows are never
// mutated after the applying transaction commits and never deleted in
// process (bounded retention is an operational concern).
type ProcessedEvent struct {
	ID                 int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	IdempotencyKey     string    `gorm:"uniqueIndex;not null;size:255" json:"idempotency_key"`
	ProviderCustomerID string    `gorm:"not null;size:100;index" json:"provider_customer_id"`
	AppliedKind        string    `gorm:"not null;size:20" json:"applied_kind"`
	ResultingPremium   bool      `gorm:"not null" json:"resulting_premium"`
	ResultingReviews   bool      `gorm:"not null" json:"resulting_reviews"`
	AppliedAt          time.Time `gorm:"default:now()" json:"applied_at"`
}

// TableName specifies the table name for GORM
func (ProcessedEvent) TableName() string {
	return "processed_events"
}
