package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// ProviderEventStatus tracks the delivery lifecycle of a webhook event.
type ProviderEventStatus string

const (
	ProviderEventStatusReceived    ProviderEventStatus = "received"
	ProviderEventStatusProcessed   ProviderEventStatus = "processed"
	ProviderEventStatusFailed      ProviderEventStatus = "failed"
	ProviderEventStatusNeedsReview ProviderEventStatus = "needs_review"
)

// Scan implements sql.Scanner interface
func (s *ProviderEventStatus) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*s = ProviderEventStatus(v)
	case []byte:
		*s = ProviderEventStatus(v)
	default:
		*s = ProviderEventStatusReceived
	}
	return nil
}

// Value implements driver.Valuer interface
func (s ProviderEventStatus) Value() (driver.Value, error) {
	return string(s), nil
}

// JSONB represents a JSONB database type
type JSONB map[string]interface{}

// Value implements driver.Valuer interface
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements sql.Scanner interface
func (j *JSONB) Scan(src interface{}) error {
	if src == nil {
		*j = nil
		return nil
	}

	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, j)
	case string:
		return json.Unmarshal([]byte(v), j)
	default:
		*j = make(JSONB)
		return nil
	}
}

// ProviderEvent records a verified, normalizable webhook delivery for
// diagnostics and for parking events whose customer mapping has not
// propagated yet. Distinct from ProcessedEvent: this table describes
// deliveries, the processed log describes applied transitions.
type ProviderEvent struct {
	ID               int64               `gorm:"primaryKey;autoIncrement" json:"id"`
	ProviderEventID  string              `gorm:"uniqueIndex;not null;size:255" json:"provider_event_id"`
	EventType        string              `gorm:"not null;size:100;index" json:"event_type"`
	Status           ProviderEventStatus `gorm:"size:20;default:'received';index" json:"status"`
	Payload          JSONB               `gorm:"type:jsonb" json:"payload,omitempty"`
	DeliveryAttempts int                 `gorm:"default:0" json:"delivery_attempts"`
	LastError        *string             `json:"last_error,omitempty"`
	NextRetryAt      *time.Time          `json:"next_retry_at,omitempty"`
	ObservedAt       *time.Time          `json:"observed_at,omitempty"`
	ProcessedAt      *time.Time          `json:"processed_at,omitempty"`
	CreatedAt        time.Time           `gorm:"default:now()" json:"created_at"`
}

// TableName specifies the table name for GORM
func (ProviderEvent) TableName() string {
	return "provider_events"
}
