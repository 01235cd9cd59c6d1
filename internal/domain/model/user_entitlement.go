package model

import (
	"time"

	"github.com/google/uuid"
)

// UserEntitlement is the per-user premium state this service is
// authoritative for. The row is created at signup, before any billing
// interaction, with the provider customer id assigned eagerly so a webhook
// can never outrun the mapping.
type UserEntitlement struct {
	ID                    int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	UniversalID           uuid.UUID  `gorm:"type:uuid;uniqueIndex;not null" json:"universal_id"`
	ProviderCustomerID    *string    `gorm:"uniqueIndex;size:100" json:"provider_customer_id,omitempty"`
	Email                 string     `gorm:"size:255" json:"email"`
	IsPremium             bool       `gorm:"not null;default:false" json:"is_premium"`
	ReviewsFeatureEnabled bool       `gorm:"not null;default:false" json:"reviews_feature_enabled"`
	PremiumSince          *time.Time `json:"premium_since,omitempty"`
	CreatedAt             time.Time  `gorm:"default:now()" json:"created_at"`
	UpdatedAt             time.Time  `gorm:"default:now()" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (UserEntitlement) TableName() string {
	return "user_entitlements"
}
