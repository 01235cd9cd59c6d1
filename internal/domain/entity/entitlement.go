package entity

import "time"

// EventKind is the closed vocabulary of normalized provider events.
type EventKind string

const (
	EventKindActivated EventKind = "activated"
	EventKindCancelled EventKind = "cancelled"
)

// EntitlementEvent is the internal representation of a provider webhook
// delivery after signature verification and normalization. It is ephemeral;
// only its idempotency key outlives processing.
type EntitlementEvent struct {
	Kind               EventKind `json:"kind"`
	ProviderCustomerID string    `json:"provider_customer_id"`
	// IdempotencyKey is the provider event id. Two deliveries carrying the
	// same key describe the same event.
	IdempotencyKey string `json:"idempotency_key"`
	// ObservedAt is the provider-reported creation time. Diagnostic only;
	// it never participates in ordering decisions.
	ObservedAt time.Time `json:"observed_at"`
}

// Entitlement is the locally authoritative premium state for one user.
type Entitlement struct {
	UniversalID           string     `json:"universal_id"`
	ProviderCustomerID    string     `json:"provider_customer_id,omitempty"`
	IsPremium             bool       `json:"is_premium"`
	ReviewsFeatureEnabled bool       `json:"reviews_feature_enabled"`
	PremiumSince          *time.Time `json:"premium_since,omitempty"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// ApplyResult reports the outcome of feeding one event through the store.
// Applied is false when the idempotency key had already been processed; the
// remaining fields then carry the previously recorded outcome.
type ApplyResult struct {
	Applied               bool      `json:"applied"`
	Kind                  EventKind `json:"kind"`
	UniversalID           string    `json:"universal_id"`
	IsPremium             bool      `json:"is_premium"`
	ReviewsFeatureEnabled bool      `json:"reviews_feature_enabled"`
}

// CustomerMapping links a provider customer id to a universal id.
type CustomerMapping struct {
	UniversalID        string    `json:"universal_id"`
	ProviderCustomerID string    `json:"provider_customer_id"`
	Email              string    `json:"email"`
	CreatedAt          time.Time `json:"created_at"`
}

// SubscriptionSummary is display-only plan information fetched live from the
// provider. It never gates a decision.
type SubscriptionSummary struct {
	SubscriptionID    string    `json:"subscription_id"`
	PlanName          string    `json:"plan_name"`
	Amount            int64     `json:"amount"`
	Currency          string    `json:"currency"`
	Interval          string    `json:"interval"`
	IntervalCount     int64     `json:"interval_count"`
	CurrentPeriodEnd  time.Time `json:"current_period_end"`
	CancelAtPeriodEnd bool      `json:"cancel_at_period_end"`
}

// EntitlementStatus is the query-interface response: authoritative local
// booleans plus the best-effort remote summary.
type EntitlementStatus struct {
	IsPremium             bool                 `json:"is_premium"`
	ReviewsFeatureEnabled bool                 `json:"reviews_feature_enabled"`
	Summary               *SubscriptionSummary `json:"summary,omitempty"`
}
