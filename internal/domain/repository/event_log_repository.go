package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/foliohq/entitlement-service/internal/domain/model"
)

// EventLogRepository records verified webhook deliveries for diagnostics and
// parks events whose user mapping has not propagated yet.
type EventLogRepository interface {
	// Record stores a delivery once; duplicate provider event ids are
	// silently ignored.
	Record(ctx context.Context, providerEventID, eventType string, payload json.RawMessage, observedAt time.Time) error

	// MarkProcessed stamps a delivery as applied (or deduplicated).
	MarkProcessed(ctx context.Context, providerEventID string) error

	// MarkFailed increments the delivery attempt counter with backoff
	// metadata and returns the new attempt count.
	MarkFailed(ctx context.Context, providerEventID string, cause error) (int, error)

	// FlagNeedsReview marks a delivery for manual inspection after the
	// retry budget is exhausted.
	FlagNeedsReview(ctx context.Context, providerEventID string) error

	// ListUnresolved returns failed and flagged deliveries, oldest first.
	ListUnresolved(ctx context.Context, limit int) ([]*model.ProviderEvent, error)
}
