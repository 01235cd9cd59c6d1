package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/foliohq/entitlement-service/internal/domain/model"
	"github.com/foliohq/entitlement-service/internal/domain/repository"
)

type eventLogRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewEventLogRepository creates a new event log repository
func NewEventLogRepository(db *gorm.DB, logger *zap.Logger) repository.EventLogRepository {
	return &eventLogRepository{
		db:     db,
		logger: logger,
	}
}

// Record stores a delivery once; duplicate provider event ids are ignored.
func (r *eventLogRepository) Record(ctx context.Context, providerEventID, eventType string, payload json.RawMessage, observedAt time.Time) error {
	var payloadMap model.JSONB
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &payloadMap); err != nil {
			r.logger.Warn("Failed to parse event payload for logging",
				zap.String("provider_event_id", providerEventID),
				zap.Error(err))
		}
	}

	event := &model.ProviderEvent{
		ProviderEventID: providerEventID,
		EventType:       eventType,
		Status:          model.ProviderEventStatusReceived,
		Payload:         payloadMap,
		ObservedAt:      &observedAt,
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(event).Error
	if err != nil {
		r.logger.Error("Failed to record provider event",
			zap.String("provider_event_id", providerEventID),
			zap.String("event_type", eventType),
			zap.Error(err))
		return fmt.Errorf("failed to record provider event: %w", err)
	}

	return nil
}

// MarkProcessed stamps a delivery as applied (or deduplicated).
func (r *eventLogRepository) MarkProcessed(ctx context.Context, providerEventID string) error {
	now := time.Now()

	result := r.db.WithContext(ctx).
		Model(&model.ProviderEvent{}).
		Where("provider_event_id = ?", providerEventID).
		Updates(map[string]interface{}{
			"status":       model.ProviderEventStatusProcessed,
			"processed_at": &now,
		})

	if result.Error != nil {
		return fmt.Errorf("failed to mark provider event processed: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("provider event not found: %s", providerEventID)
	}

	return nil
}

// MarkFailed increments the delivery attempt counter with exponential
// backoff metadata and returns the new attempt count.
func (r *eventLogRepository) MarkFailed(ctx context.Context, providerEventID string, cause error) (int, error) {
	var event model.ProviderEvent
	if err := r.db.WithContext(ctx).
		Where("provider_event_id = ?", providerEventID).
		First(&event).Error; err != nil {
		return 0, fmt.Errorf("failed to load provider event: %w", err)
	}

	attempts := event.DeliveryAttempts + 1
	retryMinutes := 5 * (1 << attempts) // 10, 20, 40, ...
	if retryMinutes > 1440 {
		retryMinutes = 1440
	}
	nextRetry := time.Now().Add(time.Duration(retryMinutes) * time.Minute)
	errorMsg := cause.Error()

	result := r.db.WithContext(ctx).
		Model(&model.ProviderEvent{}).
		Where("provider_event_id = ?", providerEventID).
		Updates(map[string]interface{}{
			"status":            model.ProviderEventStatusFailed,
			"delivery_attempts": attempts,
			"last_error":        &errorMsg,
			"next_retry_at":     &nextRetry,
		})

	if result.Error != nil {
		r.logger.Error("Failed to mark provider event failed",
			zap.String("provider_event_id", providerEventID),
			zap.Error(result.Error))
		return 0, fmt.Errorf("failed to mark provider event failed: %w", result.Error)
	}

	return attempts, nil
}

// FlagNeedsReview marks a delivery for manual inspection.
func (r *eventLogRepository) FlagNeedsReview(ctx context.Context, providerEventID string) error {
	result := r.db.WithContext(ctx).
		Model(&model.ProviderEvent{}).
		Where("provider_event_id = ?", providerEventID).
		Update("status", model.ProviderEventStatusNeedsReview)

	if result.Error != nil {
		return fmt.Errorf("failed to flag provider event: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("provider event not found: %s", providerEventID)
	}

	r.logger.Warn("Provider event flagged for manual review",
		zap.String("provider_event_id", providerEventID))
	return nil
}

// ListUnresolved returns failed and flagged deliveries, oldest first.
func (r *eventLogRepository) ListUnresolved(ctx context.Context, limit int) ([]*model.ProviderEvent, error) {
	var events []*model.ProviderEvent

	query := r.db.WithContext(ctx).
		Where("status IN (?, ?)",
			model.ProviderEventStatusFailed,
			model.ProviderEventStatusNeedsReview).
		Order("created_at ASC")

	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&events).Error; err != nil {
		r.logger.Error("Failed to list unresolved provider events", zap.Error(err))
		return nil, fmt.Errorf("failed to list unresolved provider events: %w", err)
	}

	return events, nil
}
