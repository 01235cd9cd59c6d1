package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/foliohq/entitlement-service/internal/domain/entity"
	domainErrors "github.com/foliohq/entitlement-service/internal/domain/errors"
	"github.com/foliohq/entitlement-service/internal/domain/model"
	"github.com/foliohq/entitlement-service/internal/domain/repository"
)

type entitlementRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewEntitlementRepository creates a new entitlement repository
func NewEntitlementRepository(db *gorm.DB, logger *zap.Logger) repository.EntitlementRepository {
	return &entitlementRepository{
		db:     db,
		logger: logger,
	}
}

// ApplyIfNotProcessed runs the check-and-mark plus the entitlement mutation
// in a single transaction. The insert-if-absent on the idempotency key is
// the mutual-exclusion boundary: a concurrent delivery of the same key
// blocks on the conflicting insert until the first transaction commits, then
// observes zero affected rows and takes the no-op branch. Unrelated keys
// never contend.
func (r *entitlementRepository) ApplyIfNotProcessed(ctx context.Context, idempotencyKey, providerCustomerID string, kind entity.EventKind) (*entity.ApplyResult, error) {
	var result *entity.ApplyResult

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record := &model.ProcessedEvent{
			IdempotencyKey:     idempotencyKey,
			ProviderCustomerID: providerCustomerID,
			AppliedKind:        string(kind),
			AppliedAt:          time.Now(),
		}

		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "idempotency_key"}},
			DoNothing: true,
		}).Create(record)
		if res.Error != nil {
			return fmt.Errorf("failed to record processed event: %w", res.Error)
		}

		if res.RowsAffected == 0 {
			// Duplicate delivery. Answer with the outcome recorded when the
			// key was first applied, not the user's current state: later
			// events may have moved the row on, and a replay must not look
			// like it observed them.
			var prior model.ProcessedEvent
			if err := tx.Where("idempotency_key = ?", idempotencyKey).First(&prior).Error; err != nil {
				return fmt.Errorf("failed to load prior outcome: %w", err)
			}

			var user model.UserEntitlement
			err := tx.Where("provider_customer_id = ?", prior.ProviderCustomerID).First(&user).Error
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return domainErrors.ErrUnmappedCustomer
				}
				return fmt.Errorf("failed to load entitlement: %w", err)
			}

			result = &entity.ApplyResult{
				Applied:               false,
				Kind:                  entity.EventKind(prior.AppliedKind),
				UniversalID:           user.UniversalID.String(),
				IsPremium:             prior.ResultingPremium,
				ReviewsFeatureEnabled: prior.ResultingReviews,
			}
			return nil
		}

		var user model.UserEntitlement
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("provider_customer_id = ?", providerCustomerID).
			First(&user).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// Rolls back the processed-event insert as well: a parked
				// event leaves no log entry.
				return domainErrors.ErrUnmappedCustomer
			}
			return fmt.Errorf("failed to load entitlement: %w", err)
		}

		updates := map[string]interface{}{
			"updated_at": time.Now(),
		}

		switch kind {
		case entity.EventKindActivated:
			updates["is_premium"] = true
			// Reviews are granted together with premium and deliberately
			// not retracted on cancellation.
			updates["reviews_feature_enabled"] = true
			if user.PremiumSince == nil {
				now := time.Now()
				updates["premium_since"] = &now
			}
			user.IsPremium = true
			user.ReviewsFeatureEnabled = true
		case entity.EventKindCancelled:
			updates["is_premium"] = false
			user.IsPremium = false
		default:
			return fmt.Errorf("unknown event kind: %q", kind)
		}

		if err := tx.Model(&model.UserEntitlement{}).
			Where("id = ?", user.ID).
			Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update entitlement: %w", err)
		}

		if err := tx.Model(&model.ProcessedEvent{}).
			Where("idempotency_key = ?", idempotencyKey).
			Updates(map[string]interface{}{
				"resulting_premium": user.IsPremium,
				"resulting_reviews": user.ReviewsFeatureEnabled,
			}).Error; err != nil {
			return fmt.Errorf("failed to finalize processed event: %w", err)
		}

		result = &entity.ApplyResult{
			Applied:               true,
			Kind:                  kind,
			UniversalID:           user.UniversalID.String(),
			IsPremium:             user.IsPremium,
			ReviewsFeatureEnabled: user.ReviewsFeatureEnabled,
		}
		return nil
	})

	if err != nil {
		if !errors.Is(err, domainErrors.ErrUnmappedCustomer) {
			r.logger.Error("Failed to apply entitlement event",
				zap.String("idempotency_key", idempotencyKey),
				zap.String("provider_customer_id", providerCustomerID),
				zap.Error(err))
		}
		return nil, err
	}

	return result, nil
}

// GetByUniversalID returns the entitlement for a user, or nil when no row exists.
func (r *entitlementRepository) GetByUniversalID(ctx context.Context, universalID string) (*entity.Entitlement, error) {
	parsed, err := uuid.Parse(universalID)
	if err != nil {
		return nil, fmt.Errorf("invalid universal id: %w", err)
	}

	var user model.UserEntitlement
	err = r.db.WithContext(ctx).Where("universal_id = ?", parsed).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to get entitlement",
			zap.String("universal_id", universalID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get entitlement: %w", err)
	}

	return modelToEntitlement(&user), nil
}

// GetMappingByUniversalID returns the customer mapping for a user, or nil
// when the user has no provider customer assigned.
func (r *entitlementRepository) GetMappingByUniversalID(ctx context.Context, universalID string) (*entity.CustomerMapping, error) {
	parsed, err := uuid.Parse(universalID)
	if err != nil {
		return nil, fmt.Errorf("invalid universal id: %w", err)
	}

	var user model.UserEntitlement
	err = r.db.WithContext(ctx).Where("universal_id = ?", parsed).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get customer mapping: %w", err)
	}

	if user.ProviderCustomerID == nil || *user.ProviderCustomerID == "" {
		return nil, nil
	}

	return &entity.CustomerMapping{
		UniversalID:        user.UniversalID.String(),
		ProviderCustomerID: *user.ProviderCustomerID,
		Email:              user.Email,
		CreatedAt:          user.CreatedAt,
	}, nil
}

// CreateMapping assigns a provider customer id to a user, creating the row
// if signup has not materialized one here yet. The id is assigned once and
// immutable afterwards; reassignment is an explicit repair operation, not
// this method.
func (r *entitlementRepository) CreateMapping(ctx context.Context, universalID, providerCustomerID, email string) error {
	parsed, err := uuid.Parse(universalID)
	if err != nil {
		return fmt.Errorf("invalid universal id: %w", err)
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.UserEntitlement
		findErr := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("universal_id = ?", parsed).
			First(&existing).Error

		if findErr != nil {
			if !errors.Is(findErr, gorm.ErrRecordNotFound) {
				return findErr
			}
			return tx.Create(&model.UserEntitlement{
				UniversalID:        parsed,
				ProviderCustomerID: &providerCustomerID,
				Email:              email,
			}).Error
		}

		if existing.ProviderCustomerID != nil && *existing.ProviderCustomerID != "" {
			if *existing.ProviderCustomerID == providerCustomerID {
				return nil
			}
			return fmt.Errorf("user %s already mapped to customer %s", universalID, *existing.ProviderCustomerID)
		}

		return tx.Model(&model.UserEntitlement{}).
			Where("id = ?", existing.ID).
			Updates(map[string]interface{}{
				"provider_customer_id": providerCustomerID,
				"email":                email,
				"updated_at":           time.Now(),
			}).Error
	})

	if err != nil {
		r.logger.Error("Failed to create customer mapping",
			zap.String("universal_id", universalID),
			zap.String("provider_customer_id", providerCustomerID),
			zap.Error(err))
		return fmt.Errorf("failed to create customer mapping: %w", err)
	}

	return nil
}

func modelToEntitlement(m *model.UserEntitlement) *entity.Entitlement {
	if m == nil {
		return nil
	}
	ent := &entity.Entitlement{
		UniversalID:           m.UniversalID.String(),
		IsPremium:             m.IsPremium,
		ReviewsFeatureEnabled: m.ReviewsFeatureEnabled,
		PremiumSince:          m.PremiumSince,
		UpdatedAt:             m.UpdatedAt,
	}
	if m.ProviderCustomerID != nil {
		ent.ProviderCustomerID = *m.ProviderCustomerID
	}
	return ent
}
