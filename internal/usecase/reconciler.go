package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/foliohq/entitlement-service/internal/domain/entity"
	"github.com/foliohq/entitlement-service/internal/domain/repository"
)

// Reconciler applies normalized provider events to the entitlement store.
//
// It makes no attempt to reconstruct causal order: the provider is the
// source of truth for current status, deliveries are unordered, and each
// event is an independent last-applied-wins assignment of a terminal state
// for its customer. Duplicate deliveries are no-ops answered with the
// originally recorded outcome; the atomic check-and-mark lives in the store
// so the guarantee holds across concurrent process instances.
type Reconciler struct {
	store  repository.EntitlementRepository
	cache  EntitlementCache
	logger *zap.Logger
}

// NewReconciler creates a new entitlement reconciler
func NewReconciler(store repository.EntitlementRepository, cache EntitlementCache, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		store:  store,
		cache:  cache,
		logger: logger,
	}
}

// Apply feeds one event through the store's atomic apply operation.
// Unmapped customers surface errors.ErrUnmappedCustomer so the delivery
// mechanism's retry schedule can run; everything else unexpected is fatal
// for this event and also left to redelivery.
func (r *Reconciler) Apply(ctx context.Context, event entity.EntitlementEvent) (*entity.ApplyResult, error) {
	if event.IdempotencyKey == "" {
		return nil, fmt.Errorf("event has no idempotency key")
	}
	if event.ProviderCustomerID == "" {
		return nil, fmt.Errorf("event has no provider customer id")
	}

	result, err := r.store.ApplyIfNotProcessed(ctx, event.IdempotencyKey, event.ProviderCustomerID, event.Kind)
	if err != nil {
		return nil, err
	}

	if !result.Applied {
		r.logger.Info("Duplicate delivery ignored",
			zap.String("idempotency_key", event.IdempotencyKey),
			zap.String("provider_customer_id", event.ProviderCustomerID),
			zap.String("applied_kind", string(result.Kind)))
		return result, nil
	}

	r.logger.Info("Entitlement transition applied",
		zap.String("idempotency_key", event.IdempotencyKey),
		zap.String("provider_customer_id", event.ProviderCustomerID),
		zap.String("kind", string(event.Kind)),
		zap.Bool("is_premium", result.IsPremium),
		zap.Time("observed_at", event.ObservedAt))

	if r.cache != nil {
		// Best effort: a stale cache entry self-heals at TTL expiry.
		if err := r.cache.Invalidate(ctx, result.UniversalID); err != nil {
			r.logger.Warn("Failed to invalidate entitlement cache",
				zap.String("universal_id", result.UniversalID),
				zap.Error(err))
		}
	}

	return result, nil
}
