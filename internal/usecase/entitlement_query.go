package usecase

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/foliohq/entitlement-service/internal/domain/entity"
	domainErrors "github.com/foliohq/entitlement-service/internal/domain/errors"
	"github.com/foliohq/entitlement-service/internal/domain/repository"
)

// EntitlementQueryService is the read path the rest of the application uses
// for feature gating and display. It never writes entitlement state. The
// local booleans are authoritative; the provider is consulted only for the
// informational subscription summary, and that lookup degrades to nil
// rather than failing the call.
type EntitlementQueryService struct {
	store   repository.EntitlementRepository
	cache   EntitlementCache
	gateway ProviderGateway
	logger  *zap.Logger
}

// NewEntitlementQueryService creates a new entitlement query service
func NewEntitlementQueryService(
	store repository.EntitlementRepository,
	cache EntitlementCache,
	gateway ProviderGateway,
	logger *zap.Logger,
) *EntitlementQueryService {
	return &EntitlementQueryService{
		store:   store,
		cache:   cache,
		gateway: gateway,
		logger:  logger,
	}
}

// GetEntitlement returns the locally authoritative entitlement for a user,
// or nil when the user is unknown here. Reads go through the cache when one
// is configured; cache failures fall through to the store.
func (s *EntitlementQueryService) GetEntitlement(ctx context.Context, universalID string) (*entity.Entitlement, error) {
	if s.cache != nil {
		ent, err := s.cache.Get(ctx, universalID)
		if err != nil {
			s.logger.Debug("Entitlement cache read failed",
				zap.String("universal_id", universalID),
				zap.Error(err))
		} else if ent != nil {
			return ent, nil
		}
	}

	ent, err := s.store.GetByUniversalID(ctx, universalID)
	if err != nil {
		return nil, err
	}
	if ent == nil {
		return nil, nil
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, universalID, ent); err != nil {
			s.logger.Debug("Entitlement cache write failed",
				zap.String("universal_id", universalID),
				zap.Error(err))
		}
	}

	return ent, nil
}

// GetStatus returns the query-interface response: authoritative local
// booleans plus a best-effort live summary of the current subscription.
func (s *EntitlementQueryService) GetStatus(ctx context.Context, universalID string) (*entity.EntitlementStatus, error) {
	ent, err := s.GetEntitlement(ctx, universalID)
	if err != nil {
		return nil, err
	}
	if ent == nil {
		return nil, nil
	}

	status := &entity.EntitlementStatus{
		IsPremium:             ent.IsPremium,
		ReviewsFeatureEnabled: ent.ReviewsFeatureEnabled,
	}

	if ent.ProviderCustomerID != "" {
		summary, err := s.gateway.GetSubscriptionSummary(ctx, ent.ProviderCustomerID)
		if err != nil {
			// Display degradation, not an error: the caller still gets the
			// authoritative local booleans.
			if !errors.Is(err, domainErrors.ErrNoActiveSubscription) {
				s.logger.Warn("Subscription summary fetch failed, degrading to local state",
					zap.String("universal_id", universalID),
					zap.Error(err))
			}
		} else {
			status.Summary = summary
		}
	}

	return status, nil
}
