package usecase

import (
	"context"

	"go.uber.org/zap"

	"github.com/foliohq/entitlement-service/internal/domain/repository"
)

// PlanSyncService mirrors the provider's active recurring prices into the
// local plan catalog so the pricing page renders without a provider round
// trip. Run from the sync-plans command, typically on deploy or cron.
type PlanSyncService struct {
	planRepo repository.PlanRepository
	gateway  ProviderGateway
	logger   *zap.Logger
}

// NewPlanSyncService creates a new plan sync service
func NewPlanSyncService(planRepo repository.PlanRepository, gateway ProviderGateway, logger *zap.Logger) *PlanSyncService {
	return &PlanSyncService{
		planRepo: planRepo,
		gateway:  gateway,
		logger:   logger,
	}
}

// Sync upserts every active recurring price and deactivates local plans the
// provider no longer offers. Returns the number of synced plans.
func (s *PlanSyncService) Sync(ctx context.Context) (int, error) {
	plans, err := s.gateway.ListRecurringPrices(ctx)
	if err != nil {
		return 0, err
	}

	keep := make([]string, 0, len(plans))
	for _, plan := range plans {
		if err := s.planRepo.Upsert(ctx, plan); err != nil {
			return 0, err
		}
		keep = append(keep, plan.ProviderPriceID)
	}

	deactivated, err := s.planRepo.DeactivateMissing(ctx, keep)
	if err != nil {
		return 0, err
	}

	s.logger.Info("Plan catalog synced",
		zap.Int("synced", len(plans)),
		zap.Int64("deactivated", deactivated))

	return len(plans), nil
}
