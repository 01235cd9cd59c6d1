package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/foliohq/entitlement-service/internal/domain/entity"
	"github.com/foliohq/entitlement-service/internal/domain/model"
	"github.com/foliohq/entitlement-service/internal/domain/repository"
)

type planRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewPlanRepository creates a new plan repository
func NewPlanRepository(db *gorm.DB, logger *zap.Logger) repository.PlanRepository {
	return &planRepository{
		db:     db,
		logger: logger,
	}
}

func (r *planRepository) GetActivePlans(ctx context.Context) ([]*entity.Plan, error) {
	var plans []*model.Plan

	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("amount ASC").
		Find(&plans).Error
	if err != nil {
		r.logger.Error("Failed to get active plans", zap.Error(err))
		return nil, fmt.Errorf("failed to get active plans: %w", err)
	}

	result := make([]*entity.Plan, 0, len(plans))
	for _, p := range plans {
		result = append(result, &entity.Plan{
			ID:              p.ID,
			ProviderPriceID: p.ProviderPriceID,
			Name:            p.Name,
			Description:     p.Description,
			Amount:          p.Amount,
			Currency:        p.Currency,
			Interval:        p.Interval,
			IntervalCount:   p.IntervalCount,
			Active:          p.Active,
		})
	}

	return result, nil
}

func (r *planRepository) Upsert(ctx context.Context, plan *entity.Plan) error {
	record := &model.Plan{
		ProviderPriceID: plan.ProviderPriceID,
		Name:            plan.Name,
		Description:     plan.Description,
		Amount:          plan.Amount,
		Currency:        plan.Currency,
		Interval:        plan.Interval,
		IntervalCount:   plan.IntervalCount,
		Active:          plan.Active,
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "provider_price_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"name", "description", "amount", "currency",
				"interval", "interval_count", "active", "updated_at",
			}),
		}).
		Create(record).Error
	if err != nil {
		r.logger.Error("Failed to upsert plan",
			zap.String("provider_price_id", plan.ProviderPriceID),
			zap.Error(err))
		return fmt.Errorf("failed to upsert plan: %w", err)
	}

	return nil
}

func (r *planRepository) DeactivateMissing(ctx context.Context, keep []string) (int64, error) {
	query := r.db.WithContext(ctx).
		Model(&model.Plan{}).
		Where("active = ?", true)

	if len(keep) > 0 {
		query = query.Where("provider_price_id NOT IN ?", keep)
	}

	result := query.Update("active", false)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to deactivate plans: %w", result.Error)
	}

	return result.RowsAffected, nil
}
