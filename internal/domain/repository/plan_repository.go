package repository

import (
	"context"

	"github.com/foliohq/entitlement-service/internal/domain/entity"
)

// PlanRepository stores the synced plan catalog.
type PlanRepository interface {
	// GetActivePlans returns plans currently offered for display.
	GetActivePlans(ctx context.Context) ([]*entity.Plan, error)

	// Upsert inserts or refreshes a plan keyed by provider price id.
	Upsert(ctx context.Context, plan *entity.Plan) error

	// DeactivateMissing flips Active off for any plan whose provider price
	// id is not in keep.
	DeactivateMissing(ctx context.Context, keep []string) (int64, error)
}
