package usecase

import (
	"context"

	"github.com/foliohq/entitlement-service/internal/domain/entity"
)

// ProviderGateway is the synchronous surface of the external billing
// provider as the use cases need it. The Stripe implementation lives in
// infrastructure/provider/stripe.
type ProviderGateway interface {
	CreateCustomer(ctx context.Context, universalID, email string) (string, error)
	CreateCheckoutSession(ctx context.Context, customerID, priceID string) (string, error)
	CreatePortalSession(ctx context.Context, customerID string) (string, error)
	CancelActiveSubscriptions(ctx context.Context, customerID string) (int, error)
	GetSubscriptionSummary(ctx context.Context, customerID string) (*entity.SubscriptionSummary, error)
	ListRecurringPrices(ctx context.Context) ([]*entity.Plan, error)
}

// EntitlementCache accelerates the entitlement read path. It is strictly a
// cache over the store: writes go to the store, the reconciler invalidates
// here after applying a transition. A nil cache is valid and means
// every read hits the store.
type EntitlementCache interface {
	Get(ctx context.Context, universalID string) (*entity.Entitlement, error)
	Set(ctx context.Context, universalID string, ent *entity.Entitlement) error
	Invalidate(ctx context.Context, universalID string) error
}
