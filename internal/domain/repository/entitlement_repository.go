package repository

import (
	"context"

	"github.com/foliohq/entitlement-service/internal/domain/entity"
)

// EntitlementRepository is the durable store for user entitlement and the
// processed-event idempotency log.
type EntitlementRepository interface {
	// ApplyIfNotProcessed performs the single atomic unit of work of the
	// reconciliation path: insert-if-absent on the idempotency key and the
	// entitlement mutation happen in one transaction. A key that was already
	// processed yields Applied=false and the previously recorded outcome.
	// A customer id with no user row yields errors.ErrUnmappedCustomer and
	// leaves no trace in the processed log.
	ApplyIfNotProcessed(ctx context.Context, idempotencyKey, providerCustomerID string, kind entity.EventKind) (*entity.ApplyResult, error)

	// GetByUniversalID returns the entitlement for a user, or nil when no
	// row exists.
	GetByUniversalID(ctx context.Context, universalID string) (*entity.Entitlement, error)

	// GetMappingByUniversalID returns the customer mapping for a user, or
	// nil when the user has no provider customer yet.
	GetMappingByUniversalID(ctx context.Context, universalID string) (*entity.CustomerMapping, error)

	// CreateMapping creates the user row with its provider customer id
	// assigned. At most one user may map to a given customer id.
	CreateMapping(ctx context.Context, universalID, providerCustomerID, email string) error
}
