package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/foliohq/entitlement-service/internal/domain/entity"
	"github.com/foliohq/entitlement-service/internal/domain/repository"
)

// CustomerService performs the eager, signup-time assignment of a provider
// customer to a user. Assigning at signup rather than lazily on first
// purchase keeps the unmapped-customer retry path a rarity instead of the
// common case.
type CustomerService struct {
	store   repository.EntitlementRepository
	gateway ProviderGateway
	logger  *zap.Logger
}

// NewCustomerService creates a new customer service
func NewCustomerService(store repository.EntitlementRepository, gateway ProviderGateway, logger *zap.Logger) *CustomerService {
	return &CustomerService{
		store:   store,
		gateway: gateway,
		logger:  logger,
	}
}

// RegisterCustomer ensures the user has a provider customer and a local
// mapping. Idempotent: re-registration returns the existing mapping.
func (s *CustomerService) RegisterCustomer(ctx context.Context, universalID, email string) (*entity.CustomerMapping, error) {
	existing, err := s.store.GetMappingByUniversalID(ctx, universalID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	customerID, err := s.gateway.CreateCustomer(ctx, universalID, email)
	if err != nil {
		return nil, err
	}

	if err := s.store.CreateMapping(ctx, universalID, customerID, email); err != nil {
		// The provider customer exists but the local row does not; the next
		// registration attempt finds no mapping and creates a fresh
		// customer. Orphaned provider customers are harmless.
		return nil, err
	}

	s.logger.Info("Customer registered",
		zap.String("universal_id", universalID),
		zap.String("provider_customer_id", customerID))

	return &entity.CustomerMapping{
		UniversalID:        universalID,
		ProviderCustomerID: customerID,
		Email:              email,
		CreatedAt:          time.Now(),
	}, nil
}
