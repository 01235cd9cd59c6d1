package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/foliohq/entitlement-service/internal/domain/entity"
	domainErrors "github.com/foliohq/entitlement-service/internal/domain/errors"
	"github.com/foliohq/entitlement-service/internal/usecase"
)

// MockProviderGateway is a mock implementation of ProviderGateway
type MockProviderGateway struct {
	mock.Mock
}

func (m *MockProviderGateway) CreateCustomer(ctx context.Context, universalID, email string) (string, error) {
	args := m.Called(ctx, universalID, email)
	return args.String(0), args.Error(1)
}

func (m *MockProviderGateway) CreateCheckoutSession(ctx context.Context, customerID, priceID string) (string, error) {
	args := m.Called(ctx, customerID, priceID)
	return args.String(0), args.Error(1)
}

func (m *MockProviderGateway) CreatePortalSession(ctx context.Context, customerID string) (string, error) {
	args := m.Called(ctx, customerID)
	return args.String(0), args.Error(1)
}

func (m *MockProviderGateway) CancelActiveSubscriptions(ctx context.Context, customerID string) (int, error) {
	args := m.Called(ctx, customerID)
	return args.Int(0), args.Error(1)
}

func (m *MockProviderGateway) GetSubscriptionSummary(ctx context.Context, customerID string) (*entity.SubscriptionSummary, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.SubscriptionSummary), args.Error(1)
}

func (m *MockProviderGateway) ListRecurringPrices(ctx context.Context) ([]*entity.Plan, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entity.Plan), args.Error(1)
}

func TestEntitlementQueryService_GetStatus(t *testing.T) {
	logger := zap.NewNop()
	ctx := context.Background()

	setupPremiumUser := func(store *fakeEntitlementStore) {
		store.addUser("user-1", "cus_1")
		store.users["cus_1"].IsPremium = true
		store.users["cus_1"].ReviewsFeatureEnabled = true
	}

	t.Run("returns local flags with the live summary attached", func(t *testing.T) {
		store := newFakeEntitlementStore()
		setupPremiumUser(store)

		gateway := new(MockProviderGateway)
		summary := &entity.SubscriptionSummary{
			SubscriptionID:   "sub_1",
			PlanName:         "Premium Monthly",
			Amount:           999,
			Currency:         "usd",
			Interval:         "month",
			CurrentPeriodEnd: time.Now().Add(20 * 24 * time.Hour),
		}
		gateway.On("GetSubscriptionSummary", ctx, "cus_1").Return(summary, nil)

		query := usecase.NewEntitlementQueryService(store, nil, gateway, logger)
		status, err := query.GetStatus(ctx, "user-1")

		assert.NoError(t, err)
		assert.True(t, status.IsPremium)
		assert.True(t, status.ReviewsFeatureEnabled)
		assert.Equal(t, summary, status.Summary)
	})

	t.Run("provider outage degrades to local flags only", func(t *testing.T) {
		store := newFakeEntitlementStore()
		setupPremiumUser(store)

		gateway := new(MockProviderGateway)
		gateway.On("GetSubscriptionSummary", ctx, "cus_1").
			Return(nil, &domainErrors.RemoteProviderError{Op: "list subscriptions"})

		query := usecase.NewEntitlementQueryService(store, nil, gateway, logger)
		status, err := query.GetStatus(ctx, "user-1")

		assert.NoError(t, err)
		assert.True(t, status.IsPremium)
		assert.True(t, status.ReviewsFeatureEnabled)
		assert.Nil(t, status.Summary)
	})

	t.Run("no active subscription is not an error", func(t *testing.T) {
		store := newFakeEntitlementStore()
		store.addUser("user-1", "cus_1")

		gateway := new(MockProviderGateway)
		gateway.On("GetSubscriptionSummary", ctx, "cus_1").
			Return(nil, domainErrors.ErrNoActiveSubscription)

		query := usecase.NewEntitlementQueryService(store, nil, gateway, logger)
		status, err := query.GetStatus(ctx, "user-1")

		assert.NoError(t, err)
		assert.False(t, status.IsPremium)
		assert.Nil(t, status.Summary)
	})

	t.Run("unknown user yields nil", func(t *testing.T) {
		store := newFakeEntitlementStore()
		gateway := new(MockProviderGateway)

		query := usecase.NewEntitlementQueryService(store, nil, gateway, logger)
		status, err := query.GetStatus(ctx, "user-unknown")

		assert.NoError(t, err)
		assert.Nil(t, status)
		gateway.AssertNotCalled(t, "GetSubscriptionSummary")
	})
}

func TestEntitlementQueryService_GetEntitlement_Cache(t *testing.T) {
	logger := zap.NewNop()
	ctx := context.Background()

	t.Run("cache hit skips the store", func(t *testing.T) {
		store := newFakeEntitlementStore()
		cache := new(MockEntitlementCache)
		cached := &entity.Entitlement{UniversalID: "user-1", IsPremium: true}
		cache.On("Get", ctx, "user-1").Return(cached, nil)

		query := usecase.NewEntitlementQueryService(store, cache, nil, logger)
		ent, err := query.GetEntitlement(ctx, "user-1")

		assert.NoError(t, err)
		assert.Equal(t, cached, ent)
		cache.AssertExpectations(t)
	})

	t.Run("cache miss reads the store and populates the cache", func(t *testing.T) {
		store := newFakeEntitlementStore()
		store.addUser("user-1", "cus_1")

		cache := new(MockEntitlementCache)
		cache.On("Get", ctx, "user-1").Return(nil, nil)
		cache.On("Set", ctx, "user-1", mock.AnythingOfType("*entity.Entitlement")).Return(nil)

		query := usecase.NewEntitlementQueryService(store, cache, nil, logger)
		ent, err := query.GetEntitlement(ctx, "user-1")

		assert.NoError(t, err)
		assert.Equal(t, "user-1", ent.UniversalID)
		cache.AssertExpectations(t)
	})

	t.Run("cache failure falls through to the store", func(t *testing.T) {
		store := newFakeEntitlementStore()
		store.addUser("user-1", "cus_1")

		cache := new(MockEntitlementCache)
		cache.On("Get", ctx, "user-1").Return(nil, assert.AnError)
		cache.On("Set", ctx, "user-1", mock.Anything).Return(nil)

		query := usecase.NewEntitlementQueryService(store, cache, nil, logger)
		ent, err := query.GetEntitlement(ctx, "user-1")

		assert.NoError(t, err)
		assert.NotNil(t, ent)
	})
}

func TestCustomerService_RegisterCustomer(t *testing.T) {
	logger := zap.NewNop()
	ctx := context.Background()

	t.Run("creates a provider customer and stores the mapping", func(t *testing.T) {
		store := newFakeEntitlementStore()
		gateway := new(MockProviderGateway)
		gateway.On("CreateCustomer", ctx, "user-1", "a@b.com").Return("cus_new", nil)

		svc := usecase.NewCustomerService(store, gateway, logger)
		mapping, err := svc.RegisterCustomer(ctx, "user-1", "a@b.com")

		assert.NoError(t, err)
		assert.Equal(t, "cus_new", mapping.ProviderCustomerID)

		stored, err := store.GetMappingByUniversalID(ctx, "user-1")
		assert.NoError(t, err)
		assert.Equal(t, "cus_new", stored.ProviderCustomerID)
	})

	t.Run("re-registration returns the existing mapping without a provider call", func(t *testing.T) {
		store := newFakeEntitlementStore()
		store.addUser("user-1", "cus_old")
		gateway := new(MockProviderGateway)

		svc := usecase.NewCustomerService(store, gateway, logger)
		mapping, err := svc.RegisterCustomer(ctx, "user-1", "a@b.com")

		assert.NoError(t, err)
		assert.Equal(t, "cus_old", mapping.ProviderCustomerID)
		gateway.AssertNotCalled(t, "CreateCustomer")
	})

	t.Run("provider failure propagates", func(t *testing.T) {
		store := newFakeEntitlementStore()
		gateway := new(MockProviderGateway)
		gateway.On("CreateCustomer", ctx, "user-1", "a@b.com").
			Return("", &domainErrors.RemoteProviderError{Op: "create customer"})

		svc := usecase.NewCustomerService(store, gateway, logger)
		_, err := svc.RegisterCustomer(ctx, "user-1", "a@b.com")

		var remoteErr *domainErrors.RemoteProviderError
		assert.ErrorAs(t, err, &remoteErr)
	})
}
