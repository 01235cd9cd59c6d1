package usecase_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/foliohq/entitlement-service/internal/domain/entity"
	domainErrors "github.com/foliohq/entitlement-service/internal/domain/errors"
	"github.com/foliohq/entitlement-service/internal/usecase"
)

// fakeEntitlementStore reproduces the store's atomic apply semantics in
// memory: first writer of an idempotency key wins, later writers get the
// recorded outcome back.
type fakeEntitlementStore struct {
	mu        sync.Mutex
	users     map[string]*entity.Entitlement // keyed by provider customer id
	processed map[string]*entity.ApplyResult // keyed by idempotency key
}

func newFakeEntitlementStore() *fakeEntitlementStore {
	return &fakeEntitlementStore{
		users:     make(map[string]*entity.Entitlement),
		processed: make(map[string]*entity.ApplyResult),
	}
}

func (f *fakeEntitlementStore) addUser(universalID, customerID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[customerID] = &entity.Entitlement{
		UniversalID:        universalID,
		ProviderCustomerID: customerID,
	}
}

func (f *fakeEntitlementStore) ApplyIfNotProcessed(_ context.Context, idempotencyKey, providerCustomerID string, kind entity.EventKind) (*entity.ApplyResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if prior, ok := f.processed[idempotencyKey]; ok {
		dup := *prior
		dup.Applied = false
		return &dup, nil
	}

	user, ok := f.users[providerCustomerID]
	if !ok {
		return nil, domainErrors.ErrUnmappedCustomer
	}

	switch kind {
	case entity.EventKindActivated:
		user.IsPremium = true
		user.ReviewsFeatureEnabled = true
	case entity.EventKindCancelled:
		user.IsPremium = false
	}

	result := &entity.ApplyResult{
		Applied:               true,
		Kind:                  kind,
		UniversalID:           user.UniversalID,
		IsPremium:             user.IsPremium,
		ReviewsFeatureEnabled: user.ReviewsFeatureEnabled,
	}
	f.processed[idempotencyKey] = result
	return result, nil
}

func (f *fakeEntitlementStore) GetByUniversalID(_ context.Context, universalID string) (*entity.Entitlement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.UniversalID == universalID {
			copied := *u
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeEntitlementStore) GetMappingByUniversalID(_ context.Context, universalID string) (*entity.CustomerMapping, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.UniversalID == universalID {
			return &entity.CustomerMapping{
				UniversalID:        u.UniversalID,
				ProviderCustomerID: u.ProviderCustomerID,
			}, nil
		}
	}
	return nil, nil
}

func (f *fakeEntitlementStore) CreateMapping(_ context.Context, universalID, providerCustomerID, _ string) error {
	f.addUser(universalID, providerCustomerID)
	return nil
}

// MockEntitlementCache is a mock implementation of EntitlementCache
type MockEntitlementCache struct {
	mock.Mock
}

func (m *MockEntitlementCache) Get(ctx context.Context, universalID string) (*entity.Entitlement, error) {
	args := m.Called(ctx, universalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Entitlement), args.Error(1)
}

func (m *MockEntitlementCache) Set(ctx context.Context, universalID string, ent *entity.Entitlement) error {
	args := m.Called(ctx, universalID, ent)
	return args.Error(0)
}

func (m *MockEntitlementCache) Invalidate(ctx context.Context, universalID string) error {
	args := m.Called(ctx, universalID)
	return args.Error(0)
}

func activationEvent(key, customerID string) entity.EntitlementEvent {
	return entity.EntitlementEvent{
		Kind:               entity.EventKindActivated,
		ProviderCustomerID: customerID,
		IdempotencyKey:     key,
	}
}

func cancellationEvent(key, customerID string) entity.EntitlementEvent {
	return entity.EntitlementEvent{
		Kind:               entity.EventKindCancelled,
		ProviderCustomerID: customerID,
		IdempotencyKey:     key,
	}
}

func TestReconciler_Apply(t *testing.T) {
	logger := zap.NewNop()
	ctx := context.Background()

	t.Run("activation grants premium and the reviews feature", func(t *testing.T) {
		store := newFakeEntitlementStore()
		store.addUser("user-1", "cus_1")
		reconciler := usecase.NewReconciler(store, nil, logger)

		result, err := reconciler.Apply(ctx, activationEvent("evt_1", "cus_1"))

		assert.NoError(t, err)
		assert.True(t, result.Applied)
		assert.True(t, result.IsPremium)
		assert.True(t, result.ReviewsFeatureEnabled)
	})

	t.Run("duplicate delivery returns the recorded outcome without reapplying", func(t *testing.T) {
		store := newFakeEntitlementStore()
		store.addUser("user-1", "cus_1")
		reconciler := usecase.NewReconciler(store, nil, logger)

		first, err := reconciler.Apply(ctx, activationEvent("evt_1", "cus_1"))
		assert.NoError(t, err)
		assert.True(t, first.Applied)

		// Cancel through a different event, then redeliver the activation.
		_, err = reconciler.Apply(ctx, cancellationEvent("evt_2", "cus_1"))
		assert.NoError(t, err)

		replay, err := reconciler.Apply(ctx, activationEvent("evt_1", "cus_1"))
		assert.NoError(t, err)
		assert.False(t, replay.Applied)

		// The replay answers with the outcome recorded at first application,
		// not the user's current state.
		assert.Equal(t, entity.EventKindActivated, replay.Kind)
		assert.True(t, replay.IsPremium)
		assert.True(t, replay.ReviewsFeatureEnabled)

		// The replay must not resurrect premium.
		ent, err := store.GetByUniversalID(ctx, "user-1")
		assert.NoError(t, err)
		assert.False(t, ent.IsPremium)
	})

	t.Run("cancellation retracts premium but not the reviews feature", func(t *testing.T) {
		store := newFakeEntitlementStore()
		store.addUser("user-1", "cus_1")
		reconciler := usecase.NewReconciler(store, nil, logger)

		_, err := reconciler.Apply(ctx, activationEvent("evt_1", "cus_1"))
		assert.NoError(t, err)

		result, err := reconciler.Apply(ctx, cancellationEvent("evt_2", "cus_1"))
		assert.NoError(t, err)
		assert.True(t, result.Applied)
		assert.False(t, result.IsPremium)
		assert.True(t, result.ReviewsFeatureEnabled)
	})

	t.Run("unmapped customer surfaces the sentinel", func(t *testing.T) {
		store := newFakeEntitlementStore()
		reconciler := usecase.NewReconciler(store, nil, logger)

		_, err := reconciler.Apply(ctx, activationEvent("evt_1", "cus_nobody"))

		assert.ErrorIs(t, err, domainErrors.ErrUnmappedCustomer)
	})

	t.Run("parked event applies exactly once after the mapping lands", func(t *testing.T) {
		store := newFakeEntitlementStore()
		reconciler := usecase.NewReconciler(store, nil, logger)

		// No user yet: the event parks without leaving a processed entry.
		_, err := reconciler.Apply(ctx, activationEvent("evt_1", "cus_1"))
		assert.ErrorIs(t, err, domainErrors.ErrUnmappedCustomer)

		// Mapping propagates, then the provider redelivers the same key.
		assert.NoError(t, store.CreateMapping(ctx, "user-1", "cus_1", "a@b.com"))

		result, err := reconciler.Apply(ctx, activationEvent("evt_1", "cus_1"))
		assert.NoError(t, err)
		assert.True(t, result.Applied)
		assert.True(t, result.IsPremium)

		// Any further redelivery is a no-op.
		replay, err := reconciler.Apply(ctx, activationEvent("evt_1", "cus_1"))
		assert.NoError(t, err)
		assert.False(t, replay.Applied)
		assert.True(t, replay.IsPremium)
	})

	t.Run("events without a key or customer are rejected", func(t *testing.T) {
		store := newFakeEntitlementStore()
		reconciler := usecase.NewReconciler(store, nil, logger)

		_, err := reconciler.Apply(ctx, activationEvent("", "cus_1"))
		assert.Error(t, err)

		_, err = reconciler.Apply(ctx, activationEvent("evt_1", ""))
		assert.Error(t, err)
	})

	t.Run("applied transition invalidates the cache", func(t *testing.T) {
		store := newFakeEntitlementStore()
		store.addUser("user-1", "cus_1")
		cache := new(MockEntitlementCache)
		cache.On("Invalidate", ctx, "user-1").Return(nil).Once()
		reconciler := usecase.NewReconciler(store, cache, logger)

		_, err := reconciler.Apply(ctx, activationEvent("evt_1", "cus_1"))
		assert.NoError(t, err)

		// A duplicate must not invalidate again.
		_, err = reconciler.Apply(ctx, activationEvent("evt_1", "cus_1"))
		assert.NoError(t, err)

		cache.AssertExpectations(t)
	})

	t.Run("concurrent duplicate deliveries apply exactly once", func(t *testing.T) {
		store := newFakeEntitlementStore()
		store.addUser("user-1", "cus_1")
		reconciler := usecase.NewReconciler(store, nil, logger)

		const workers = 8
		results := make([]*entity.ApplyResult, workers)
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				result, err := reconciler.Apply(ctx, activationEvent("evt_1", "cus_1"))
				assert.NoError(t, err)
				results[i] = result
			}(i)
		}
		wg.Wait()

		applied := 0
		for _, result := range results {
			if result.Applied {
				applied++
			}
			assert.True(t, result.IsPremium)
		}
		assert.Equal(t, 1, applied)
	})

	t.Run("final state is order independent", func(t *testing.T) {
		// Activation then cancellation.
		store1 := newFakeEntitlementStore()
		store1.addUser("user-1", "cus_1")
		rec1 := usecase.NewReconciler(store1, nil, logger)
		_, err := rec1.Apply(ctx, activationEvent("evt_a", "cus_1"))
		assert.NoError(t, err)
		_, err = rec1.Apply(ctx, cancellationEvent("evt_b", "cus_1"))
		assert.NoError(t, err)

		// Same events, reversed delivery order.
		store2 := newFakeEntitlementStore()
		store2.addUser("user-1", "cus_1")
		rec2 := usecase.NewReconciler(store2, nil, logger)
		_, err = rec2.Apply(ctx, cancellationEvent("evt_b", "cus_1"))
		assert.NoError(t, err)
		_, err = rec2.Apply(ctx, activationEvent("evt_a", "cus_1"))
		assert.NoError(t, err)

		ent1, _ := store1.GetByUniversalID(ctx, "user-1")
		ent2, _ := store2.GetByUniversalID(ctx, "user-1")

		// Last applied wins in both runs; what matters is that redelivering
		// either event afterwards changes nothing.
		replay1, err := rec1.Apply(ctx, activationEvent("evt_a", "cus_1"))
		assert.NoError(t, err)
		assert.False(t, replay1.Applied)
		after1, _ := store1.GetByUniversalID(ctx, "user-1")
		assert.Equal(t, ent1.IsPremium, after1.IsPremium)

		replay2, err := rec2.Apply(ctx, cancellationEvent("evt_b", "cus_1"))
		assert.NoError(t, err)
		assert.False(t, replay2.Applied)
		after2, _ := store2.GetByUniversalID(ctx, "user-1")
		assert.Equal(t, ent2.IsPremium, after2.IsPremium)
	})
}
