package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/foliohq/entitlement-service/internal/config"
	"github.com/foliohq/entitlement-service/internal/domain/entity"
)

const defaultTTL = 60 * time.Second

// EntitlementCache is a Redis read-through cache for entitlement lookups.
// The store stays authoritative: the reconciler invalidates entries after
// applying a transition, and a short TTL bounds staleness if an
// invalidation is lost.
type EntitlementCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewEntitlementCache connects to Redis and returns the cache.
func NewEntitlementCache(cfg *config.RedisConfig, logger *zap.Logger) (*EntitlementCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = defaultTTL
	}

	logger.Info("Redis connection established",
		zap.String("addr", cfg.Addr),
		zap.Duration("cache_ttl", ttl))

	return &EntitlementCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}, nil
}

func cacheKey(universalID string) string {
	return "entitlement:" + universalID
}

// Get returns the cached entitlement, or nil on a miss.
func (c *EntitlementCache) Get(ctx context.Context, universalID string) (*entity.Entitlement, error) {
	payload, err := c.client.Get(ctx, cacheKey(universalID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("cache read failed: %w", err)
	}

	var ent entity.Entitlement
	if err := json.Unmarshal(payload, &ent); err != nil {
		// A corrupt entry behaves like a miss; drop it.
		c.client.Del(ctx, cacheKey(universalID))
		return nil, nil
	}

	return &ent, nil
}

// Set stores the entitlement with the configured TTL.
func (c *EntitlementCache) Set(ctx context.Context, universalID string, ent *entity.Entitlement) error {
	payload, err := json.Marshal(ent)
	if err != nil {
		return fmt.Errorf("failed to marshal entitlement: %w", err)
	}

	if err := c.client.Set(ctx, cacheKey(universalID), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache write failed: %w", err)
	}
	return nil
}

// Invalidate drops the cached entry for a user.
func (c *EntitlementCache) Invalidate(ctx context.Context, universalID string) error {
	if err := c.client.Del(ctx, cacheKey(universalID)).Err(); err != nil {
		return fmt.Errorf("cache invalidation failed: %w", err)
	}
	return nil
}

// Close releases the underlying Redis client.
func (c *EntitlementCache) Close() error {
	return c.client.Close()
}
