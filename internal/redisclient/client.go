package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ratecard-service/internal/models"

	"github.com/go-redis/redis/v8"
)

const (
	rateCardCacheTTL  = 5 * time.Minute
	idempotencyKeyTTL = 24 * time.Hour
	rateCardKeyPrefix = "ratecard:"
	idempotencyPrefix = "idempotency:"
	lockPrefix        = "lock:"
)

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// CacheRateCard stores a card (with items) as JSON with a short TTL
func (c *Client) CacheRateCard(ctx context.Context, card *models.RateCard) error {
	data, err := json.Marshal(card)
	if err != nil {
		return fmt.Errorf("failed to marshal rate card: %w", err)
	}
	return c.rdb.Set(ctx, rateCardKeyPrefix+card.ID, data, rateCardCacheTTL).Err()
}

// GetCachedRateCard returns a cached card, or ok=false on miss or any
// decode problem
func (c *Client) GetCachedRateCard(ctx context.Context, id string) (*models.RateCard, bool) {
	data, err := c.rdb.Get(ctx, rateCardKeyPrefix+id).Bytes()
	if err != nil {
		return nil, false
	}
	var card models.RateCard
	if err := json.Unmarshal(data, &card); err != nil {
		return nil, false
	}
	return &card, true
}

// InvalidateRateCard drops a card from the cache after a mutation
func (c *Client) InvalidateRateCard(ctx context.Context, id string) error {
	return c.rdb.Del(ctx, rateCardKeyPrefix+id).Err()
}

// MarkIdempotencyKey records which transaction owns an idempotency key.
// Best-effort; the unique index in Postgres is the source of truth.
func (c *Client) MarkIdempotencyKey(ctx context.Context, key, transactionID string) error {
	return c.rdb.Set(ctx, idempotencyPrefix+key, transactionID, idempotencyKeyTTL).Err()
}

// CheckIdempotencyKey reports whether a key has already been seen
func (c *Client) CheckIdempotencyKey(ctx context.Context, key string) (bool, error) {
	result, err := c.rdb.Exists(ctx, idempotencyPrefix+key).Result()
	if err != nil {
		return false, err
	}
	return result > 0, nil
}

// AcquireLock acquires a distributed lock; used to serialize the
// reconciliation sweep across instances
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, lockPrefix+lockKey, "1", ttl).Result()
}

// ReleaseLock releases a distributed lock
func (c *Client) ReleaseLock(ctx context.Context, lockKey string) error {
	return c.rdb.Del(ctx, lockPrefix+lockKey).Err()
}
