package redisclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"storefront/internal/models"

	"github.com/go-redis/redis/v8"
)

// ErrCacheMiss is returned when a key is not cached
var ErrCacheMiss = errors.New("cache miss")

type Client struct {
	rdb        *redis.Client
	productTTL time.Duration
}

// NewClient creates a new Redis client and checks the connection
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

	return &Client{rdb: rdb, productTTL: 10 * time.Minute}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping reports whether redis is reachable
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func productKey(id string) string {
	return fmt.Sprintf("product:%s", id)
}

// GetProducts returns the cached subset of ids in one round trip.
// Missing ids are absent from the map.
func (c *Client) GetProducts(ctx context.Context, ids []string) (map[string]*models.Product, error) {
	found := make(map[string]*models.Product, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = productKey(id)
	}

	vals, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var p models.Product
		if err := json.Unmarshal([]byte(s), &p); err != nil {
			continue
		}
		found[ids[i]] = &p
	}
	return found, nil
}

// SetProducts caches products under their ids
func (c *Client) SetProducts(ctx context.Context, products ...*models.Product) error {
	pipe := c.rdb.Pipeline()
	for _, p := range products {
		raw, err := json.Marshal(p)
		if err != nil {
			return err
		}
		pipe.Set(ctx, productKey(p.ID.Hex()), raw, c.productTTL)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// DeleteProduct invalidates a cached product
func (c *Client) DeleteProduct(ctx context.Context, id string) error {
	return c.rdb.Del(ctx, productKey(id)).Err()
}

// FlushProducts removes every cached product and returns how many keys
// were deleted
func (c *Client) FlushProducts(ctx context.Context) (int, error) {
	var deleted int
	iter := c.rdb.Scan(ctx, 0, productKey("*"), 100).Iterator()
	batch := make([]string, 0, 100)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			n, err := c.rdb.Del(ctx, batch...).Result()
			if err != nil {
				return deleted, err
			}
			deleted += int(n)
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return deleted, err
	}
	if len(batch) > 0 {
		n, err := c.rdb.Del(ctx, batch...).Result()
		if err != nil {
			return deleted, err
		}
		deleted += int(n)
	}
	return deleted, nil
}

// SetIdempotencyKey stores an idempotency key with TTL
func (c *Client) SetIdempotencyKey(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.rdb.Set(ctx, fmt.Sprintf("idempotency:%s", key), value, ttl).Err()
}

// GetIdempotencyKey returns the value stored under an idempotency key
func (c *Client) GetIdempotencyKey(ctx context.Context, key string) (string, error) {
	v, err := c.rdb.Get(ctx, fmt.Sprintf("idempotency:%s", key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	return v, err
}

// MarkEventProcessed records an event id; false means it was already recorded
func (c *Client) MarkEventProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("event:%s", eventID), "1", ttl).Result()
}

// AcquireLock acquires a distributed lock
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), "1", ttl).Result()
}

// ReleaseLock releases a distributed lock
func (c *Client) ReleaseLock(ctx context.Context, lockKey string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("lock:%s", lockKey)).Err()
}

// ClearEventProcessed forgets an event id so the event can be retried
func (c *Client) ClearEventProcessed(ctx context.Context, eventID string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("event:%s", eventID)).Err()
}
