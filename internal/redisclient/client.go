package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"commerce-core/internal/models"

	"github.com/go-redis/redis/v8"
)

const productCacheTTL = 5 * time.Minute

// Client caches product stock reads and serves as the invalidation target for
// the post-commit hooks. The database stays authoritative; a cache miss or a
// Redis outage only costs a read-through.
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

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func stockKey(productID int64) string {
	return fmt.Sprintf("product:%d:stock", productID)
}

// GetProductStock returns a cached stock row, or nil on a miss.
func (c *Client) GetProductStock(ctx context.Context, productID int64) (*models.ProductStock, error) {
	data, err := c.rdb.Get(ctx, stockKey(productID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var ps models.ProductStock
	if err := json.Unmarshal(data, &ps); err != nil {
		return nil, fmt.Errorf("corrupt cache entry for product %d: %w", productID, err)
	}
	return &ps, nil
}

// SetProductStock caches a stock row.
func (c *Client) SetProductStock(ctx context.Context, ps *models.ProductStock) error {
	data, err := json.Marshal(ps)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, stockKey(ps.ProductID), data, productCacheTTL).Err()
}

// InvalidateProducts drops cached entries for the given products. Called by
// the coordinator after a transaction touching their stock commits.
func (c *Client) InvalidateProducts(ctx context.Context, productIDs []int64) error {
	if len(productIDs) == 0 {
		return nil
	}
	keys := make([]string, len(productIDs))
	for i, id := range productIDs {
		keys[i] = stockKey(id)
	}
	return c.rdb.Del(ctx, keys...).Err()
}

// InvalidatePrefix drops every cached key under a prefix, e.g. "product:".
// Uses SCAN rather than KEYS so it stays safe on a busy instance.
func (c *Client) InvalidatePrefix(ctx context.Context, prefix string) error {
	iter := c.rdb.Scan(ctx, 0, prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) >= 500 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				return err
			}
			keys = keys[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) > 0 {
		return c.rdb.Del(ctx, keys...).Err()
	}
	return nil
}
