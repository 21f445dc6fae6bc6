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

const productsCacheKey = "products_cache"

type Client struct {
	rdb      *redis.Client
	validity time.Duration
}

// NewClient creates a new Redis client. validity bounds how long a catalog snapshot is served.
func NewClient(addr, password string, db int, validity time.Duration) (*Client, error) {
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

	return &Client{rdb: rdb, validity: validity}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks the Redis connection
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// GetProducts returns the cached catalog snapshot, or nil when absent or expired
func (c *Client) GetProducts(ctx context.Context) (*models.ProductsCache, error) {
	raw, err := c.rdb.Get(ctx, productsCacheKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get products cache failed: %w", err)
	}

	var cached models.ProductsCache
	if err := json.Unmarshal(raw, &cached); err != nil {
		return nil, fmt.Errorf("decode products cache failed: %w", err)
	}

	if c.validity > 0 && time.Since(cached.Timestamp) > c.validity {
		return nil, nil
	}
	return &cached, nil
}

// SetProducts stores the whole catalog with its snapshot time
func (c *Client) SetProducts(ctx context.Context, records []models.Product, at time.Time) error {
	raw, err := json.Marshal(models.ProductsCache{Records: records, Timestamp: at})
	if err != nil {
		return fmt.Errorf("encode products cache failed: %w", err)
	}

	if err := c.rdb.Set(ctx, productsCacheKey, raw, c.validity).Err(); err != nil {
		return fmt.Errorf("set products cache failed: %w", err)
	}
	return nil
}
