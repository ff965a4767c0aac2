package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache provides typed JSON caching utilities
// ⭐ SSOT: cache helpers live here only
type Cache struct {
	client *Client
	prefix string
}

// NewCache creates a new cache helper
func NewCache(client *Client, prefix string) *Cache {
	return &Cache{
		client: client,
		prefix: prefix,
	}
}

func (c *Cache) fullKey(key string) string {
	return fmt.Sprintf("%s:cache:%s", c.prefix, key)
}

// Get retrieves a cached value. A missing key is a miss, not an error.
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !c.client.Enabled() {
		return false, nil
	}

	data, err := c.client.Redis().Get(ctx, c.fullKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get failed: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("cache unmarshal failed: %w", err)
	}

	return true, nil
}

// Set stores a value in cache with TTL
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !c.client.Enabled() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal failed: %w", err)
	}

	return c.client.Redis().Set(ctx, c.fullKey(key), data, ttl).Err()
}

// Delete removes a cached value
func (c *Cache) Delete(ctx context.Context, key string) error {
	if !c.client.Enabled() {
		return nil
	}

	return c.client.Redis().Del(ctx, c.fullKey(key)).Err()
}

// Cache key generators
func ActiveContractsKey() string {
	return "contracts:active"
}

func LatestSignalKey(contract string) string {
	return fmt.Sprintf("signal:latest:%s", contract)
}

func SignalHistoryKey(contract string, limit int) string {
	return fmt.Sprintf("signal:history:%s:%d", contract, limit)
}

func TradeSignalsKey(limit int) string {
	return fmt.Sprintf("signal:trades:%d", limit)
}

func SnapshotKey(contract string, minute time.Time) string {
	return fmt.Sprintf("snapshot:%s:%d", contract, minute.Unix())
}

func LatestSnapshotKey(contract string) string {
	return fmt.Sprintf("snapshot:latest:%s", contract)
}

func SnapshotMinutesKey(contract string) string {
	return fmt.Sprintf("snapshot:minutes:%s", contract)
}
