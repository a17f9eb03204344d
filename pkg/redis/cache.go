package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrDisabled is returned by operations that need a live connection
var ErrDisabled = errors.New("redis disabled")

// Cache provides typed JSON storage under a key prefix
// ⭐ SSOT: 캐시 헬퍼는 여기서만
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
	return fmt.Sprintf("%s:%s", c.prefix, key)
}

// Get retrieves a value. found=false on a missing key.
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !c.client.Enabled() {
		return false, nil
	}

	data, err := c.client.Redis().Get(ctx, c.fullKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("cache unmarshal failed: %w", err)
	}

	return true, nil
}

// Set stores a value; ttl 0 keeps it until overwritten
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !c.client.Enabled() {
		return ErrDisabled
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal failed: %w", err)
	}

	return c.client.Redis().Set(ctx, c.fullKey(key), data, ttl).Err()
}

// Delete removes a value
func (c *Cache) Delete(ctx context.Context, key string) error {
	if !c.client.Enabled() {
		return nil
	}
	return c.client.Redis().Del(ctx, c.fullKey(key)).Err()
}

// Keys lists keys (without prefix) that start with sub
func (c *Cache) Keys(ctx context.Context, sub string) ([]string, error) {
	if !c.client.Enabled() {
		return nil, ErrDisabled
	}

	var (
		keys   []string
		cursor uint64
	)
	pattern := c.fullKey(sub) + "*"
	for {
		batch, next, err := c.client.Redis().Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("cache scan: %w", err)
		}
		for _, k := range batch {
			keys = append(keys, strings.TrimPrefix(k, c.prefix+":"))
		}
		if next == 0 {
			break
		}
		cursor = next
	}

	return keys, nil
}

// TTLReport 시뮬레이션 리포트 보관 기간
const TTLReport = 1 * time.Hour

// MatrixKey is the key of a trained correlation matrix
func MatrixKey(regime string) string {
	return "corr:" + regime
}

// ReportKey is the key of a stored simulation report
func ReportKey(runID string) string {
	return "report:" + runID
}
