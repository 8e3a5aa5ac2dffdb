package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"seolab-api/internal/models"
)

const cacheKeyPrefix = "seo:cache:"

// ResponseCache stores generated responses keyed by the request that
// produced them. A zero TTL disables it.
type ResponseCache struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewResponseCache(redisClient *redis.Client, ttl time.Duration) *ResponseCache {
	return &ResponseCache{redis: redisClient, ttl: ttl}
}

func (c *ResponseCache) Enabled() bool {
	return c != nil && c.redis != nil && c.ttl > 0
}

// Get returns the cached response for req, or nil on a miss.
func (c *ResponseCache) Get(ctx context.Context, req models.GenerateRequest) (*models.GenerateResponse, error) {
	if !c.Enabled() {
		return nil, nil
	}

	data, err := c.redis.Get(ctx, CacheKey(req)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache: %w", err)
	}

	var resp models.GenerateResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode cached response: %w", err)
	}
	return &resp, nil
}

func (c *ResponseCache) Set(ctx context.Context, req models.GenerateRequest, resp *models.GenerateResponse) error {
	if !c.Enabled() {
		return nil
	}

	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}
	if err := c.redis.Set(ctx, CacheKey(req), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write cache: %w", err)
	}
	return nil
}

// CacheKey hashes the request fields that shape the generated content.
// Publish is excluded so a cached article can still be published.
func CacheKey(req models.GenerateRequest) string {
	req.Publish = false
	data, _ := json.Marshal(req)
	sum := sha256.Sum256(data)
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}
