package utils

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// ErrCacheMiss is returned by TokenCache.Get when no hash is cached.
var ErrCacheMiss = errors.New("cache miss")

// TokenCache caches the token hash of a signed-in device.
type TokenCache interface {
	Get(ctx context.Context, userID, deviceID string) (string, error)
	Set(ctx context.Context, userID, deviceID, tokenHash string) error
	Delete(ctx context.Context, userID, deviceID string) error
}

// RedisTokenCache implements TokenCache on the auth Redis database.
type RedisTokenCache struct {
	Client *redis.Client
}

func NewRedisTokenCache(client *redis.Client) *RedisTokenCache {
	return &RedisTokenCache{Client: client}
}

func (c *RedisTokenCache) Get(ctx context.Context, userID, deviceID string) (string, error) {
	hash, err := c.Client.Get(ctx, AuthCacheKey(userID, deviceID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	if err != nil {
		return "", fmt.Errorf("failed to read auth cache: %w", err)
	}
	// Sliding expiry keeps active devices warm.
	_ = c.Client.Expire(ctx, AuthCacheKey(userID, deviceID), AuthCacheTTL).Err()
	return hash, nil
}

func (c *RedisTokenCache) Set(ctx context.Context, userID, deviceID, tokenHash string) error {
	if err := c.Client.Set(ctx, AuthCacheKey(userID, deviceID), tokenHash, AuthCacheTTL).Err(); err != nil {
		return fmt.Errorf("failed to write auth cache: %w", err)
	}
	return nil
}

func (c *RedisTokenCache) Delete(ctx context.Context, userID, deviceID string) error {
	return c.Client.Del(ctx, AuthCacheKey(userID, deviceID)).Err()
}
