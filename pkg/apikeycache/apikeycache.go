package apikeycache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "apikey:"

// Cache maps verified API keys to their client ID in Redis so the argon2
// check runs once per TTL instead of on every request.
// Keys are stored as SHA-256 digests, never in plaintext.
type Cache struct {
	redis *redis.Client
	ttl   time.Duration
}

func New(redisClient *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{
		redis: redisClient,
		ttl:   ttl,
	}
}

func cacheKey(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return keyPrefix + hex.EncodeToString(sum[:])
}

// Get returns the client ID cached for apiKey. ok is false on a miss.
func (c *Cache) Get(ctx context.Context, apiKey string) (clientID string, ok bool, err error) {
	clientID, err = c.redis.Get(ctx, cacheKey(apiKey)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read api key cache: %w", err)
	}
	return clientID, true, nil
}

// Put records a successful verification of apiKey.
func (c *Cache) Put(ctx context.Context, apiKey, clientID string) error {
	if err := c.redis.Set(ctx, cacheKey(apiKey), clientID, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write api key cache: %w", err)
	}
	return nil
}

// Forget drops one key, e.g. when it failed a later check.
func (c *Cache) Forget(ctx context.Context, apiKey string) error {
	if err := c.redis.Del(ctx, cacheKey(apiKey)).Err(); err != nil {
		return fmt.Errorf("failed to remove api key from cache: %w", err)
	}
	return nil
}

// ForgetClient removes every cached key that resolves to clientID.
// Used when a client is deactivated.
func (c *Cache) ForgetClient(ctx context.Context, clientID string) error {
	iter := c.redis.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	var stale []string
	for iter.Next(ctx) {
		key := iter.Val()
		v, err := c.redis.Get(ctx, key).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to read api key cache: %w", err)
		}
		if v == clientID {
			stale = append(stale, key)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan api key cache: %w", err)
	}
	if len(stale) == 0 {
		return nil
	}
	if err := c.redis.Del(ctx, stale...).Err(); err != nil {
		return fmt.Errorf("failed to clear api key cache: %w", err)
	}
	return nil
}
