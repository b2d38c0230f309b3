package utils

import (
	"context"       // Context for Redis operations
	"encoding/json" // JSON encoding/decoding
	"strings"       // Key building
	"time"          // Time durations

	"github.com/redis/go-redis/v9" // Redis client
)

// generationKey holds the counter that scopes every cached read
const generationKey = "backoffice:cache:generation"

// GetCache retrieves a value from Redis and unmarshals it into dest.
// A nil client is a cache that never hits.
func GetCache(ctx context.Context, rdb *redis.Client, key string, dest any) (bool, error) {
	if rdb == nil {
		return false, nil // Caching disabled
	}
	val, err := rdb.Get(ctx, key).Result() // Get value from Redis
	if err == redis.Nil {
		return false, nil // Key does not exist
	} else if err != nil {
		return false, err // Other Redis error
	}
	return true, json.Unmarshal([]byte(val), dest) // Unmarshal JSON into dest
}

// SetCache sets a value in Redis with a specified TTL
func SetCache(ctx context.Context, rdb *redis.Client, key string, value any, ttl time.Duration) error {
	if rdb == nil {
		return nil // Caching disabled
	}
	b, err := json.Marshal(value) // Marshal value to JSON
	if err != nil {
		return err // Return error if marshaling fails
	}
	return rdb.Set(ctx, key, b, ttl).Err() // Set value in Redis with TTL
}

// DeleteCache deletes a key from Redis
func DeleteCache(ctx context.Context, rdb *redis.Client, key string) error {
	if rdb == nil {
		return nil
	}
	return rdb.Del(ctx, key).Err() // Delete key from Redis
}

// CacheKey joins parts under the current cache generation, so a bump makes
// every earlier key unreachable
func CacheKey(ctx context.Context, rdb *redis.Client, parts ...string) string {
	gen := "0" // Generation used when Redis is absent or unset
	if rdb != nil {
		if v, err := rdb.Get(ctx, generationKey).Result(); err == nil {
			gen = v // Current generation
		}
	}
	return "backoffice:g" + gen + ":" + strings.Join(parts, ":")
}

// BumpCache starts a new cache generation. Called after every committed mutation.
func BumpCache(ctx context.Context, rdb *redis.Client) error {
	if rdb == nil {
		return nil
	}
	return rdb.Incr(ctx, generationKey).Err() // Old keys expire on their own TTL
}
