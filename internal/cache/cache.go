// Package cache shares console state between instances through Redis:
// the page-visibility map and the per-screen processing locks.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mechanicbano/admin/internal/metrics"
	"github.com/mechanicbano/admin/pkg/models"
	"github.com/redis/go-redis/v9"
)

const pageVisibilityKey = "nav:pagevisibility"

// releaseScript deletes a lock only when it still holds the caller's token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// ErrLockNotHeld is returned when releasing a lock that expired or belongs to someone else
var ErrLockNotHeld = errors.New("lock not held")

// Cache provides caching functionality using Redis
type Cache struct {
	client *redis.Client
}

// NewCache creates a new cache instance
func NewCache(host string, port int, password string, db int) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Cache{client: client}, nil
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	return c.client.Close()
}

// Page visibility

// SetPageVisibility stores the visibility map fetched from the backend
func (c *Cache) SetPageVisibility(ctx context.Context, pages []models.PageVisibility, ttl time.Duration) error {
	return c.SetWithJSON(ctx, pageVisibilityKey, pages, ttl)
}

// GetPageVisibility returns the cached visibility map. found is false on a miss.
func (c *Cache) GetPageVisibility(ctx context.Context) (pages []models.PageVisibility, found bool, err error) {
	found, err = c.GetWithJSON(ctx, pageVisibilityKey, &pages)
	if err == nil {
		metrics.RecordCacheAccess("page_visibility", found)
	}
	return pages, found, err
}

// InvalidatePageVisibility drops the cached map
func (c *Cache) InvalidatePageVisibility(ctx context.Context) error {
	return c.client.Del(ctx, pageVisibilityKey).Err()
}

// Locking

// AcquireLock takes the lock on resource for ttl. It returns the token
// needed to release it, or ok=false when someone else holds it.
func (c *Cache) AcquireLock(ctx context.Context, resource string, ttl time.Duration) (token string, ok bool, err error) {
	token = uuid.New().String()
	ok, err = c.client.SetNX(ctx, lockKey(resource), token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// ReleaseLock releases a lock taken with AcquireLock
func (c *Cache) ReleaseLock(ctx context.Context, resource, token string) error {
	n, err := releaseScript.Run(ctx, c.client, []string{lockKey(resource)}, token).Int64()
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	if n == 0 {
		return ErrLockNotHeld
	}
	return nil
}

// IsLocked reports whether resource is currently locked
func (c *Cache) IsLocked(ctx context.Context, resource string) (bool, error) {
	return c.Exists(ctx, lockKey(resource))
}

func lockKey(resource string) string {
	return "lock:" + resource
}

// Exists checks if a key exists
func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	result, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return result > 0, nil
}

// SetWithJSON sets a value with JSON marshaling
func (c *Cache) SetWithJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

// GetWithJSON gets a value with JSON unmarshaling. found is false on a miss.
func (c *Cache) GetWithJSON(ctx context.Context, key string, dest interface{}) (found bool, err error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get value from cache: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal value: %w", err)
	}

	return true, nil
}

// Ping checks the connection
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
