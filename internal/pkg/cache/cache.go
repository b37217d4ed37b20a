package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Cache is a TTL cache over redis for read-mostly entities (organization
// config, current QR codes). Mutating repository operations invalidate by
// entity-id pattern so no stale code or geofence survives a write.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

func New(client *redis.Client, ttl time.Duration, now func() time.Time) *Cache {
	if now == nil {
		now = time.Now
	}
	return &Cache{client: client, ttl: ttl, now: now}
}

// Get loads the value stored under key into dest. It returns false when the
// key is absent. Redis being down is reported as an error so callers can fall
// through to storage.
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	payload, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "cache get")
	}

	if err = json.Unmarshal(payload, dest); err != nil {
		return false, errors.Wrap(err, "cache decode")
	}
	return true, nil
}

// Set stores value under key with the configured TTL, computed against the
// injected clock.
func (c *Cache) Set(ctx context.Context, key string, value interface{}) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, "cache encode")
	}

	pipe := c.client.TxPipeline()
	pipe.Set(ctx, key, payload, 0)
	pipe.ExpireAt(ctx, key, c.now().Add(c.ttl))
	if _, err = pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "cache set")
	}
	return nil
}

// Invalidate removes every key matching the given patterns, e.g.
// "qrcode:org:42:*" after a regenerate.
func (c *Cache) Invalidate(ctx context.Context, patterns ...string) error {
	for _, pattern := range patterns {
		iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
		for iter.Next(ctx) {
			if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
				return errors.Wrap(err, "cache invalidate")
			}
		}
		if err := iter.Err(); err != nil {
			return errors.Wrap(err, "cache scan")
		}
	}
	return nil
}
