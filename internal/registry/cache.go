package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheVersionKey = "registry:roles:version"

// Cache is a read-through Redis cache for role lookups. A single version
// counter keys every entry; bumping it on any role write invalidates the
// whole cache without scanning keys.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper. A nil client degrades to
// loader-only behaviour, which the tests and single-node setups rely on.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Version returns the current cache version, initialising when missing.
func (c *Cache) Version(ctx context.Context) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.Set(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// FetchAssignment loads a cached assignment or populates it via the loader.
func (c *Cache) FetchAssignment(ctx context.Context, account string, loader func(context.Context) (RoleAssignment, error)) (RoleAssignment, error) {
	if loader == nil {
		return RoleAssignment{}, errors.New("registry: cache loader required")
	}
	if c == nil || c.client == nil {
		return loader(ctx)
	}
	ver, err := c.Version(ctx)
	if err != nil {
		return RoleAssignment{}, err
	}
	key := fmt.Sprintf("registry:role:%s:%d", account, ver)

	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var ra RoleAssignment
		if err := json.Unmarshal(payload, &ra); err == nil {
			return ra, nil
		}
		// Fall through and reload on a corrupt entry.
	} else if !errors.Is(err, redis.Nil) {
		return RoleAssignment{}, err
	}

	ra, err := loader(ctx)
	if err != nil {
		return RoleAssignment{}, err
	}
	raw, err := json.Marshal(ra)
	if err != nil {
		return RoleAssignment{}, err
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return RoleAssignment{}, err
	}
	return ra, nil
}

// Bump invalidates all cached assignments by incrementing the version.
func (c *Cache) Bump(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, cacheVersionKey).Err()
}
