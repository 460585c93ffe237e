// Package sessioncache stores reconciled session snapshots in Redis with a TTL.
package sessioncache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/carhop-rentals/booking-verify-api/internal/domain"
	"github.com/carhop-rentals/booking-verify-api/internal/ports/out/sessioncache"
)

const keyPrefix = "booking-session:"

type Cache struct {
	rdb redis.Cmdable
}

func New(rdb redis.Cmdable) *Cache {
	return &Cache{rdb: rdb}
}

// Open builds a client for addr and pings it.
func Open(ctx context.Context, addr, password string) (*redis.Client, error) {
	rc := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return rc, nil
}

var _ sessioncache.Cache = (*Cache)(nil)

func key(email string) string {
	return keyPrefix + domain.NormalizeEmail(email)
}

func (c *Cache) Get(ctx context.Context, email string) (sessioncache.Snapshot, bool, error) {
	raw, err := c.rdb.Get(ctx, key(email)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return sessioncache.Snapshot{}, false, nil
		}
		return sessioncache.Snapshot{}, false, err
	}
	var s sessioncache.Snapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		// Corrupt entries are dropped and treated as a miss.
		_ = c.rdb.Del(ctx, key(email)).Err()
		return sessioncache.Snapshot{}, false, nil
	}
	return s, true, nil
}

func (c *Cache) Put(ctx context.Context, s sessioncache.Snapshot) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key(s.Email), raw, sessioncache.TTL).Err()
}

func (c *Cache) Delete(ctx context.Context, email string) error {
	return c.rdb.Del(ctx, key(email)).Err()
}
