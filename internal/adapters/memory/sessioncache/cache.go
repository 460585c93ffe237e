package sessioncache

import (
	"context"
	"sync"

	"github.com/carhop-rentals/booking-verify-api/internal/domain"
	clockport "github.com/carhop-rentals/booking-verify-api/internal/ports/out/clock"
	"github.com/carhop-rentals/booking-verify-api/internal/ports/out/sessioncache"
)

// Cache is an in-memory sessioncache.Cache with TTL expiry on read.
// It is safe for concurrent use.
type Cache struct {
	clk clockport.Clock

	mu sync.Mutex
	m  map[string]sessioncache.Snapshot
}

func NewCache(clk clockport.Clock) *Cache {
	return &Cache{clk: clk, m: make(map[string]sessioncache.Snapshot)}
}

func (c *Cache) Get(ctx context.Context, email string) (sessioncache.Snapshot, bool, error) {
	_ = ctx
	key := domain.NormalizeEmail(email)
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.m[key]
	if !ok {
		return sessioncache.Snapshot{}, false, nil
	}
	if c.clk.Now().Sub(s.CachedAt) > sessioncache.TTL {
		delete(c.m, key)
		return sessioncache.Snapshot{}, false, nil
	}
	s.DocumentsConfirmed = append([]string(nil), s.DocumentsConfirmed...)
	return s, true, nil
}

func (c *Cache) Put(ctx context.Context, s sessioncache.Snapshot) error {
	_ = ctx
	if s.CachedAt.IsZero() {
		s.CachedAt = c.clk.Now()
	}
	s.DocumentsConfirmed = append([]string(nil), s.DocumentsConfirmed...)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[domain.NormalizeEmail(s.Email)] = s
	return nil
}

func (c *Cache) Delete(ctx context.Context, email string) error {
	_ = ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, domain.NormalizeEmail(email))
	return nil
}
