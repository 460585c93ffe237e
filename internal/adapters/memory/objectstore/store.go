package objectstore

import (
	"context"
	"sync"

	"github.com/carhop-rentals/booking-verify-api/internal/ports/out/objectstore"
)

// Store is an in-memory implementation of objectstore.Store.
// It is safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	objs map[string]objectstore.Object
}

func NewStore() *Store {
	return &Store{objs: make(map[string]objectstore.Object)}
}

func (s *Store) Put(ctx context.Context, o objectstore.Object) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objs[o.Path]; ok && !o.Upsert {
		return "", objectstore.ErrExists
	}
	o.Body = append([]byte(nil), o.Body...)
	s.objs[o.Path] = o
	return o.Path, nil
}

// Get returns the stored object at path.
func (s *Store) Get(path string) (objectstore.Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.objs[path]
	return o, ok
}

// Paths returns the number of stored objects.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objs)
}
