package idempotency

import (
	"context"
	"sync"
	"time"

	"github.com/carhop-rentals/booking-verify-api/internal/ports/out/idempotency"
)

// Store keeps replayable booking-confirmation responses in process memory.
type Store struct {
	mu      sync.RWMutex
	records map[idempotency.Fingerprint]idempotency.Record
}

func NewStore() *Store {
	return &Store{records: make(map[idempotency.Fingerprint]idempotency.Record)}
}

func (s *Store) Get(_ context.Context, fp idempotency.Fingerprint) (idempotency.Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[fp]
	if !ok {
		return idempotency.Record{}, false, nil
	}
	rec.Body = append([]byte(nil), rec.Body...)
	return rec, true, nil
}

func (s *Store) Put(_ context.Context, fp idempotency.Fingerprint, rec idempotency.Record) error {
	rec.Body = append([]byte(nil), rec.Body...)
	s.mu.Lock()
	s.records[fp] = rec
	s.mu.Unlock()
	return nil
}

func (s *Store) Purge(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for fp, rec := range s.records {
		if rec.CreatedAt.Before(before) {
			delete(s.records, fp)
			n++
		}
	}
	return n, nil
}
