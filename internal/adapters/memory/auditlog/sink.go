package auditlog

import (
	"context"
	"sync"

	"github.com/carhop-rentals/booking-verify-api/internal/ports/out/auditlog"
)

// Sink is an in-memory auditlog.Sink that keeps every action in order.
// It is safe for concurrent use.
type Sink struct {
	mu      sync.Mutex
	actions []auditlog.Action
}

func NewSink() *Sink {
	return &Sink{}
}

func (s *Sink) Record(ctx context.Context, a auditlog.Action) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions = append(s.actions, a)
	return nil
}

// Actions returns a copy of the recorded actions.
func (s *Sink) Actions() []auditlog.Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]auditlog.Action(nil), s.actions...)
}

// Types returns the recorded action types in order.
func (s *Sink) Types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.actions))
	for _, a := range s.actions {
		out = append(out, a.Type)
	}
	return out
}
