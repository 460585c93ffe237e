package ridecompletionrepo

import (
	"context"
	"sync"

	"github.com/carhop-rentals/booking-verify-api/internal/domain"
	"github.com/carhop-rentals/booking-verify-api/internal/ports/out/ridecompletionrepo"
)

// Repo is an in-memory implementation of ridecompletionrepo.Repository.
// It is safe for concurrent use.
type Repo struct {
	mu        sync.RWMutex
	byBooking map[domain.BookingID]ridecompletionrepo.RideCompletion
	ids       map[domain.RideCompletionID]struct{}
}

func NewRepo() *Repo {
	return &Repo{
		byBooking: make(map[domain.BookingID]ridecompletionrepo.RideCompletion),
		ids:       make(map[domain.RideCompletionID]struct{}),
	}
}

func (r *Repo) Insert(ctx context.Context, rc ridecompletionrepo.RideCompletion) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ids[rc.ID]; ok {
		return ridecompletionrepo.ErrAlreadyExists
	}
	if _, ok := r.byBooking[rc.BookingID]; ok {
		return ridecompletionrepo.ErrAlreadyExists
	}
	rc.Photos = append([]domain.PhotoLocator(nil), rc.Photos...)
	r.byBooking[rc.BookingID] = rc
	r.ids[rc.ID] = struct{}{}
	return nil
}

func (r *Repo) GetByBookingID(ctx context.Context, id domain.BookingID) (ridecompletionrepo.RideCompletion, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	rc, ok := r.byBooking[id]
	if !ok {
		return ridecompletionrepo.RideCompletion{}, ridecompletionrepo.ErrNotFound
	}
	rc.Photos = append([]domain.PhotoLocator(nil), rc.Photos...)
	return rc, nil
}

// Len reports how many ride completions are stored.
func (r *Repo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byBooking)
}
