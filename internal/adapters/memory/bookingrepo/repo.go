package bookingrepo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/carhop-rentals/booking-verify-api/internal/domain"
	"github.com/carhop-rentals/booking-verify-api/internal/ports/out/bookingrepo"
)

// Repo is an in-memory implementation of bookingrepo.Repository.
// It is safe for concurrent use.
type Repo struct {
	mu   sync.RWMutex
	byID map[domain.BookingID]bookingrepo.Booking
}

func NewRepo() *Repo {
	return &Repo{byID: make(map[domain.BookingID]bookingrepo.Booking)}
}

func (r *Repo) Insert(ctx context.Context, b bookingrepo.Booking) error {
	_ = ctx
	if b.BookingID == "" {
		return bookingrepo.ErrAlreadyExists // treat empty ID as invalid; the app layer validates first
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[b.BookingID]; ok {
		return bookingrepo.ErrAlreadyExists
	}
	// Mirrors the partial unique index on (user_email) for active statuses.
	if isActive(b.Status) {
		email := domain.NormalizeEmail(b.UserEmail)
		for _, existing := range r.byID {
			if isActive(existing.Status) && domain.NormalizeEmail(existing.UserEmail) == email {
				return bookingrepo.ErrActiveBookingExists
			}
		}
	}
	r.byID[b.BookingID] = cloneBooking(b)
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.BookingID) (bookingrepo.Booking, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.byID[id]
	if !ok {
		return bookingrepo.Booking{}, bookingrepo.ErrNotFound
	}
	return cloneBooking(b), nil
}

func (r *Repo) Find(ctx context.Context, q bookingrepo.Query) ([]bookingrepo.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	email := domain.NormalizeEmail(q.UserEmail)

	r.mu.RLock()
	out := make([]bookingrepo.Booking, 0)
	for _, b := range r.byID {
		if email != "" && domain.NormalizeEmail(b.UserEmail) != email {
			continue
		}
		if len(q.Statuses) > 0 && !containsStatus(q.Statuses, b.Status) {
			continue
		}
		out = append(out, cloneBooking(b))
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].BookingID > out[j].BookingID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (r *Repo) UpdateStatus(ctx context.Context, id domain.BookingID, status domain.BookingStatus, at time.Time) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.byID[id]
	if !ok {
		return bookingrepo.ErrNotFound
	}
	b.Status = status
	b.UpdatedAt = at.UTC()
	r.byID[id] = b
	return nil
}

func isActive(s domain.BookingStatus) bool {
	return containsStatus(domain.RestorableStatuses, s)
}

func containsStatus(ss []domain.BookingStatus, s domain.BookingStatus) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

func cloneBooking(b bookingrepo.Booking) bookingrepo.Booking {
	out := b
	out.DocumentsConfirmed = append([]string(nil), b.DocumentsConfirmed...)
	return out
}
