package bookingrepo

import (
	"context"
	"errors"
	"time"

	"github.com/carhop-rentals/booking-verify-api/internal/domain"
)

var (
	// ErrNotFound indicates the requested booking does not exist.
	ErrNotFound = errors.New("booking not found")

	// ErrAlreadyExists indicates a booking already exists with the provided booking id.
	ErrAlreadyExists = errors.New("booking already exists")

	// ErrActiveBookingExists indicates the owner already has a confirmed or ride-completed booking.
	ErrActiveBookingExists = errors.New("an active booking already exists for this account")
)

// Booking is the persistence shape used by the booking repository.
type Booking struct {
	BookingID domain.BookingID

	IdentityID domain.IdentityID
	UserEmail  string
	UserName   string

	PhoneNumber string
	PhoneLocale string

	DocumentsConfirmed []string
	GuidelinesAccepted bool

	Status domain.BookingStatus

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Query selects bookings for one owner.
type Query struct {
	UserEmail string
	Statuses  []domain.BookingStatus
	// Limit bounds the result size; zero means no limit.
	Limit int
}

// Repository provides access to persisted booking verifications.
//
// Result ordering expectations:
// - Find returns bookings ordered by CreatedAt descending (most recent first), ties by BookingID.
type Repository interface {
	Insert(ctx context.Context, b Booking) error
	GetByID(ctx context.Context, id domain.BookingID) (Booking, error)
	Find(ctx context.Context, q Query) ([]Booking, error)
	UpdateStatus(ctx context.Context, id domain.BookingID, status domain.BookingStatus, at time.Time) error
}

// Latest returns the most recent booking matching q, or ErrNotFound.
func Latest(ctx context.Context, r Repository, q Query) (Booking, error) {
	q.Limit = 1
	bs, err := r.Find(ctx, q)
	if err != nil {
		return Booking{}, err
	}
	if len(bs) == 0 {
		return Booking{}, ErrNotFound
	}
	return bs[0], nil
}
