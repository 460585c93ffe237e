package ridecompletionrepo

import (
	"context"
	"errors"
	"time"

	"github.com/carhop-rentals/booking-verify-api/internal/domain"
)

var (
	ErrNotFound      = errors.New("ride completion not found")
	ErrAlreadyExists = errors.New("ride completion already exists")
)

// RideCompletion is the persistence shape of post-ride media evidence.
type RideCompletion struct {
	ID         domain.RideCompletionID
	BookingID  domain.BookingID
	IdentityID domain.IdentityID

	Photos       []domain.PhotoLocator
	VideoLocator string

	SubmittedAt time.Time
}

type Repository interface {
	Insert(ctx context.Context, rc RideCompletion) error
	GetByBookingID(ctx context.Context, id domain.BookingID) (RideCompletion, error)
}
