package identityrepo

import (
	"context"
	"errors"
	"time"

	"github.com/carhop-rentals/booking-verify-api/internal/domain"
)

// ErrNotFound indicates no identity exists for the email.
var ErrNotFound = errors.New("identity not found")

// Identity is the persistence shape of an authenticated user.
type Identity struct {
	ID      domain.IdentityID
	Subject domain.SubjectID

	Email       string
	DisplayName string
	AvatarURL   *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Repository persists identities keyed by email.
type Repository interface {
	// Upsert inserts or updates the identity keyed on Email (last write wins for the
	// mutable fields). The stored record is returned; ID and CreatedAt of an existing
	// row are preserved.
	Upsert(ctx context.Context, i Identity) (Identity, error)

	GetByEmail(ctx context.Context, email string) (Identity, error)
}
