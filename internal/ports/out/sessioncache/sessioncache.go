package sessioncache

import (
	"context"
	"time"

	"github.com/carhop-rentals/booking-verify-api/internal/domain"
)

// TTL is how long a reconciled snapshot stays valid.
const TTL = 5 * time.Minute

// Snapshot is the restorable booking state for one identity.
type Snapshot struct {
	Email              string               `json:"email"`
	BookingID          domain.BookingID     `json:"bookingId"`
	Status             domain.BookingStatus `json:"status"`
	DocumentsConfirmed []string             `json:"documentsConfirmed"`
	GuidelinesAccepted bool                 `json:"guidelinesAccepted"`
	PhoneNumber        string               `json:"phoneNumber"`
	PhoneLocale        string               `json:"phoneLocale"`
	CachedAt           time.Time            `json:"cachedAt"`
}

// Cache holds reconciled snapshots keyed by email. A miss returns ok=false and no error.
type Cache interface {
	Get(ctx context.Context, email string) (Snapshot, bool, error)
	Put(ctx context.Context, s Snapshot) error
	Delete(ctx context.Context, email string) error
}
