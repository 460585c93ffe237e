package idempotency

import (
	"context"
	"time"

	"github.com/carhop-rentals/booking-verify-api/internal/domain"
)

// Key is the caller-provided idempotency key (Idempotency-Key header).
type Key string

// Fingerprint identifies a request for replay purposes: key + subject + route + body hash.
// Route is the HTTP method plus the route pattern, e.g. "POST /v1/bookings".
type Fingerprint struct {
	Key      Key
	Subject  domain.SubjectID
	Method   string
	Route    string
	BodyHash string
}

// Record is the stored response replayed for a duplicate request.
type Record struct {
	StatusCode  int
	ContentType string
	Body        []byte
	CreatedAt   time.Time
}

// Store persists idempotency records so a retried booking confirmation replays
// the first response instead of inserting twice.
type Store interface {
	Get(ctx context.Context, fp Fingerprint) (Record, bool, error)
	Put(ctx context.Context, fp Fingerprint, rec Record) error
	// Purge drops records created before the cutoff and reports how many went.
	Purge(ctx context.Context, before time.Time) (int64, error)
}
