package ridecompletionrepo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/carhop-rentals/booking-verify-api/internal/adapters/postgres"
	"github.com/carhop-rentals/booking-verify-api/internal/domain"
	"github.com/carhop-rentals/booking-verify-api/internal/ports/out/ridecompletionrepo"
)

// Repo is a Postgres implementation of ridecompletionrepo.Repository.
// Photo locators are stored as two parallel arrays in slot order.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

func (r *Repo) Insert(ctx context.Context, rc ridecompletionrepo.RideCompletion) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	id, err := uuid.Parse(string(rc.ID))
	if err != nil {
		return fmt.Errorf("invalid ride completion id: %w", err)
	}
	identityID, err := uuid.Parse(string(rc.IdentityID))
	if err != nil {
		return fmt.Errorf("invalid identity id: %w", err)
	}
	slots := make([]string, 0, len(rc.Photos))
	urls := make([]string, 0, len(rc.Photos))
	for _, p := range rc.Photos {
		slots = append(slots, string(p.Slot))
		urls = append(urls, p.Locator)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO ride_completions (
			external_id,
			booking_id,
			identity_id,
			photo_slots,
			photo_urls,
			video_url,
			submitted_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		id,
		string(rc.BookingID),
		identityID,
		slots,
		urls,
		rc.VideoLocator,
		rc.SubmittedAt.UTC(),
	)
	if err != nil {
		if pe, ok := postgres.AsPgError(err); ok && pe.Code == postgres.UniqueViolationCode {
			return ridecompletionrepo.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *Repo) GetByBookingID(ctx context.Context, id domain.BookingID) (ridecompletionrepo.RideCompletion, error) {
	if r.pool == nil {
		return ridecompletionrepo.RideCompletion{}, errors.New("nil postgres pool")
	}
	var (
		out        ridecompletionrepo.RideCompletion
		externalID uuid.UUID
		identityID uuid.UUID
		bookingID  string
		slots      []string
		urls       []string
	)
	err := r.pool.QueryRow(ctx, `
		SELECT external_id, booking_id, identity_id, photo_slots, photo_urls, video_url, submitted_at
		FROM ride_completions
		WHERE booking_id = $1
	`, string(id)).Scan(&externalID, &bookingID, &identityID, &slots, &urls, &out.VideoLocator, &out.SubmittedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ridecompletionrepo.RideCompletion{}, ridecompletionrepo.ErrNotFound
		}
		return ridecompletionrepo.RideCompletion{}, err
	}
	if len(slots) != len(urls) {
		return ridecompletionrepo.RideCompletion{}, fmt.Errorf("ride completion %s: %d slots but %d urls", bookingID, len(slots), len(urls))
	}
	out.ID = domain.RideCompletionID(externalID.String())
	out.BookingID = domain.BookingID(bookingID)
	out.IdentityID = domain.IdentityID(identityID.String())
	out.SubmittedAt = out.SubmittedAt.UTC()
	out.Photos = make([]domain.PhotoLocator, 0, len(slots))
	for i := range slots {
		out.Photos = append(out.Photos, domain.PhotoLocator{Slot: domain.PhotoSlot(slots[i]), Locator: urls[i]})
	}
	return out, nil
}
