package bookingrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/carhop-rentals/booking-verify-api/internal/adapters/postgres"
	"github.com/carhop-rentals/booking-verify-api/internal/domain"
	"github.com/carhop-rentals/booking-verify-api/internal/ports/out/bookingrepo"
)

const selectColumns = `
	booking_id,
	identity_id,
	user_email,
	user_name,
	phone_number,
	phone_locale,
	documents_confirmed,
	guidelines_accepted,
	status,
	created_at,
	updated_at
`

// Repo is a Postgres implementation of bookingrepo.Repository.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

func (r *Repo) Insert(ctx context.Context, b bookingrepo.Booking) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	identityID, err := uuid.Parse(string(b.IdentityID))
	if err != nil {
		return fmt.Errorf("invalid identity id: %w", err)
	}
	docs := b.DocumentsConfirmed
	if docs == nil {
		docs = []string{}
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO booking_verifications (
			booking_id,
			identity_id,
			user_email,
			user_name,
			phone_number,
			phone_locale,
			documents_confirmed,
			guidelines_accepted,
			status,
			created_at,
			updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		string(b.BookingID),
		identityID,
		domain.NormalizeEmail(b.UserEmail),
		b.UserName,
		b.PhoneNumber,
		b.PhoneLocale,
		docs,
		b.GuidelinesAccepted,
		string(b.Status),
		b.CreatedAt.UTC(),
		b.UpdatedAt.UTC(),
	)
	if err != nil {
		if pe, ok := postgres.AsPgError(err); ok && pe.Code == postgres.UniqueViolationCode {
			switch pe.ConstraintName {
			case "booking_verifications_booking_id_unique":
				return bookingrepo.ErrAlreadyExists
			case "booking_verifications_one_active_per_email":
				return bookingrepo.ErrActiveBookingExists
			}
		}
		return err
	}
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.BookingID) (bookingrepo.Booking, error) {
	if r.pool == nil {
		return bookingrepo.Booking{}, errors.New("nil postgres pool")
	}
	row := r.pool.QueryRow(ctx, `SELECT `+selectColumns+` FROM booking_verifications WHERE booking_id = $1`, string(id))
	b, err := scanBooking(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return bookingrepo.Booking{}, bookingrepo.ErrNotFound
	}
	return b, err
}

func (r *Repo) Find(ctx context.Context, q bookingrepo.Query) ([]bookingrepo.Booking, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	var statuses []string
	for _, s := range q.Statuses {
		statuses = append(statuses, string(s))
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+selectColumns+`
		FROM booking_verifications
		WHERE ($1 = '' OR user_email = $1)
		  AND ($2::text[] IS NULL OR status = ANY($2::text[]))
		ORDER BY created_at DESC, booking_id DESC
		LIMIT NULLIF($3::int, 0)
	`,
		domain.NormalizeEmail(q.UserEmail),
		statuses,
		q.Limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]bookingrepo.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *Repo) UpdateStatus(ctx context.Context, id domain.BookingID, status domain.BookingStatus, at time.Time) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	ct, err := r.pool.Exec(ctx, `
		UPDATE booking_verifications
		SET status = $2,
		    updated_at = $3
		WHERE booking_id = $1
	`, string(id), string(status), at.UTC())
	if err != nil {
		if pe, ok := postgres.AsPgError(err); ok && pe.Code == postgres.UniqueViolationCode {
			return bookingrepo.ErrActiveBookingExists
		}
		return err
	}
	if ct.RowsAffected() == 0 {
		return bookingrepo.ErrNotFound
	}
	return nil
}

func scanBooking(row pgx.Row) (bookingrepo.Booking, error) {
	var (
		b          bookingrepo.Booking
		bookingID  string
		identityID uuid.UUID
		status     string
	)
	if err := row.Scan(
		&bookingID,
		&identityID,
		&b.UserEmail,
		&b.UserName,
		&b.PhoneNumber,
		&b.PhoneLocale,
		&b.DocumentsConfirmed,
		&b.GuidelinesAccepted,
		&status,
		&b.CreatedAt,
		&b.UpdatedAt,
	); err != nil {
		return bookingrepo.Booking{}, err
	}
	b.BookingID = domain.BookingID(bookingID)
	b.IdentityID = domain.IdentityID(identityID.String())
	b.Status = domain.BookingStatus(status)
	b.CreatedAt = b.CreatedAt.UTC()
	b.UpdatedAt = b.UpdatedAt.UTC()
	return b, nil
}
