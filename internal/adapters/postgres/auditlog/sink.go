package auditlog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carhop-rentals/booking-verify-api/internal/domain"
	"github.com/carhop-rentals/booking-verify-api/internal/ports/out/auditlog"
)

// Sink writes actions to the user_actions table.
type Sink struct {
	pool *pgxpool.Pool
}

func NewSink(pool *pgxpool.Pool) *Sink {
	return &Sink{pool: pool}
}

func (s *Sink) Record(ctx context.Context, a auditlog.Action) error {
	if s.pool == nil {
		return errors.New("nil postgres pool")
	}
	var bookingID *string
	if a.BookingID != "" {
		v := string(a.BookingID)
		bookingID = &v
	}
	data := a.Data
	if data == nil {
		data = map[string]any{}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO user_actions (user_email, booking_id, action_type, action_data, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`,
		domain.NormalizeEmail(a.UserEmail),
		bookingID,
		a.Type,
		data,
		a.At.UTC(),
	)
	return err
}

// CountByEmail returns how many actions of type were recorded for email.
func (s *Sink) CountByEmail(ctx context.Context, email, actionType string) (int, error) {
	if s.pool == nil {
		return 0, errors.New("nil postgres pool")
	}
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM user_actions WHERE user_email = $1 AND action_type = $2
	`, domain.NormalizeEmail(email), actionType).Scan(&n)
	return n, err
}
