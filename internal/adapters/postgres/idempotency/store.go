package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carhop-rentals/booking-verify-api/internal/ports/out/idempotency"
)

var errNilPool = errors.New("idempotency: nil postgres pool")

// Store keeps replayable booking-confirmation responses in idempotency_keys.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const selectRecord = `
SELECT status_code, content_type, body, created_at
FROM idempotency_keys
WHERE (idempotency_key, subject_sub, method, route, body_hash) = ($1, $2, $3, $4, $5)`

const upsertRecord = `
INSERT INTO idempotency_keys
	(idempotency_key, subject_sub, method, route, body_hash, status_code, content_type, body, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (idempotency_key, subject_sub, method, route, body_hash) DO UPDATE SET
	status_code  = EXCLUDED.status_code,
	content_type = EXCLUDED.content_type,
	body         = EXCLUDED.body,
	created_at   = EXCLUDED.created_at`

func keyArgs(fp idempotency.Fingerprint) []any {
	return []any{string(fp.Key), string(fp.Subject), fp.Method, fp.Route, fp.BodyHash}
}

func (s *Store) Get(ctx context.Context, fp idempotency.Fingerprint) (idempotency.Record, bool, error) {
	if s.pool == nil {
		return idempotency.Record{}, false, errNilPool
	}
	var rec idempotency.Record
	err := s.pool.QueryRow(ctx, selectRecord, keyArgs(fp)...).
		Scan(&rec.StatusCode, &rec.ContentType, &rec.Body, &rec.CreatedAt)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return idempotency.Record{}, false, nil
	case err != nil:
		return idempotency.Record{}, false, fmt.Errorf("select idempotency record: %w", err)
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	return rec, true, nil
}

func (s *Store) Put(ctx context.Context, fp idempotency.Fingerprint, rec idempotency.Record) error {
	if s.pool == nil {
		return errNilPool
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	if rec.Body == nil {
		rec.Body = []byte{}
	}
	args := append(keyArgs(fp), rec.StatusCode, rec.ContentType, rec.Body, rec.CreatedAt.UTC())
	if _, err := s.pool.Exec(ctx, upsertRecord, args...); err != nil {
		return fmt.Errorf("upsert idempotency record: %w", err)
	}
	return nil
}

func (s *Store) Purge(ctx context.Context, before time.Time) (int64, error) {
	if s.pool == nil {
		return 0, errNilPool
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE created_at < $1`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("purge idempotency records: %w", err)
	}
	return tag.RowsAffected(), nil
}
