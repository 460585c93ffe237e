package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carhop-rentals/booking-verify-api/internal/domain"
	"github.com/carhop-rentals/booking-verify-api/internal/ports/out/idempotency"
)

func TestStore_PutThenGet(t *testing.T) {
	t.Parallel()

	s := NewStore()
	fp := idempotency.Fingerprint{
		Key:      "k1",
		Subject:  domain.SubjectID("sub-1"),
		Method:   "POST",
		Route:    "/v1/bookings",
		BodyHash: "abc123",
	}
	rec := idempotency.Record{
		StatusCode:  201,
		ContentType: "application/json",
		Body:        []byte(`{"bookingId":"BK-1"}`),
		CreatedAt:   time.Unix(123, 0).UTC(),
	}

	require.NoError(t, s.Put(context.Background(), fp, rec))

	got, ok, err := s.Get(context.Background(), fp)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rec.StatusCode, got.StatusCode)
	assert.Equal(t, rec.ContentType, got.ContentType)
	assert.Equal(t, string(rec.Body), string(got.Body))

	other := fp
	other.BodyHash = "different"
	_, ok, err = s.Get(context.Background(), other)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_PurgeKeepsRecentRecords(t *testing.T) {
	t.Parallel()

	s := NewStore()
	ctx := context.Background()
	old := idempotency.Fingerprint{Key: "old", Subject: "sub-1", Method: "POST", Route: "/v1/bookings"}
	recent := idempotency.Fingerprint{Key: "recent", Subject: "sub-1", Method: "POST", Route: "/v1/bookings"}
	require.NoError(t, s.Put(ctx, old, idempotency.Record{StatusCode: 201, CreatedAt: time.Unix(100, 0)}))
	require.NoError(t, s.Put(ctx, recent, idempotency.Record{StatusCode: 201, CreatedAt: time.Unix(900, 0)}))

	n, err := s.Purge(ctx, time.Unix(500, 0))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, ok, _ := s.Get(ctx, old)
	assert.False(t, ok)
	_, ok, _ = s.Get(ctx, recent)
	assert.True(t, ok)
}
