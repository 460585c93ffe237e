package bookingrepo

import (
	"testing"

	"github.com/carhop-rentals/booking-verify-api/internal/adapters/contracttest"
	"github.com/carhop-rentals/booking-verify-api/internal/adapters/postgres/testutil"
	bookingrepoport "github.com/carhop-rentals/booking-verify-api/internal/ports/out/bookingrepo"
)

func TestContract_PostgresBookingRepo(t *testing.T) {
	pool := testutil.OpenMigratedPool(t)

	contracttest.RunBookingRepo(t, func(t *testing.T) (bookingrepoport.Repository, func()) {
		t.Helper()
		return NewRepo(pool), nil
	})
}
