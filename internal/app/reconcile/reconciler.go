// Package reconcile restores a returning user's confirmed booking on sign-in.
// The lookup is raced against a short timeout so sign-in never waits on a slow
// record store.
package reconcile

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/carhop-rentals/booking-verify-api/internal/app/audit"
	"github.com/carhop-rentals/booking-verify-api/internal/domain"
	"github.com/carhop-rentals/booking-verify-api/internal/ports/out/auditlog"
	"github.com/carhop-rentals/booking-verify-api/internal/ports/out/bookingrepo"
	clockport "github.com/carhop-rentals/booking-verify-api/internal/ports/out/clock"
	"github.com/carhop-rentals/booking-verify-api/internal/ports/out/identityrepo"
	"github.com/carhop-rentals/booking-verify-api/internal/ports/out/sessioncache"
)

const (
	DefaultTimeout      = 2000 * time.Millisecond
	DefaultQueryTimeout = 3000 * time.Millisecond
)

type Result struct {
	Found    bool
	Snapshot sessioncache.Snapshot
	// Identity is the stored identity when the upsert finished in time.
	Identity  domain.Identity
	TimedOut  bool
	FromCache bool
}

// RideCompleted reports whether the restored booking has finished its ride.
func (r Result) RideCompleted() bool {
	return r.Found && r.Snapshot.Status == domain.BookingStatusRideCompleted
}

type Reconciler struct {
	identities identityrepo.Repository
	bookings   bookingrepo.Repository
	cache      sessioncache.Cache
	tracker    *audit.Tracker
	clk        clockport.Clock
	log        *zap.Logger

	// Timeout is how long Reconcile waits before answering "not found".
	Timeout time.Duration
	// QueryTimeout caps the store calls themselves, including after Reconcile
	// has stopped waiting for them.
	QueryTimeout time.Duration
}

// NewReconciler wires the reconciler. cache may be nil.
func NewReconciler(
	identities identityrepo.Repository,
	bookings bookingrepo.Repository,
	cache sessioncache.Cache,
	tracker *audit.Tracker,
	clk clockport.Clock,
	log *zap.Logger,
) *Reconciler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reconciler{
		identities:   identities,
		bookings:     bookings,
		cache:        cache,
		tracker:      tracker,
		clk:          clk,
		log:          log,
		Timeout:      DefaultTimeout,
		QueryTimeout: DefaultQueryTimeout,
	}
}

type lookup struct {
	cached    sessioncache.Snapshot
	fromCache bool

	identity    domain.Identity
	identityErr error
	booking     bookingrepo.Booking
	bookingErr  error
}

// Reconcile upserts the identity and looks up its latest confirmed or
// ride-completed booking. Store failures and timeouts both yield Found=false.
func (r *Reconciler) Reconcile(ctx context.Context, id domain.Identity) Result {
	email := domain.NormalizeEmail(id.Email)
	if email == "" {
		return Result{}
	}
	id.Email = email

	// The cache read is raced too; a slow cache must not hold sign-in.
	// Buffered so the losing goroutine can always deliver and exit.
	done := make(chan lookup, 1)
	detached := context.WithoutCancel(ctx)
	go func() {
		qctx, cancel := context.WithTimeout(detached, r.QueryTimeout)
		defer cancel()
		if snap, ok := r.cached(qctx, email); ok {
			done <- lookup{cached: snap, fromCache: true}
			return
		}
		done <- r.lookup(qctx, id)
	}()

	timer := time.NewTimer(r.Timeout)
	defer timer.Stop()

	var res lookup
	select {
	case res = <-done:
	case <-timer.C:
		r.log.Warn("booking lookup timed out; showing verification",
			zap.String("email", email),
			zap.Duration("timeout", r.Timeout),
		)
		return Result{TimedOut: true}
	case <-ctx.Done():
		return Result{}
	}

	if res.fromCache {
		r.trackRestored(ctx, res.cached, true)
		return Result{Found: true, Snapshot: res.cached, FromCache: true}
	}

	out := Result{}
	if res.identityErr != nil {
		r.log.Warn("identity upsert failed", zap.String("email", email), zap.Error(res.identityErr))
	} else {
		out.Identity = res.identity
	}
	if res.bookingErr != nil {
		if !errors.Is(res.bookingErr, bookingrepo.ErrNotFound) {
			r.log.Warn("booking lookup failed", zap.String("email", email), zap.Error(res.bookingErr))
		}
		return out
	}

	out.Found = true
	out.Snapshot = snapshotOf(res.booking, r.clk.Now())
	if r.cache != nil {
		if err := r.cache.Put(ctx, out.Snapshot); err != nil {
			r.log.Warn("session cache write failed", zap.Error(err))
		}
	}
	r.trackRestored(ctx, out.Snapshot, false)
	return out
}

func (r *Reconciler) lookup(ctx context.Context, id domain.Identity) lookup {
	var out lookup
	var g errgroup.Group
	g.Go(func() error {
		now := r.clk.Now()
		stored, err := r.identities.Upsert(ctx, identityrepo.Identity{
			ID:          id.ID,
			Subject:     id.Subject,
			Email:       id.Email,
			DisplayName: id.NameOrEmail(),
			AvatarURL:   id.AvatarURL,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		if err != nil {
			out.identityErr = err
			return nil
		}
		out.identity = domain.Identity{
			ID:          stored.ID,
			Subject:     stored.Subject,
			Email:       stored.Email,
			DisplayName: stored.DisplayName,
			AvatarURL:   stored.AvatarURL,
			CreatedAt:   stored.CreatedAt,
			UpdatedAt:   stored.UpdatedAt,
		}
		return nil
	})
	g.Go(func() error {
		out.booking, out.bookingErr = bookingrepo.Latest(ctx, r.bookings, bookingrepo.Query{
			UserEmail: id.Email,
			Statuses:  domain.RestorableStatuses,
		})
		return nil
	})
	_ = g.Wait()
	return out
}

func (r *Reconciler) cached(ctx context.Context, email string) (sessioncache.Snapshot, bool) {
	if r.cache == nil {
		return sessioncache.Snapshot{}, false
	}
	snap, ok, err := r.cache.Get(ctx, email)
	if err != nil {
		r.log.Warn("session cache read failed", zap.Error(err))
		return sessioncache.Snapshot{}, false
	}
	return snap, ok
}

// Forget drops the cached snapshot for email. Used on sign-out and after any
// change to the booking.
func (r *Reconciler) Forget(ctx context.Context, email string) {
	if r.cache == nil || email == "" {
		return
	}
	if err := r.cache.Delete(ctx, email); err != nil {
		r.log.Warn("session cache delete failed", zap.Error(err))
	}
}

func (r *Reconciler) trackRestored(ctx context.Context, s sessioncache.Snapshot, fromCache bool) {
	r.tracker.Track(ctx, s.Email, s.BookingID, auditlog.ActionBookingStatusRestored, map[string]any{
		"rideCompleted": s.Status == domain.BookingStatusRideCompleted,
		"fromCache":     fromCache,
	})
}

func snapshotOf(b bookingrepo.Booking, now time.Time) sessioncache.Snapshot {
	return sessioncache.Snapshot{
		Email:              domain.NormalizeEmail(b.UserEmail),
		BookingID:          b.BookingID,
		Status:             b.Status,
		DocumentsConfirmed: append([]string(nil), b.DocumentsConfirmed...),
		GuidelinesAccepted: b.GuidelinesAccepted,
		PhoneNumber:        b.PhoneNumber,
		PhoneLocale:        b.PhoneLocale,
		CachedAt:           now,
	}
}
