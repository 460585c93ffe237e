package contracttest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/carhop-rentals/booking-verify-api/internal/domain"
	bookingrepoport "github.com/carhop-rentals/booking-verify-api/internal/ports/out/bookingrepo"
	idempotencyport "github.com/carhop-rentals/booking-verify-api/internal/ports/out/idempotency"
	identityrepoport "github.com/carhop-rentals/booking-verify-api/internal/ports/out/identityrepo"
	ridecompletionrepoport "github.com/carhop-rentals/booking-verify-api/internal/ports/out/ridecompletionrepo"
)

type CleanupFunc = func()

type IdentityRepoFactory func(t *testing.T) (identityrepoport.Repository, CleanupFunc)
type BookingRepoFactory func(t *testing.T) (bookingrepoport.Repository, CleanupFunc)
type RideCompletionRepoFactory func(t *testing.T) (ridecompletionrepoport.Repository, CleanupFunc)
type IdemStoreFactory func(t *testing.T) (idempotencyport.Store, CleanupFunc)

func RunIdempotencyStore(t *testing.T, newStore IdemStoreFactory) {
	t.Helper()
	ctx := context.Background()

	store, cleanup := newStore(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	fp := idempotencyport.Fingerprint{
		Key:      idempotencyport.Key("k-" + uuid.NewString()),
		Subject:  domain.SubjectID("sub-1"),
		Method:   "POST",
		Route:    "/v1/bookings",
		BodyHash: "",
	}
	if _, ok, err := store.Get(ctx, fp); err != nil || ok {
		t.Fatalf("Get before Put: ok=%v err=%v", ok, err)
	}
	rec := idempotencyport.Record{
		StatusCode:  201,
		ContentType: "application/json",
		Body:        []byte(`{"bookingId":"BK-1"}`),
		CreatedAt:   time.Unix(123, 0).UTC(),
	}
	if err := store.Put(ctx, fp, rec); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok, err := store.Get(ctx, fp)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatalf("expected ok=true")
	}
	if string(got.Body) != `{"bookingId":"BK-1"}` || got.ContentType != "application/json" || got.StatusCode != 201 {
		t.Fatalf("unexpected record: %+v", got)
	}

	// Overwrite semantics.
	rec2 := rec
	rec2.Body = []byte(`{"bookingId":"BK-2"}`)
	if err := store.Put(ctx, fp, rec2); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	got, ok, err = store.Get(ctx, fp)
	if err != nil || !ok || string(got.Body) != `{"bookingId":"BK-2"}` {
		t.Fatalf("expected overwritten record, got ok=%v err=%v body=%q", ok, err, string(got.Body))
	}

	// A different subject does not see the record.
	other := fp
	other.Subject = "sub-2"
	if _, ok, err := store.Get(ctx, other); err != nil || ok {
		t.Fatalf("Get other subject: ok=%v err=%v", ok, err)
	}

	// Purge drops only records created before the cutoff.
	fresh := fp
	fresh.Key = idempotencyport.Key("k-" + uuid.NewString())
	freshRec := rec
	freshRec.CreatedAt = time.Unix(5000, 0).UTC()
	if err := store.Put(ctx, fresh, freshRec); err != nil {
		t.Fatalf("Put fresh: %v", err)
	}
	n, err := store.Purge(ctx, time.Unix(1000, 0))
	if err != nil || n < 1 {
		t.Fatalf("Purge: n=%d err=%v", n, err)
	}
	if _, ok, err := store.Get(ctx, fp); err != nil || ok {
		t.Fatalf("Get after purge: ok=%v err=%v", ok, err)
	}
	if _, ok, err := store.Get(ctx, fresh); err != nil || !ok {
		t.Fatalf("Get fresh after purge: ok=%v err=%v", ok, err)
	}
}

func RunIdentityRepo(t *testing.T, newRepo IdentityRepoFactory) {
	t.Helper()
	ctx := context.Background()

	repo, cleanup := newRepo(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	now := time.Unix(1000, 0).UTC()
	email := "alice-" + uuid.NewString()[:8] + "@example.com"
	avatar := "https://example.com/a.png"
	first, err := repo.Upsert(ctx, identityrepoport.Identity{
		ID:          domain.IdentityID(uuid.NewString()),
		Subject:     domain.SubjectID("sub-a"),
		Email:       email,
		DisplayName: "Alice Johnson",
		AvatarURL:   &avatar,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if first.ID == "" {
		t.Fatalf("expected ID to be set")
	}

	// Email is the key; mutable fields follow the last write.
	later := now.Add(time.Hour)
	second, err := repo.Upsert(ctx, identityrepoport.Identity{
		ID:          domain.IdentityID(uuid.NewString()),
		Subject:     domain.SubjectID("sub-a"),
		Email:       email,
		DisplayName: "Alice J.",
		CreatedAt:   later,
		UpdatedAt:   later,
	})
	if err != nil {
		t.Fatalf("Upsert again: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected ID to be preserved: first=%s second=%s", first.ID, second.ID)
	}
	if !second.CreatedAt.Equal(now) {
		t.Fatalf("expected CreatedAt preserved, got %v", second.CreatedAt)
	}

	got, err := repo.GetByEmail(ctx, email)
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if got.DisplayName != "Alice J." || got.AvatarURL != nil {
		t.Fatalf("unexpected identity: %#v", got)
	}

	if _, err := repo.GetByEmail(ctx, "nobody-"+uuid.NewString()+"@example.com"); !errors.Is(err, identityrepoport.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func RunBookingRepo(t *testing.T, newRepo BookingRepoFactory) {
	t.Helper()
	ctx := context.Background()

	repo, cleanup := newRepo(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	email := "bob-" + uuid.NewString()[:8] + "@example.com"
	identityID := domain.IdentityID(uuid.NewString())
	base := time.Unix(2000, 0).UTC()

	mk := func(id string, status domain.BookingStatus, at time.Time) bookingrepoport.Booking {
		return bookingrepoport.Booking{
			BookingID:          domain.BookingID(id),
			IdentityID:         identityID,
			UserEmail:          email,
			UserName:           "Bob",
			PhoneNumber:        "+15551234567",
			PhoneLocale:        "1",
			DocumentsConfirmed: append([]string(nil), domain.RequiredDocuments...),
			GuidelinesAccepted: true,
			Status:             status,
			CreatedAt:          at,
			UpdatedAt:          at,
		}
	}

	suffix := uuid.NewString()[:8]
	cancelled := mk("BK-1-"+suffix, domain.BookingStatusCancelled, base)
	confirmed := mk("BK-2-"+suffix, domain.BookingStatusConfirmed, base.Add(time.Minute))

	if err := repo.Insert(ctx, cancelled); err != nil {
		t.Fatalf("Insert cancelled: %v", err)
	}
	if err := repo.Insert(ctx, confirmed); err != nil {
		t.Fatalf("Insert confirmed: %v", err)
	}
	if err := repo.Insert(ctx, confirmed); !errors.Is(err, bookingrepoport.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	// At most one confirmed or ride-completed booking per owner.
	dup := mk("BK-3-"+suffix, domain.BookingStatusConfirmed, base.Add(2*time.Minute))
	if err := repo.Insert(ctx, dup); !errors.Is(err, bookingrepoport.ErrActiveBookingExists) {
		t.Fatalf("expected ErrActiveBookingExists, got %v", err)
	}

	got, err := repo.GetByID(ctx, confirmed.BookingID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.UserEmail != email || got.Status != domain.BookingStatusConfirmed || len(got.DocumentsConfirmed) != domain.RequiredDocumentCount {
		t.Fatalf("unexpected booking: %#v", got)
	}
	if _, err := repo.GetByID(ctx, "BK-missing-"+domain.BookingID(suffix)); !errors.Is(err, bookingrepoport.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// Ordering: most recent first.
	all, err := repo.Find(ctx, bookingrepoport.Query{UserEmail: email})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(all) != 2 || all[0].BookingID != confirmed.BookingID || all[1].BookingID != cancelled.BookingID {
		t.Fatalf("unexpected ordering: %#v", all)
	}

	// Status filter and email normalization.
	latest, err := bookingrepoport.Latest(ctx, repo, bookingrepoport.Query{
		UserEmail: "  " + email + " ",
		Statuses:  domain.RestorableStatuses,
	})
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest.BookingID != confirmed.BookingID {
		t.Fatalf("unexpected latest: %s", latest.BookingID)
	}

	if _, err := bookingrepoport.Latest(ctx, repo, bookingrepoport.Query{
		UserEmail: "nobody-" + suffix + "@example.com",
		Statuses:  domain.RestorableStatuses,
	}); !errors.Is(err, bookingrepoport.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	at := base.Add(time.Hour)
	if err := repo.UpdateStatus(ctx, confirmed.BookingID, domain.BookingStatusRideCompleted, at); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	got, err = repo.GetByID(ctx, confirmed.BookingID)
	if err != nil {
		t.Fatalf("GetByID after update: %v", err)
	}
	if got.Status != domain.BookingStatusRideCompleted || !got.UpdatedAt.Equal(at) {
		t.Fatalf("unexpected updated booking: %#v", got)
	}
	if err := repo.UpdateStatus(ctx, "BK-missing-"+domain.BookingID(suffix), domain.BookingStatusCancelled, at); !errors.Is(err, bookingrepoport.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on update, got %v", err)
	}
}

func RunRideCompletionRepo(t *testing.T, newRepo RideCompletionRepoFactory) {
	t.Helper()
	ctx := context.Background()

	repo, cleanup := newRepo(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	bookingID := domain.BookingID("BK-9-" + uuid.NewString()[:8])
	photos := make([]domain.PhotoLocator, 0, len(domain.PhotoSlots))
	for _, s := range domain.PhotoSlots {
		photos = append(photos, domain.PhotoLocator{Slot: s, Locator: "id/" + string(bookingID) + "/" + string(s) + "_1.jpg"})
	}
	rc := ridecompletionrepoport.RideCompletion{
		ID:           domain.RideCompletionID(uuid.NewString()),
		BookingID:    bookingID,
		IdentityID:   domain.IdentityID(uuid.NewString()),
		Photos:       photos,
		VideoLocator: "id/" + string(bookingID) + "/surrounding_video_1.mp4",
		SubmittedAt:  time.Unix(3000, 0).UTC(),
	}

	if _, err := repo.GetByBookingID(ctx, bookingID); !errors.Is(err, ridecompletionrepoport.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := repo.Insert(ctx, rc); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	got, err := repo.GetByBookingID(ctx, bookingID)
	if err != nil {
		t.Fatalf("GetByBookingID: %v", err)
	}
	if got.ID != rc.ID || got.VideoLocator != rc.VideoLocator || len(got.Photos) != len(domain.PhotoSlots) {
		t.Fatalf("unexpected ride completion: %#v", got)
	}
	for i, p := range got.Photos {
		if p.Slot != domain.PhotoSlots[i] {
			t.Fatalf("photo %d slot=%s, want %s", i, p.Slot, domain.PhotoSlots[i])
		}
	}

	again := rc
	again.ID = domain.RideCompletionID(uuid.NewString())
	if err := repo.Insert(ctx, again); !errors.Is(err, ridecompletionrepoport.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}
