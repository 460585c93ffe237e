package lifecycle

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	memauditlog "github.com/carhop-rentals/booking-verify-api/internal/adapters/memory/auditlog"
	membookingrepo "github.com/carhop-rentals/booking-verify-api/internal/adapters/memory/bookingrepo"
	memclock "github.com/carhop-rentals/booking-verify-api/internal/adapters/memory/clock"
	memidentityrepo "github.com/carhop-rentals/booking-verify-api/internal/adapters/memory/identityrepo"
	memobjectstore "github.com/carhop-rentals/booking-verify-api/internal/adapters/memory/objectstore"
	memridecompletionrepo "github.com/carhop-rentals/booking-verify-api/internal/adapters/memory/ridecompletionrepo"
	memsessioncache "github.com/carhop-rentals/booking-verify-api/internal/adapters/memory/sessioncache"
	"github.com/carhop-rentals/booking-verify-api/internal/app/audit"
	"github.com/carhop-rentals/booking-verify-api/internal/app/media"
	"github.com/carhop-rentals/booking-verify-api/internal/app/notify"
	"github.com/carhop-rentals/booking-verify-api/internal/app/reconcile"
	"github.com/carhop-rentals/booking-verify-api/internal/domain"
	"github.com/carhop-rentals/booking-verify-api/internal/ports/out/auditlog"
	"github.com/carhop-rentals/booking-verify-api/internal/ports/out/bookingrepo"
	"github.com/carhop-rentals/booking-verify-api/internal/ports/out/messaging"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []messaging.Message
	fail map[string]error
	// gate, when set, blocks every send until closed.
	gate chan struct{}
}

func (f *fakeSender) Send(ctx context.Context, m messaging.Message) (messaging.Response, error) {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, m)
	if err := f.fail[m.TemplateName]; err != nil {
		return nil, err
	}
	return messaging.Response{"result": true}, nil
}

type stubProber struct {
	mu  sync.Mutex
	d   time.Duration
	err error
}

func (s *stubProber) Duration(ctx context.Context, contentType string, body []byte) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d, s.err
}

func (s *stubProber) set(d time.Duration, err error) {
	s.mu.Lock()
	s.d, s.err = d, err
	s.mu.Unlock()
}

// brokenBookings rejects every insert with a driver-style message.
type brokenBookings struct {
	bookingrepo.Repository
	err error
}

func (b brokenBookings) Insert(ctx context.Context, bk bookingrepo.Booking) error { return b.err }

type fixture struct {
	ctl      *Controller
	bookings bookingrepo.Repository
	rides    *memridecompletionrepo.Repo
	store    *memobjectstore.Store
	sink     *memauditlog.Sink
	tracker  *audit.Tracker
	sender   *fakeSender
	prober   *stubProber
	clk      *memclock.ManualClock
}

type option func(*fixtureConfig)

type fixtureConfig struct {
	bookings bookingrepo.Repository
	sender   *fakeSender
}

func withBookings(b bookingrepo.Repository) option {
	return func(c *fixtureConfig) { c.bookings = b }
}

func withSender(s *fakeSender) option {
	return func(c *fixtureConfig) { c.sender = s }
}

func newFixture(t *testing.T, opts ...option) fixture {
	t.Helper()
	cfg := fixtureConfig{bookings: membookingrepo.NewRepo(), sender: &fakeSender{}}
	for _, o := range opts {
		o(&cfg)
	}

	clk := memclock.NewManualClock(time.UnixMilli(1_700_000_000_000).UTC())
	identities := memidentityrepo.NewRepo()
	rides := memridecompletionrepo.NewRepo()
	store := memobjectstore.NewStore()
	sink := memauditlog.NewSink()
	tracker := audit.NewTracker(sink, clk, zap.NewNop())
	prober := &stubProber{d: time.Minute}

	ctl := NewController(Deps{
		Identities: identities,
		Bookings:   cfg.bookings,
		Reconciler: reconcile.NewReconciler(identities, cfg.bookings, memsessioncache.NewCache(clk), tracker, clk, nil),
		Notifier:   notify.NewDispatcher(cfg.sender, nil),
		Media:      media.NewPipeline(store, prober, rides, cfg.bookings, tracker, clk, nil),
		Tracker:    tracker,
		Clock:      clk,
	})
	return fixture{
		ctl:      ctl,
		bookings: cfg.bookings,
		rides:    rides,
		store:    store,
		sink:     sink,
		tracker:  tracker,
		sender:   cfg.sender,
		prober:   prober,
		clk:      clk,
	}
}

var (
	ctx   = context.Background()
	alice = domain.Identity{Subject: "sub-alice", Email: "Alice@Example.com ", DisplayName: "Alice Rider"}
)

func (f fixture) ready(t *testing.T) {
	t.Helper()
	_, err := f.ctl.SignIn(ctx, alice)
	require.NoError(t, err)
	for i := range domain.RequiredDocuments {
		_, err := f.ctl.ToggleDocument(ctx, alice.Subject, i)
		require.NoError(t, err)
	}
	_, err = f.ctl.AcceptGuidelines(ctx, alice.Subject)
	require.NoError(t, err)
	_, err = f.ctl.SetPhone(ctx, alice.Subject, PhonePatch{Number: Some("98765 43210")})
	require.NoError(t, err)
}

func TestBookingIDFormat(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	v, err := f.ctl.SignIn(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, PageVerification, v.Page)
	assert.Regexp(t, regexp.MustCompile(`^BK-1700000000000-[0-9A-Z]{9}$`), string(v.BookingID))
	assert.Equal(t, "alice@example.com", v.Email)
	assert.Equal(t, "91", v.PhoneLocale)
}

func TestOperationsRequireSignIn(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.ctl.ConfirmBooking(ctx, "nobody")
	assert.ErrorIs(t, err, ErrUnauthenticated)
	_, err = f.ctl.Snapshot("nobody")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestToggleDocumentKeepsToggleOrder(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	_, err := f.ctl.SignIn(ctx, alice)
	require.NoError(t, err)

	_, err = f.ctl.ToggleDocument(ctx, alice.Subject, 2)
	require.NoError(t, err)
	_, err = f.ctl.ToggleDocument(ctx, alice.Subject, 0)
	require.NoError(t, err)
	v, err := f.ctl.ToggleDocument(ctx, alice.Subject, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{domain.RequiredDocuments[0]}, v.CheckedDocuments)

	_, err = f.ctl.ToggleDocument(ctx, alice.Subject, len(domain.RequiredDocuments))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, FieldDocument, verr.Field)

	f.tracker.Wait()
	actions := f.sink.Actions()
	require.Len(t, actions, 3)
	unchecked := 0
	for _, a := range actions {
		assert.Equal(t, auditlog.ActionDocumentsChecked, a.Type)
		if a.Data["checked"] == false {
			unchecked++
			assert.Equal(t, 1, a.Data["totalChecked"])
		}
	}
	assert.Equal(t, 1, unchecked)
}

func TestConfirmBooking_PreconditionPriority(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	_, err := f.ctl.SignIn(ctx, alice)
	require.NoError(t, err)

	// Nothing done: documents are reported even though everything else is missing too.
	v, err := f.ctl.ConfirmBooking(ctx, alice.Subject)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, FieldDocuments, verr.Field)
	assert.Equal(t, "Please confirm you have all required documents.", v.LastError)

	for i := 0; i < 3; i++ {
		_, err := f.ctl.ToggleDocument(ctx, alice.Subject, i)
		require.NoError(t, err)
	}
	_, err = f.ctl.ConfirmBooking(ctx, alice.Subject)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, FieldDocuments, verr.Field, "three of four documents is not enough")

	_, err = f.ctl.ToggleDocument(ctx, alice.Subject, 3)
	require.NoError(t, err)
	_, err = f.ctl.ConfirmBooking(ctx, alice.Subject)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, FieldGuidelines, verr.Field)

	_, err = f.ctl.AcceptGuidelines(ctx, alice.Subject)
	require.NoError(t, err)
	_, err = f.ctl.ConfirmBooking(ctx, alice.Subject)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, FieldPhone, verr.Field)
	assert.Equal(t, "Phone number is required", verr.Message)

	_, err = f.ctl.SetPhone(ctx, alice.Subject, PhonePatch{Number: Some("12345")})
	require.NoError(t, err)
	v, err = f.ctl.ConfirmBooking(ctx, alice.Subject)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Invalid phone number format", verr.Message)
	assert.Equal(t, "Please enter a valid 10-digit phone number for India", v.PhoneError)
	assert.Equal(t, PageVerification, v.Page)

	// Editing the phone clears the inline error.
	v, err = f.ctl.SetPhone(ctx, alice.Subject, PhonePatch{Number: Some("98765 43210")})
	require.NoError(t, err)
	assert.Empty(t, v.PhoneError)

	bs, err := f.bookings.Find(ctx, bookingrepo.Query{UserEmail: "alice@example.com"})
	require.NoError(t, err)
	assert.Empty(t, bs, "rejected confirmations must not write")
}

func TestConfirmBooking_Success(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.ready(t)

	v, err := f.ctl.ConfirmBooking(ctx, alice.Subject)
	require.NoError(t, err)
	assert.Equal(t, PageConfirmation, v.Page)
	require.NotNil(t, v.Banner)

	f.ctl.Wait()
	f.tracker.Wait()

	b, err := f.bookings.GetByID(ctx, v.BookingID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusConfirmed, b.Status)
	assert.Equal(t, "alice@example.com", b.UserEmail)
	assert.Equal(t, "Alice Rider", b.UserName)
	assert.Len(t, b.DocumentsConfirmed, domain.RequiredDocumentCount)
	assert.NotEmpty(t, b.IdentityID)

	snap, err := f.ctl.Snapshot(alice.Subject)
	require.NoError(t, err)
	require.NotNil(t, snap.Banner)
	assert.Equal(t, notify.SeveritySuccess, snap.Banner.Severity)
	assert.False(t, snap.NotificationsPending)
	assert.Contains(t, f.sink.Types(), auditlog.ActionBookingConfirmed)

	require.Len(t, f.sender.sent, 2)
	assert.Equal(t, "919876543210", f.sender.sent[0].Recipient)
}

func TestConfirmBooking_PartialNotificationsWarn(t *testing.T) {
	t.Parallel()
	s := &fakeSender{fail: map[string]error{notify.TemplateGuidelines: errors.New("whatsapp api returned 400")}}
	f := newFixture(t, withSender(s))
	f.ready(t)

	_, err := f.ctl.ConfirmBooking(ctx, alice.Subject)
	require.NoError(t, err)
	f.ctl.Wait()

	v, err := f.ctl.Snapshot(alice.Subject)
	require.NoError(t, err)
	require.NotNil(t, v.Banner)
	assert.Equal(t, notify.SeverityWarning, v.Banner.Severity)
	assert.Contains(t, v.Banner.Message, "(1/2 sent)")
}

func TestConfirmBooking_StoreErrorVerbatim(t *testing.T) {
	t.Parallel()
	storeErr := errors.New(`new row for relation "booking_verifications" violates check constraint`)
	f := newFixture(t, withBookings(brokenBookings{Repository: membookingrepo.NewRepo(), err: storeErr}))
	f.ready(t)

	v, err := f.ctl.ConfirmBooking(ctx, alice.Subject)
	var serr *StoreError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, storeErr.Error(), err.Error())
	assert.False(t, serr.Conflict())
	assert.Equal(t, PageVerification, v.Page)
	assert.Equal(t, storeErr.Error(), v.LastError)
	assert.Empty(t, f.sender.sent)
}

func TestConfirmBooking_SecondActiveBookingConflicts(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.ready(t)
	// Confirmed from another device after this session signed in.
	require.NoError(t, f.bookings.Insert(ctx, bookingrepo.Booking{
		BookingID: "BK-1-EXISTING",
		UserEmail: "alice@example.com",
		Status:    domain.BookingStatusConfirmed,
		CreatedAt: f.clk.Now(),
		UpdatedAt: f.clk.Now(),
	}))

	_, err := f.ctl.ConfirmBooking(ctx, alice.Subject)
	var serr *StoreError
	require.ErrorAs(t, err, &serr)
	assert.True(t, serr.Conflict())
}

func TestSignIn_RestoresConfirmedBooking(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.ready(t)
	confirmed, err := f.ctl.ConfirmBooking(ctx, alice.Subject)
	require.NoError(t, err)
	f.ctl.Wait()

	f.ctl.SignOut(ctx, alice.Subject)
	v, err := f.ctl.SignIn(ctx, alice)
	require.NoError(t, err)

	assert.Equal(t, PageConfirmation, v.Page)
	assert.Equal(t, confirmed.BookingID, v.BookingID)
	assert.True(t, v.GuidelinesAccepted)
	assert.Equal(t, "98765 43210", v.PhoneNumber)
	assert.False(t, v.RideCompleted)
}

func TestSignOutResetsWithFreshBookingID(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	before, err := f.ctl.SignIn(ctx, alice)
	require.NoError(t, err)
	_, err = f.ctl.ToggleDocument(ctx, alice.Subject, 0)
	require.NoError(t, err)

	v := f.ctl.SignOut(ctx, alice.Subject)
	assert.False(t, v.Authenticated)
	assert.Empty(t, v.CheckedDocuments)
	assert.Equal(t, PageVerification, v.Page)
	assert.NotEqual(t, before.BookingID, v.BookingID)
	assert.Equal(t, 0, f.ctl.Sessions().Len())

	after, err := f.ctl.SignIn(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, after.CheckedDocuments)
	assert.NotEqual(t, before.BookingID, after.BookingID)
}

func TestSignOutDropsLateNotificationOutcome(t *testing.T) {
	t.Parallel()
	gate := make(chan struct{})
	f := newFixture(t, withSender(&fakeSender{gate: gate}))
	f.ready(t)
	_, err := f.ctl.ConfirmBooking(ctx, alice.Subject)
	require.NoError(t, err)

	f.ctl.SignOut(ctx, alice.Subject)
	close(gate)
	f.ctl.Wait()

	_, err = f.ctl.Snapshot(alice.Subject)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func rideReady(t *testing.T, f fixture) View {
	t.Helper()
	f.ready(t)
	_, err := f.ctl.ConfirmBooking(ctx, alice.Subject)
	require.NoError(t, err)
	f.ctl.Wait()
	v, err := f.ctl.OpenRideCompletion(ctx, alice.Subject)
	require.NoError(t, err)
	require.Equal(t, PageRideCompletion, v.Page)
	return v
}

func jpeg(name string) media.File {
	return media.File{Name: name, ContentType: "image/jpeg", Body: []byte(name)}
}

func TestCompleteRide(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	rv := rideReady(t, f)

	_, err := f.ctl.AttachPhoto(ctx, alice.Subject, "sideways", jpeg("x.jpg"))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	_, err = f.ctl.AttachPhoto(ctx, alice.Subject, string(domain.PhotoExteriorFront), media.File{Name: "a.pdf", ContentType: "application/pdf"})
	var merr *media.Error
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, media.CodeNotAnImage, merr.Code)

	for _, s := range domain.PhotoSlots[:len(domain.PhotoSlots)-1] {
		_, err := f.ctl.AttachPhoto(ctx, alice.Subject, string(s), jpeg(string(s)+".jpg"))
		require.NoError(t, err)
	}
	_, err = f.ctl.AttachVideo(ctx, alice.Subject, media.File{Name: "v.mp4", ContentType: "video/mp4", Body: []byte("mp4")})
	require.NoError(t, err)

	_, err = f.ctl.CompleteRide(ctx, alice.Subject)
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, media.CodeIncomplete, merr.Code)
	assert.Len(t, merr.Missing, 1)
	assert.Equal(t, 0, f.store.Len())

	last := domain.PhotoSlots[len(domain.PhotoSlots)-1]
	_, err = f.ctl.AttachPhoto(ctx, alice.Subject, string(last), jpeg("last.jpg"))
	require.NoError(t, err)

	v, err := f.ctl.CompleteRide(ctx, alice.Subject)
	require.NoError(t, err)
	assert.True(t, v.RideCompleted)
	require.NotNil(t, v.RideCompletion)
	assert.Len(t, v.RideCompletion.Photos, len(domain.PhotoSlots))
	require.NotNil(t, v.Banner)
	assert.Equal(t, "Ride completed successfully! All photos and video have been uploaded.", v.Banner.Message)
	assert.Equal(t, len(domain.PhotoSlots)+1, f.store.Len())

	b, err := f.bookings.GetByID(ctx, rv.BookingID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusRideCompleted, b.Status)

	_, err = f.ctl.AttachPhoto(ctx, alice.Subject, string(domain.PhotoExteriorFront), jpeg("again.jpg"))
	assert.ErrorIs(t, err, ErrRideCompleted)
	_, err = f.ctl.CompleteRide(ctx, alice.Subject)
	assert.ErrorIs(t, err, ErrRideCompleted)
	assert.Equal(t, 1, f.rides.Len())
}

func TestOpenRideCompletionNeedsConfirmation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	_, err := f.ctl.SignIn(ctx, alice)
	require.NoError(t, err)

	_, err = f.ctl.OpenRideCompletion(ctx, alice.Subject)
	var aerr *Error
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, 409, aerr.Status)
}

func TestSweepSessions(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	_, err := f.ctl.SignIn(ctx, alice)
	require.NoError(t, err)

	assert.Equal(t, 0, f.ctl.SweepSessions(time.Hour))
	f.clk.Advance(2 * time.Hour)
	assert.Equal(t, 1, f.ctl.SweepSessions(time.Hour))
	assert.Equal(t, 0, f.ctl.Sessions().Len())
}

func TestSweepSessions_ActiveSessionSurvives(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	_, err := f.ctl.SignIn(ctx, alice)
	require.NoError(t, err)

	f.clk.Advance(50 * time.Minute)
	_, err = f.ctl.ToggleDocument(ctx, alice.Subject, 0)
	require.NoError(t, err)
	f.clk.Advance(50 * time.Minute)

	assert.Equal(t, 0, f.ctl.SweepSessions(time.Hour))
	_, err = f.ctl.Snapshot(alice.Subject)
	require.NoError(t, err)

	f.clk.Advance(61 * time.Minute)
	assert.Equal(t, 1, f.ctl.SweepSessions(time.Hour))
}

func TestAttachVideo_RejectedVideoLeavesSlot(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	rideReady(t, f)

	f.prober.set(121*time.Second, nil)
	v, err := f.ctl.AttachVideo(ctx, alice.Subject, media.File{Name: "long.mp4", ContentType: "video/mp4", Body: []byte("long")})
	var merr *media.Error
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, media.CodeVideoTooLong, merr.Code)
	assert.False(t, v.RideSlots[domain.VideoSlotKey])
	assert.Equal(t, "Video must be less than 2 minutes long", v.LastError)

	f.prober.set(0, errors.New("no moov box"))
	v, err = f.ctl.AttachVideo(ctx, alice.Subject, media.File{Name: "junk.mp4", ContentType: "video/mp4", Body: []byte("junk")})
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, media.CodeVideoUnreadable, merr.Code)
	assert.False(t, v.RideSlots[domain.VideoSlotKey])
	assert.NotEmpty(t, v.LastError)
}

func TestAttachVideo_ReplacesOnlyAfterProbePasses(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	rideReady(t, f)

	first := media.File{Name: "first.mp4", ContentType: "video/mp4", Body: []byte("first")}
	v, err := f.ctl.AttachVideo(ctx, alice.Subject, first)
	require.NoError(t, err)
	assert.True(t, v.RideSlots[domain.VideoSlotKey])

	attachedVideo := func() media.File {
		s, ok := f.ctl.sessions.get(alice.Subject)
		require.True(t, ok)
		s.mu.Lock()
		defer s.mu.Unlock()
		got, ok := s.state.Ride.Video()
		require.True(t, ok)
		return got
	}

	f.prober.set(121*time.Second, nil)
	v, err = f.ctl.AttachVideo(ctx, alice.Subject, media.File{Name: "long.mp4", ContentType: "video/mp4", Body: []byte("long")})
	require.Error(t, err)
	assert.True(t, v.RideSlots[domain.VideoSlotKey])
	assert.Equal(t, "first.mp4", attachedVideo().Name)

	f.prober.set(90*time.Second, nil)
	v, err = f.ctl.AttachVideo(ctx, alice.Subject, media.File{Name: "second.mp4", ContentType: "video/mp4", Body: []byte("second")})
	require.NoError(t, err)
	assert.Empty(t, v.LastError)
	assert.Equal(t, "second.mp4", attachedVideo().Name)
}
