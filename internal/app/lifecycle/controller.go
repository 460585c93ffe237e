// Package lifecycle drives a user from document verification to booking
// confirmation to ride completion. The Controller is the only writer of session
// state; the reconciler, notifier and media pipeline return values it applies.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/carhop-rentals/booking-verify-api/internal/app/audit"
	"github.com/carhop-rentals/booking-verify-api/internal/app/media"
	"github.com/carhop-rentals/booking-verify-api/internal/app/notify"
	"github.com/carhop-rentals/booking-verify-api/internal/app/reconcile"
	"github.com/carhop-rentals/booking-verify-api/internal/domain"
	"github.com/carhop-rentals/booking-verify-api/internal/domain/phone"
	"github.com/carhop-rentals/booking-verify-api/internal/ports/out/auditlog"
	"github.com/carhop-rentals/booking-verify-api/internal/ports/out/bookingrepo"
	clockport "github.com/carhop-rentals/booking-verify-api/internal/ports/out/clock"
	"github.com/carhop-rentals/booking-verify-api/internal/ports/out/identityrepo"
)

const (
	msgDocumentsIncomplete = "Please confirm you have all required documents."
	msgGuidelines          = "Please read and accept the rental guidelines."
	msgPhoneRequired       = "Phone number is required"
	msgPhoneRequiredField  = "Please enter your phone number to receive booking confirmation"
	msgPhoneInvalid        = "Invalid phone number format"
	msgBookingIDPending    = "Booking ID is still being generated. Please wait a moment and try again."

	msgSendingNotifications = "Booking confirmed! Sending WhatsApp notifications..."
	msgRideCompleted        = "Ride completed successfully! All photos and video have been uploaded."
)

type Deps struct {
	Identities identityrepo.Repository
	Bookings   bookingrepo.Repository
	Reconciler *reconcile.Reconciler
	Notifier   *notify.Dispatcher
	Media      *media.Pipeline
	Tracker    *audit.Tracker
	Clock      clockport.Clock
	Log        *zap.Logger
}

type Controller struct {
	identities identityrepo.Repository
	bookings   bookingrepo.Repository
	reconciler *reconcile.Reconciler
	notifier   *notify.Dispatcher
	media      *media.Pipeline
	tracker    *audit.Tracker
	clk        clockport.Clock
	log        *zap.Logger

	sessions *Registry

	newBookingID func() domain.BookingID

	// bg tracks notification fan-outs that outlive the confirming request.
	bg sync.WaitGroup
}

func NewController(d Deps) *Controller {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	c := &Controller{
		identities: d.Identities,
		bookings:   d.Bookings,
		reconciler: d.Reconciler,
		notifier:   d.Notifier,
		media:      d.Media,
		tracker:    d.Tracker,
		clk:        d.Clock,
		log:        log,
		sessions:   NewRegistry(),
	}
	c.newBookingID = func() domain.BookingID { return domain.NewBookingID(c.clk.Now()) }
	return c
}

// Sessions exposes the registry for housekeeping.
func (c *Controller) Sessions() *Registry { return c.sessions }

// Wait blocks until background notification work has finished.
func (c *Controller) Wait() { c.bg.Wait() }

func (c *Controller) session(subject domain.SubjectID) (*Session, error) {
	s, ok := c.sessions.get(subject)
	if !ok {
		return nil, ErrUnauthenticated
	}
	return s, nil
}

// withSession runs fn on the subject's state under its lock.
func (c *Controller) withSession(subject domain.SubjectID, fn func(st *State) error) (View, error) {
	s, err := c.session(subject)
	if err != nil {
		return View{}, err
	}
	s.touch(c.clk.Now())
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.Authenticated {
		return View{}, ErrUnauthenticated
	}
	if err := fn(&s.state); err != nil {
		return s.state.view(), err
	}
	return s.state.view(), nil
}

// SignIn binds the identity to a session and restores its latest confirmed
// booking when one is found in time. Calling it again re-runs reconciliation.
func (c *Controller) SignIn(ctx context.Context, id domain.Identity) (View, error) {
	if id.Subject == "" {
		return View{}, ErrUnauthenticated
	}
	id.Email = domain.NormalizeEmail(id.Email)

	s := c.sessions.getOrCreate(id.Subject, func() *Session {
		return &Session{state: newState(c.newBookingID())}
	})
	s.touch(c.clk.Now())
	s.mu.Lock()
	defer s.mu.Unlock()

	st := &s.state
	st.Authenticated = true
	st.Identity = id

	res := c.reconciler.Reconcile(ctx, id)
	if res.Identity.ID != "" {
		st.Identity.ID = res.Identity.ID
	}
	if !res.Found {
		if st.Page == "" {
			st.Page = PageVerification
		}
		if st.BookingID == "" {
			st.BookingID = c.newBookingID()
		}
		return st.view(), nil
	}

	snap := res.Snapshot
	st.CheckedDocuments = append([]string(nil), snap.DocumentsConfirmed...)
	st.GuidelinesAccepted = snap.GuidelinesAccepted
	st.BookingID = snap.BookingID
	st.PhoneNumber = snap.PhoneNumber
	if snap.PhoneLocale != "" {
		st.PhoneLocale = snap.PhoneLocale
	}
	st.PhoneError = ""
	st.RideCompleted = snap.Status == domain.BookingStatusRideCompleted
	st.Page = PageConfirmation
	st.LastError = ""
	return st.view(), nil
}

// SignOut clears every piece of booking and ride state. The next sign-in starts
// from verification with a new booking id.
func (c *Controller) SignOut(ctx context.Context, subject domain.SubjectID) View {
	s, ok := c.sessions.remove(subject)
	if ok {
		s.mu.Lock()
		email := s.state.Identity.Email
		s.state = State{generation: s.state.generation + 1}
		s.mu.Unlock()
		c.reconciler.Forget(ctx, email)
	}
	return newState(c.newBookingID()).view()
}

func (c *Controller) Snapshot(subject domain.SubjectID) (View, error) {
	return c.withSession(subject, func(st *State) error { return nil })
}

// ToggleDocument checks or unchecks RequiredDocuments[index].
func (c *Controller) ToggleDocument(ctx context.Context, subject domain.SubjectID, index int) (View, error) {
	return c.withSession(subject, func(st *State) error {
		if st.Page != PageVerification {
			return invalidState("Documents can only be changed before the booking is confirmed.")
		}
		if index < 0 || index >= len(domain.RequiredDocuments) {
			return &ValidationError{Field: FieldDocument, Message: fmt.Sprintf("document index must be between 0 and %d", len(domain.RequiredDocuments)-1)}
		}
		doc := domain.RequiredDocuments[index]

		checked := false
		next := make([]string, 0, len(st.CheckedDocuments)+1)
		for _, d := range st.CheckedDocuments {
			if d != doc {
				next = append(next, d)
			}
		}
		if len(next) == len(st.CheckedDocuments) {
			next = append(next, doc)
			checked = true
		}
		st.CheckedDocuments = next
		st.LastError = ""

		c.tracker.Track(ctx, st.Identity.Email, st.BookingID, auditlog.ActionDocumentsChecked, map[string]any{
			"document":     doc,
			"checked":      checked,
			"totalChecked": len(next),
		})
		return nil
	})
}

func (c *Controller) AcceptGuidelines(ctx context.Context, subject domain.SubjectID) (View, error) {
	return c.withSession(subject, func(st *State) error {
		if st.Page != PageVerification {
			return invalidState("Guidelines can only be accepted before the booking is confirmed.")
		}
		st.GuidelinesAccepted = true
		st.LastError = ""
		c.tracker.Track(ctx, st.Identity.Email, st.BookingID, auditlog.ActionGuidelinesAccepted, nil)
		return nil
	})
}

// SetPhone applies a phone patch and clears the inline phone error.
func (c *Controller) SetPhone(ctx context.Context, subject domain.SubjectID, p PhonePatch) (View, error) {
	return c.withSession(subject, func(st *State) error {
		if st.Page != PageVerification {
			return invalidState("The phone number can only be changed before the booking is confirmed.")
		}
		if p.Locale.IsSpecified() {
			if p.Locale.IsNull() || phone.Digits(p.Locale.Value()) == "" {
				st.PhoneLocale = phone.DefaultCode
			} else {
				st.PhoneLocale = phone.Digits(p.Locale.Value())
			}
		}
		if p.Number.IsSpecified() {
			if p.Number.IsNull() {
				st.PhoneNumber = ""
			} else {
				st.PhoneNumber = p.Number.Value()
			}
		}
		st.PhoneError = ""
		return nil
	})
}

// checkConfirmable returns the first unmet precondition in priority order.
func checkConfirmable(st *State) *ValidationError {
	if len(st.CheckedDocuments) != domain.RequiredDocumentCount {
		return &ValidationError{Field: FieldDocuments, Message: msgDocumentsIncomplete}
	}
	if !st.GuidelinesAccepted {
		return &ValidationError{Field: FieldGuidelines, Message: msgGuidelines}
	}
	if phone.Digits(st.PhoneNumber) == "" {
		return &ValidationError{Field: FieldPhone, Message: msgPhoneRequired, FieldMessage: msgPhoneRequiredField}
	}
	if !phone.IsValid(st.PhoneNumber, st.PhoneLocale) {
		return &ValidationError{
			Field:   FieldPhone,
			Message: msgPhoneInvalid,
			FieldMessage: fmt.Sprintf("Please enter a valid %d-digit phone number for %s",
				phone.ExpectedDigitCount(st.PhoneLocale), phone.DisplayName(st.PhoneLocale)),
		}
	}
	if st.BookingID == "" {
		return &ValidationError{Field: FieldBookingID, Message: msgBookingIDPending}
	}
	return nil
}

// ConfirmBooking persists the booking and moves to confirmation without waiting
// for the WhatsApp notifications; their outcome lands in the banner later.
func (c *Controller) ConfirmBooking(ctx context.Context, subject domain.SubjectID) (View, error) {
	s, err := c.session(subject)
	if err != nil {
		return View{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st := &s.state
	if !st.Authenticated {
		return View{}, ErrUnauthenticated
	}
	if st.Page != PageVerification {
		return st.view(), invalidState("This booking is already confirmed.")
	}

	if verr := checkConfirmable(st); verr != nil {
		st.LastError = verr.Message
		if verr.Field == FieldPhone {
			st.PhoneError = verr.FieldMessage
		}
		return st.view(), verr
	}
	st.LastError = ""
	st.PhoneError = ""

	identity, err := c.upsertIdentity(ctx, st.Identity)
	if err != nil {
		st.LastError = err.Error()
		return st.view(), err
	}
	st.Identity.ID = identity.ID

	now := c.clk.Now()
	b := bookingrepo.Booking{
		BookingID:          st.BookingID,
		IdentityID:         identity.ID,
		UserEmail:          st.Identity.Email,
		UserName:           st.Identity.NameOrEmail(),
		PhoneNumber:        st.PhoneNumber,
		PhoneLocale:        st.PhoneLocale,
		DocumentsConfirmed: append([]string(nil), st.CheckedDocuments...),
		GuidelinesAccepted: st.GuidelinesAccepted,
		Status:             domain.BookingStatusConfirmed,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := c.bookings.Insert(ctx, b); err != nil {
		c.log.Error("booking insert failed", zap.String("bookingId", string(b.BookingID)), zap.Error(err))
		serr := &StoreError{Op: "insert booking", Err: err}
		st.LastError = serr.Error()
		return st.view(), serr
	}
	c.log.Info("booking confirmed", zap.String("bookingId", string(b.BookingID)), zap.Int("documents", len(b.DocumentsConfirmed)))

	st.Page = PageConfirmation
	st.NotificationsPending = true
	st.Banner = &Banner{Severity: notify.SeveritySuccess, Message: msgSendingNotifications}
	c.reconciler.Forget(ctx, st.Identity.Email)

	c.dispatchNotifications(ctx, s, notify.Recipient{
		Phone:     st.PhoneNumber,
		Locale:    st.PhoneLocale,
		BookingID: st.BookingID,
	}, st.generation)

	c.tracker.Track(ctx, st.Identity.Email, st.BookingID, auditlog.ActionBookingConfirmed, map[string]any{
		"phoneNumber":        st.PhoneNumber,
		"documentsVerified":  append([]string(nil), st.CheckedDocuments...),
		"guidelinesAccepted": true,
	})
	return st.view(), nil
}

// dispatchNotifications sends the booking templates in the background and
// applies the aggregate to the banner if the session still holds that booking.
func (c *Controller) dispatchNotifications(ctx context.Context, s *Session, r notify.Recipient, gen uint64) {
	detached := context.WithoutCancel(ctx)
	c.bg.Add(1)
	go func() {
		defer c.bg.Done()
		agg := c.notifier.SendAll(detached, r, notify.BookingTemplates(r.BookingID))

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.state.generation != gen || s.state.BookingID != r.BookingID {
			return
		}
		s.state.NotificationsPending = false
		s.state.Banner = &Banner{Severity: agg.Severity(), Message: agg.Message()}
	}()
}

func (c *Controller) OpenRideCompletion(ctx context.Context, subject domain.SubjectID) (View, error) {
	return c.withSession(subject, func(st *State) error {
		switch st.Page {
		case PageRideCompletion:
			return nil
		case PageConfirmation:
		default:
			return invalidState("Confirm the booking before completing the ride.")
		}
		if st.BookingID == "" {
			return &ValidationError{Field: FieldBookingID, Message: msgBookingIDPending}
		}
		st.Page = PageRideCompletion
		st.LastError = ""
		return nil
	})
}

func (c *Controller) BackToConfirmation(ctx context.Context, subject domain.SubjectID) (View, error) {
	return c.withSession(subject, func(st *State) error {
		if st.Page != PageRideCompletion {
			return invalidState("Not on the ride completion page.")
		}
		st.Page = PageConfirmation
		return nil
	})
}

func (c *Controller) rideEditable(st *State) error {
	if st.Page != PageRideCompletion {
		return invalidState("Open the ride completion page first.")
	}
	if st.RideCompleted {
		return ErrRideCompleted
	}
	return nil
}

// AttachPhoto puts f into the named slot after it passes the photo checks.
// A rejected file leaves the slot as it was.
func (c *Controller) AttachPhoto(ctx context.Context, subject domain.SubjectID, slot string, f media.File) (View, error) {
	return c.withSession(subject, func(st *State) error {
		if err := c.rideEditable(st); err != nil {
			return err
		}
		ps, ok := domain.ParsePhotoSlot(slot)
		if !ok {
			return &ValidationError{Field: FieldPhotoSlot, Message: fmt.Sprintf("unknown photo slot %q", slot)}
		}
		if err := c.media.CheckPhoto(ps, f); err != nil {
			st.LastError = err.Error()
			return err
		}
		st.Ride = st.Ride.WithPhoto(ps, f)
		st.LastError = ""
		return nil
	})
}

// AttachVideo commits the video slot only once both the size/type check and the
// duration probe have passed.
func (c *Controller) AttachVideo(ctx context.Context, subject domain.SubjectID, f media.File) (View, error) {
	return c.withSession(subject, func(st *State) error {
		if err := c.rideEditable(st); err != nil {
			return err
		}
		if err := c.media.CheckVideo(ctx, f); err != nil {
			var me *media.Error
			if errors.As(err, &me) {
				st.LastError = me.Message
			}
			return err
		}
		st.Ride = st.Ride.WithVideo(f)
		st.LastError = ""
		return nil
	})
}

// CompleteRide submits the draft. Any failure leaves the draft in place so the
// user can retry.
func (c *Controller) CompleteRide(ctx context.Context, subject domain.SubjectID) (View, error) {
	return c.withSession(subject, func(st *State) error {
		if err := c.rideEditable(st); err != nil {
			return err
		}
		if st.BookingID == "" {
			return &ValidationError{Field: FieldBookingID, Message: "User not authenticated or booking ID missing"}
		}
		if merr := media.Incomplete(st.Ride); merr != nil {
			st.LastError = merr.Message
			return merr
		}
		if st.Identity.ID == "" {
			identity, err := c.upsertIdentity(ctx, st.Identity)
			if err != nil {
				st.LastError = err.Error()
				return err
			}
			st.Identity.ID = identity.ID
		}

		rc, err := c.media.Submit(ctx, media.SubmitInput{
			IdentityID: st.Identity.ID,
			Email:      st.Identity.Email,
			BookingID:  st.BookingID,
			Draft:      st.Ride,
		})
		if err != nil {
			c.log.Error("ride completion failed", zap.String("bookingId", string(st.BookingID)), zap.Error(err))
			st.LastError = err.Error()
			var me *media.Error
			var ue *media.UploadError
			if errors.As(err, &me) || errors.As(err, &ue) {
				return err
			}
			return &StoreError{Op: "complete ride", Err: err}
		}

		st.RideCompleted = true
		st.RideCompletion = &rc
		st.Ride = media.Draft{}
		st.LastError = ""
		st.Banner = &Banner{Severity: notify.SeveritySuccess, Message: msgRideCompleted}
		c.reconciler.Forget(ctx, st.Identity.Email)
		return nil
	})
}

func (c *Controller) upsertIdentity(ctx context.Context, id domain.Identity) (domain.Identity, error) {
	now := c.clk.Now()
	stored, err := c.identities.Upsert(ctx, identityrepo.Identity{
		ID:          id.ID,
		Subject:     id.Subject,
		Email:       id.Email,
		DisplayName: id.NameOrEmail(),
		AvatarURL:   id.AvatarURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return domain.Identity{}, &StoreError{Op: "upsert identity", Err: err}
	}
	id.ID = stored.ID
	return id, nil
}

// SweepSessions drops sessions with no activity for maxAge.
func (c *Controller) SweepSessions(maxAge time.Duration) int {
	return c.sessions.Sweep(c.clk.Now().Add(-maxAge))
}
