package lifecycle

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/carhop-rentals/booking-verify-api/internal/app/media"
	"github.com/carhop-rentals/booking-verify-api/internal/app/notify"
	"github.com/carhop-rentals/booking-verify-api/internal/domain"
	"github.com/carhop-rentals/booking-verify-api/internal/domain/phone"
)

type Page string

const (
	PageVerification   Page = "verification"
	PageConfirmation   Page = "confirmation"
	PageRideCompletion Page = "ride_completion"
)

type Banner struct {
	Severity notify.Severity
	Message  string
}

// State is everything the controller knows about one signed-in user. Only the
// Controller mutates it, and only while holding the owning Session's lock.
type State struct {
	Page          Page
	Authenticated bool
	Identity      domain.Identity

	CheckedDocuments   []string
	GuidelinesAccepted bool
	PhoneNumber        string
	PhoneLocale        string
	PhoneError         string
	BookingID          domain.BookingID

	Ride           media.Draft
	RideCompleted  bool
	RideCompletion *domain.RideCompletion

	NotificationsPending bool
	Banner               *Banner
	LastError            string

	// generation changes on every reset so late background results for an old
	// booking are dropped.
	generation uint64
}

func newState(id domain.BookingID) State {
	return State{
		Page:        PageVerification,
		PhoneLocale: phone.DefaultCode,
		BookingID:   id,
	}
}

// View is a read-only copy of State handed to callers.
type View struct {
	Page          Page
	Authenticated bool
	Email         string
	DisplayName   string
	AvatarURL     *string

	RequiredDocuments  []string
	CheckedDocuments   []string
	GuidelinesAccepted bool
	PhoneNumber        string
	PhoneLocale        string
	PhoneError         string
	BookingID          domain.BookingID

	RideSlots      map[string]bool
	RideCompleted  bool
	RideCompletion *domain.RideCompletion

	NotificationsPending bool
	Banner               *Banner
	LastError            string
}

func (s State) view() View {
	v := View{
		Page:                 s.Page,
		Authenticated:        s.Authenticated,
		Email:                s.Identity.Email,
		DisplayName:          s.Identity.NameOrEmail(),
		AvatarURL:            s.Identity.AvatarURL,
		RequiredDocuments:    append([]string(nil), domain.RequiredDocuments...),
		CheckedDocuments:     append([]string{}, s.CheckedDocuments...),
		GuidelinesAccepted:   s.GuidelinesAccepted,
		PhoneNumber:          s.PhoneNumber,
		PhoneLocale:          s.PhoneLocale,
		PhoneError:           s.PhoneError,
		BookingID:            s.BookingID,
		RideSlots:            s.Ride.Attached(),
		RideCompleted:        s.RideCompleted,
		NotificationsPending: s.NotificationsPending,
		LastError:            s.LastError,
	}
	if s.Banner != nil {
		b := *s.Banner
		v.Banner = &b
	}
	if s.RideCompletion != nil {
		rc := *s.RideCompletion
		rc.Photos = append([]domain.PhotoLocator(nil), s.RideCompletion.Photos...)
		v.RideCompletion = &rc
		for k := range v.RideSlots {
			v.RideSlots[k] = true
		}
	}
	return v
}

// Session owns one user's State.
type Session struct {
	mu    sync.Mutex
	state State

	// lastSeen is unix nanos of the latest call on this session. It is read by
	// Sweep without taking mu.
	lastSeen atomic.Int64
}

func (s *Session) touch(now time.Time) { s.lastSeen.Store(now.UnixNano()) }

// Registry keeps one Session per authenticated subject.
type Registry struct {
	mu       sync.Mutex
	sessions map[domain.SubjectID]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[domain.SubjectID]*Session)}
}

func (r *Registry) get(subject domain.SubjectID) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[subject]
	return s, ok
}

func (r *Registry) getOrCreate(subject domain.SubjectID, create func() *Session) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[subject]; ok {
		return s
	}
	s := create()
	r.sessions[subject] = s
	return s
}

func (r *Registry) remove(subject domain.SubjectID) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[subject]
	delete(r.sessions, subject)
	return s, ok
}

// Len reports how many sessions are held.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep drops sessions idle since before cutoff and returns how many were removed.
func (r *Registry) Sweep(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for k, s := range r.sessions {
		if s.lastSeen.Load() < cutoff.UnixNano() {
			delete(r.sessions, k)
			n++
		}
	}
	return n
}
