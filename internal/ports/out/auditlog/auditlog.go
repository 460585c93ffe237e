package auditlog

import (
	"context"
	"time"

	"github.com/carhop-rentals/booking-verify-api/internal/domain"
)

// Action types recorded by the application.
const (
	ActionDocumentsChecked      = "documents_checked"
	ActionGuidelinesAccepted    = "guidelines_accepted"
	ActionBookingConfirmed      = "booking_confirmed"
	ActionBookingStatusRestored = "booking_status_restored"
	ActionRideCompleted         = "ride_completed"
)

// Action is one user action worth keeping for support and analytics.
type Action struct {
	UserEmail string
	BookingID domain.BookingID
	Type      string
	Data      map[string]any
	At        time.Time
}

// Sink records actions. Callers treat failures as non-fatal.
type Sink interface {
	Record(ctx context.Context, a Action) error
}

// Event is the wire shape published by message-bus sinks.
type Event struct {
	UserEmail string         `json:"userEmail"`
	BookingID string         `json:"bookingId,omitempty"`
	Type      string         `json:"actionType"`
	Data      map[string]any `json:"actionData,omitempty"`
	At        time.Time      `json:"createdAt"`
}

// Event converts a into its wire shape.
func (a Action) Event() Event {
	return Event{
		UserEmail: a.UserEmail,
		BookingID: string(a.BookingID),
		Type:      a.Type,
		Data:      a.Data,
		At:        a.At.UTC(),
	}
}
