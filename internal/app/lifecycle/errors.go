package lifecycle

import (
	"errors"

	"github.com/carhop-rentals/booking-verify-api/internal/ports/out/bookingrepo"
)

// Error is an application-layer error that can be mapped to an HTTP response.
type Error struct {
	Status  int
	Code    string
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

var (
	ErrUnauthenticated = &Error{Status: 401, Code: "UNAUTHENTICATED", Message: "Please sign in to continue."}
	// ErrRideCompleted is returned for media edits after the ride was submitted.
	ErrRideCompleted = &Error{Status: 409, Code: "RIDE_COMPLETED", Message: "This ride has already been completed."}
)

func invalidState(msg string) *Error {
	return &Error{Status: 409, Code: "INVALID_STATE", Message: msg}
}

// Fields reported by ValidationError, in precondition priority order.
const (
	FieldDocuments  = "documents"
	FieldGuidelines = "guidelines"
	FieldPhone      = "phoneNumber"
	FieldBookingID  = "bookingId"
	FieldDocument   = "documentIndex"
	FieldPhotoSlot  = "slot"
)

// ValidationError is the first unmet precondition of an operation. The session
// stays where it was.
type ValidationError struct {
	Field   string
	Message string
	// FieldMessage is the inline hint for the field, when it differs from Message.
	FieldMessage string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// StoreError wraps a record-store failure. Its message is the store's own.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func (e *StoreError) Unwrap() error { return e.Err }

// Conflict reports whether the store refused a second active booking.
func (e *StoreError) Conflict() bool {
	return e != nil && errors.Is(e.Err, bookingrepo.ErrActiveBookingExists)
}
