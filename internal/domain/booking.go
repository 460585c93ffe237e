package domain

import "time"

type BookingStatus string

const (
	BookingStatusPending       BookingStatus = "pending"
	BookingStatusConfirmed     BookingStatus = "confirmed"
	BookingStatusCancelled     BookingStatus = "cancelled"
	BookingStatusRideCompleted BookingStatus = "ride_completed"
)

// RestorableStatuses are the statuses a returning user is taken back to the confirmation page for.
var RestorableStatuses = []BookingStatus{BookingStatusConfirmed, BookingStatusRideCompleted}

// RequiredDocuments is the fixed checklist a customer confirms before booking.
var RequiredDocuments = []string{
	"Valid Driver License (Physical copy required)",
	"Proof of Insurance (Declaration Page): Bring a copy of your insurance declaration page. Insurance can also be purchased at the counter.",
	"Physical Credit Card (No debit/digital cards accepted): Name on the reservation must match the name on credit card.",
	"Full coverage insurance documentation",
}

// RequiredDocumentCount is len(RequiredDocuments).
const RequiredDocumentCount = 4

// BookingVerification is a confirmed rental booking and its document/guidelines state.
type BookingVerification struct {
	BookingID BookingID

	IdentityID IdentityID
	UserEmail  string
	UserName   string

	PhoneNumber string
	PhoneLocale string

	DocumentsConfirmed []string
	GuidelinesAccepted bool

	Status BookingStatus

	CreatedAt time.Time
	UpdatedAt time.Time
}
