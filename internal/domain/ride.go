package domain

import "time"

// PhotoSlot names one of the fixed ride-completion photo angles.
type PhotoSlot string

const (
	PhotoExteriorFront PhotoSlot = "exteriorFront"
	PhotoExteriorBack  PhotoSlot = "exteriorBack"
	PhotoExteriorLeft  PhotoSlot = "exteriorLeft"
	PhotoExteriorRight PhotoSlot = "exteriorRight"
	PhotoInteriorFront PhotoSlot = "interiorFront"
	PhotoInteriorBack  PhotoSlot = "interiorBack"
	PhotoDashboard     PhotoSlot = "dashboard"
)

// VideoSlotKey is the path key used for the surrounding video.
const VideoSlotKey = "surrounding_video"

// PhotoSlots is the ordered photo schema. Locators are stored in this order.
var PhotoSlots = []PhotoSlot{
	PhotoExteriorFront,
	PhotoExteriorBack,
	PhotoExteriorLeft,
	PhotoExteriorRight,
	PhotoInteriorFront,
	PhotoInteriorBack,
	PhotoDashboard,
}

// ParsePhotoSlot reports whether s names a known photo slot.
func ParsePhotoSlot(s string) (PhotoSlot, bool) {
	for _, p := range PhotoSlots {
		if string(p) == s {
			return p, true
		}
	}
	return "", false
}

type PhotoLocator struct {
	Slot    PhotoSlot
	Locator string
}

// RideCompletion is the post-ride media evidence for a booking.
type RideCompletion struct {
	ID         RideCompletionID
	BookingID  BookingID
	IdentityID IdentityID

	Photos       []PhotoLocator // ordered as PhotoSlots
	VideoLocator string

	SubmittedAt time.Time
}
