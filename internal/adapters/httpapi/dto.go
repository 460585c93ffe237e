package httpapi

import (
	"time"

	"github.com/google/uuid"
	"github.com/oapi-codegen/nullable"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/carhop-rentals/booking-verify-api/internal/app/lifecycle"
	"github.com/carhop-rentals/booking-verify-api/internal/domain/namematch"
	"github.com/carhop-rentals/booking-verify-api/internal/domain/phone"
)

type Banner struct {
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

type Photo struct {
	Slot string `json:"slot"`
	Url  string `json:"url"`
}

type RideCompletion struct {
	RideCompletionId openapi_types.UUID `json:"rideCompletionId"`
	Photos           []Photo            `json:"photos"`
	VideoUrl         string             `json:"videoUrl"`
	SubmittedAt      time.Time          `json:"submittedAt"`
}

type Ride struct {
	Slots      map[string]bool `json:"slots"`
	Completed  bool            `json:"completed"`
	Completion *RideCompletion `json:"completion,omitempty"`
}

type Verification struct {
	RequiredDocuments  []string `json:"requiredDocuments"`
	CheckedDocuments   []string `json:"checkedDocuments"`
	GuidelinesAccepted bool     `json:"guidelinesAccepted"`
	PhoneNumber        string   `json:"phoneNumber"`
	Locale             string   `json:"locale"`
	PhoneError         *string  `json:"phoneError,omitempty"`
}

type SessionState struct {
	Page          string              `json:"page"`
	Authenticated bool                `json:"authenticated"`
	Email         openapi_types.Email `json:"email,omitempty"`
	DisplayName   string              `json:"displayName,omitempty"`
	AvatarUrl     *string             `json:"avatarUrl,omitempty"`

	BookingId    string       `json:"bookingId"`
	Verification Verification `json:"verification"`
	Ride         Ride         `json:"ride"`

	NotificationsPending bool    `json:"notificationsPending"`
	Banner               *Banner `json:"banner,omitempty"`
	LastError            *string `json:"lastError,omitempty"`
}

// UpdatePhoneRequest distinguishes an absent field from an explicit null.
type UpdatePhoneRequest struct {
	PhoneNumber nullable.Nullable[string] `json:"phoneNumber,omitempty"`
	Locale      nullable.Nullable[string] `json:"locale,omitempty"`
}

type PhoneLocale struct {
	Code      string `json:"code"`
	Name      string `json:"name"`
	Digits    int    `json:"digits"`
	MinDigits int    `json:"minDigits"`
	MaxDigits int    `json:"maxDigits"`
}

type PhoneLocalesResponse struct {
	Default string        `json:"default"`
	Locales []PhoneLocale `json:"locales"`
}

type NameMatchRequest struct {
	CardName    string `json:"cardName"`
	LicenseName string `json:"licenseName"`
}

type NameMatchResponse struct {
	namematch.Result
	Message string `json:"message"`
}

func optionalFromNullable[T any](n nullable.Nullable[T]) lifecycle.Optional[T] {
	if !n.IsSpecified() {
		return lifecycle.Unspecified[T]()
	}
	if n.IsNull() {
		return lifecycle.Null[T]()
	}
	v, err := n.Get()
	if err != nil {
		return lifecycle.Null[T]()
	}
	return lifecycle.Some(v)
}

func stringPtrIfSet(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func sessionStateFromView(v lifecycle.View) SessionState {
	out := SessionState{
		Page:          string(v.Page),
		Authenticated: v.Authenticated,
		BookingId:     string(v.BookingID),
		Verification: Verification{
			RequiredDocuments:  v.RequiredDocuments,
			CheckedDocuments:   v.CheckedDocuments,
			GuidelinesAccepted: v.GuidelinesAccepted,
			PhoneNumber:        v.PhoneNumber,
			Locale:             v.PhoneLocale,
			PhoneError:         stringPtrIfSet(v.PhoneError),
		},
		Ride: Ride{
			Slots:     v.RideSlots,
			Completed: v.RideCompleted,
		},
		NotificationsPending: v.NotificationsPending,
		LastError:            stringPtrIfSet(v.LastError),
	}
	if v.Authenticated {
		out.Email = openapi_types.Email(v.Email)
		out.DisplayName = v.DisplayName
		out.AvatarUrl = v.AvatarURL
	}
	if v.Banner != nil {
		out.Banner = &Banner{Severity: string(v.Banner.Severity), Message: v.Banner.Message}
	}
	if rc := v.RideCompletion; rc != nil {
		id, _ := uuid.Parse(string(rc.ID))
		c := &RideCompletion{
			RideCompletionId: id,
			Photos:           make([]Photo, 0, len(rc.Photos)),
			VideoUrl:         rc.VideoLocator,
			SubmittedAt:      rc.SubmittedAt.UTC(),
		}
		for _, p := range rc.Photos {
			c.Photos = append(c.Photos, Photo{Slot: string(p.Slot), Url: p.Locator})
		}
		out.Ride.Completion = c
	}
	return out
}

func phoneLocalesResponse() PhoneLocalesResponse {
	ls := phone.Locales()
	out := PhoneLocalesResponse{Default: phone.DefaultCode, Locales: make([]PhoneLocale, 0, len(ls))}
	for _, l := range ls {
		out.Locales = append(out.Locales, PhoneLocale{
			Code:      l.Code,
			Name:      l.Name,
			Digits:    l.Digits,
			MinDigits: l.Rule.Min,
			MaxDigits: l.Rule.Max,
		})
	}
	return out
}
