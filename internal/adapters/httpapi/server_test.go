package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carhop-rentals/booking-verify-api/internal/domain"
	"github.com/carhop-rentals/booking-verify-api/internal/ports/out/bookingrepo"
)

func (a testAPI) readyToConfirm(t *testing.T) SessionState {
	t.Helper()
	decodeState(t, a.do(t, call{method: http.MethodPost, path: "/v1/session"}))
	for i := range domain.RequiredDocuments {
		decodeState(t, a.do(t, call{method: http.MethodPut, path: "/v1/verification/documents/" + strconv.Itoa(i)}))
	}
	decodeState(t, a.do(t, call{method: http.MethodPost, path: "/v1/verification/guidelines"}))
	return decodeState(t, a.do(t, call{
		method: http.MethodPatch,
		path:   "/v1/verification/phone",
		body:   strings.NewReader(`{"phoneNumber":"9876543210"}`),
	}))
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	a := newTestAPI(t, nil)
	rec := a.do(t, call{method: http.MethodGet, path: "/healthz"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestSignInStartsAtVerification(t *testing.T) {
	t.Parallel()
	a := newTestAPI(t, nil)

	s := decodeState(t, a.do(t, call{method: http.MethodPost, path: "/v1/session"}))
	assert.Equal(t, "verification", s.Page)
	assert.True(t, s.Authenticated)
	assert.Equal(t, "alice@example.com", string(s.Email))
	assert.Equal(t, "Alice Rider", s.DisplayName)
	assert.Equal(t, "91", s.Verification.Locale)
	assert.Len(t, s.Verification.RequiredDocuments, domain.RequiredDocumentCount)
	assert.Regexp(t, `^BK-\d{13}-[0-9A-Z]{9}$`, s.BookingId)
}

func TestStateRequiresSession(t *testing.T) {
	t.Parallel()
	a := newTestAPI(t, nil)

	rec := a.do(t, call{method: http.MethodGet, path: "/v1/state"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHENTICATED", decodeError(t, rec).Error.Code)
}

func TestConfirmBooking_ValidationError422(t *testing.T) {
	t.Parallel()
	a := newTestAPI(t, nil)
	decodeState(t, a.do(t, call{method: http.MethodPost, path: "/v1/session"}))

	rec := a.do(t, call{method: http.MethodPost, path: "/v1/bookings"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	er := decodeError(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", er.Error.Code)
	assert.Equal(t, "Please confirm you have all required documents.", er.Error.Message)
	details, err := er.Error.Details.Get()
	require.NoError(t, err)
	assert.Equal(t, "documents", details["field"])
	assert.True(t, er.Error.RequestId.IsSpecified())
}

func TestUpdatePhone_NullResetsLocale(t *testing.T) {
	t.Parallel()
	a := newTestAPI(t, nil)
	decodeState(t, a.do(t, call{method: http.MethodPost, path: "/v1/session"}))

	s := decodeState(t, a.do(t, call{method: http.MethodPatch, path: "/v1/verification/phone", body: strings.NewReader(`{"locale":"+1","phoneNumber":"555"}`)}))
	assert.Equal(t, "1", s.Verification.Locale)
	assert.Equal(t, "555", s.Verification.PhoneNumber)

	// phoneNumber absent: untouched. locale null: back to the default.
	s = decodeState(t, a.do(t, call{method: http.MethodPatch, path: "/v1/verification/phone", body: strings.NewReader(`{"locale":null}`)}))
	assert.Equal(t, "91", s.Verification.Locale)
	assert.Equal(t, "555", s.Verification.PhoneNumber)
}

func TestConfirmBooking_IdempotentReplay(t *testing.T) {
	t.Parallel()
	a := newTestAPI(t, nil)
	ready := a.readyToConfirm(t)

	hdr := map[string]string{"Idempotency-Key": "confirm-1"}
	first := a.do(t, call{method: http.MethodPost, path: "/v1/bookings", headers: hdr})
	s := decodeState(t, first)
	assert.Equal(t, "confirmation", s.Page)
	assert.Equal(t, ready.BookingId, s.BookingId)

	second := a.do(t, call{method: http.MethodPost, path: "/v1/bookings", headers: hdr})
	require.Equal(t, http.StatusOK, second.Code, second.Body.String())
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	bs, err := a.bookings.Find(context.Background(), bookingrepo.Query{UserEmail: "alice@example.com"})
	require.NoError(t, err)
	assert.Len(t, bs, 1)

	// Without the key, a second confirm is refused by the state machine.
	rec := a.do(t, call{method: http.MethodPost, path: "/v1/bookings"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestConfirmBooking_KeyReusedForAnotherBooking(t *testing.T) {
	t.Parallel()
	a := newTestAPI(t, nil)
	decodeState(t, a.do(t, call{method: http.MethodPost, path: "/v1/session"}))

	hdr := map[string]string{"Idempotency-Key": "k"}
	rec := a.do(t, call{method: http.MethodPost, path: "/v1/bookings", headers: hdr})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// Signing out discards the pending booking id; the key now names another booking.
	decodeState(t, a.do(t, call{method: http.MethodDelete, path: "/v1/session"}))
	decodeState(t, a.do(t, call{method: http.MethodPost, path: "/v1/session"}))

	rec = a.do(t, call{method: http.MethodPost, path: "/v1/bookings", headers: hdr})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "IDEMPOTENCY_KEY_REUSE", decodeError(t, rec).Error.Code)

	// Keys are scoped per subject.
	other := map[string]string{"Idempotency-Key": "k", "X-Debug-Email": "bob@example.com"}
	decodeState(t, a.do(t, call{method: http.MethodPost, path: "/v1/session", headers: other}))
	rec = a.do(t, call{method: http.MethodPost, path: "/v1/bookings", headers: other})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestRideCompletionFlow(t *testing.T) {
	t.Parallel()
	a := newTestAPI(t, nil)
	a.readyToConfirm(t)
	decodeState(t, a.do(t, call{method: http.MethodPost, path: "/v1/bookings"}))

	s := decodeState(t, a.do(t, call{method: http.MethodPost, path: "/v1/ride"}))
	assert.Equal(t, "ride_completion", s.Page)

	body, ct := multipartFile(t, "a.txt", "text/plain", []byte("nope"))
	rec := a.do(t, call{method: http.MethodPut, path: "/v1/ride/photos/dashboard", body: body, headers: map[string]string{"Content-Type": ct}})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "NOT_AN_IMAGE", decodeError(t, rec).Error.Code)

	rec = a.do(t, call{method: http.MethodPost, path: "/v1/ride/complete"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	er := decodeError(t, rec)
	assert.Equal(t, "MEDIA_INCOMPLETE", er.Error.Code)

	for _, slot := range domain.PhotoSlots {
		body, ct := multipartFile(t, string(slot)+".jpg", "image/jpeg", []byte("jpeg"))
		s = decodeState(t, a.do(t, call{method: http.MethodPut, path: "/v1/ride/photos/" + string(slot), body: body, headers: map[string]string{"Content-Type": ct}}))
		assert.True(t, s.Ride.Slots[string(slot)])
	}
	body, ct = multipartFile(t, "walk.mp4", "video/mp4", []byte("mp4"))
	decodeState(t, a.do(t, call{method: http.MethodPut, path: "/v1/ride/video", body: body, headers: map[string]string{"Content-Type": ct}}))

	s = decodeState(t, a.do(t, call{method: http.MethodPost, path: "/v1/ride/complete"}))
	assert.True(t, s.Ride.Completed)
	require.NotNil(t, s.Ride.Completion)
	assert.Len(t, s.Ride.Completion.Photos, len(domain.PhotoSlots))
	assert.NotEmpty(t, s.Ride.Completion.VideoUrl)
	assert.Equal(t, len(domain.PhotoSlots)+1, a.store.Len())

	rec = a.do(t, call{method: http.MethodPost, path: "/v1/ride/complete"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "RIDE_COMPLETED", decodeError(t, rec).Error.Code)
}

func TestPhoneLocales(t *testing.T) {
	t.Parallel()
	a := newTestAPI(t, nil)

	rec := a.do(t, call{method: http.MethodGet, path: "/v1/phone/locales"})
	require.Equal(t, http.StatusOK, rec.Code)
	var out PhoneLocalesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "91", out.Default)
	require.NotEmpty(t, out.Locales)
	assert.Equal(t, "India", out.Locales[0].Name)
}

func TestNameMatch(t *testing.T) {
	t.Parallel()
	a := newTestAPI(t, nil)

	rec := a.do(t, call{method: http.MethodPost, path: "/v1/name-match", body: strings.NewReader(`{"cardName":"JOHN SMITH","licenseName":"john  smith"}`)})
	require.Equal(t, http.StatusOK, rec.Code)
	var out NameMatchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.True(t, out.IsValid)
	assert.Equal(t, "Names match", out.Message)
}
