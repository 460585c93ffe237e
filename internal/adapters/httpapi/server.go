package httpapi

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/carhop-rentals/booking-verify-api/internal/app/lifecycle"
	"github.com/carhop-rentals/booking-verify-api/internal/app/media"
	"github.com/carhop-rentals/booking-verify-api/internal/domain"
	"github.com/carhop-rentals/booking-verify-api/internal/domain/namematch"
	clockport "github.com/carhop-rentals/booking-verify-api/internal/ports/out/clock"
	"github.com/carhop-rentals/booking-verify-api/internal/ports/out/idempotency"
)

const (
	routeBookings = "/v1/bookings"

	// Uploads larger than this are refused while reading; anything up to it
	// reaches the media checks so the client gets the specific size error.
	maxUploadBytes = 2 * media.MaxVideoBytes
	multipartMem   = 8 << 20
)

// Server adapts HTTP requests onto the lifecycle controller.
type Server struct {
	Lifecycle *lifecycle.Controller
	Idem      idempotency.Store
	Clock     clockport.Clock
	Log       *zap.Logger
}

func NewServer(ctl *lifecycle.Controller, idem idempotency.Store, clk clockport.Clock, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{Lifecycle: ctl, Idem: idem, Clock: clk, Log: log}
}

func (s *Server) identity(w http.ResponseWriter, r *http.Request) (domain.Identity, bool) {
	id, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing subject", nil)
	}
	return id, ok
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, v lifecycle.View, err error) {
	if err != nil {
		writeAppError(w, r, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionStateFromView(v))
}

func (s *Server) SignIn(w http.ResponseWriter, r *http.Request) {
	id, ok := s.identity(w, r)
	if !ok {
		return
	}
	v, err := s.Lifecycle.SignIn(r.Context(), id)
	s.respond(w, r, v, err)
}

func (s *Server) SignOut(w http.ResponseWriter, r *http.Request) {
	id, ok := s.identity(w, r)
	if !ok {
		return
	}
	s.respond(w, r, s.Lifecycle.SignOut(r.Context(), id.Subject), nil)
}

func (s *Server) GetState(w http.ResponseWriter, r *http.Request) {
	id, ok := s.identity(w, r)
	if !ok {
		return
	}
	v, err := s.Lifecycle.Snapshot(id.Subject)
	s.respond(w, r, v, err)
}

func (s *Server) ToggleDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := s.identity(w, r)
	if !ok {
		return
	}
	idx, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "document index must be an integer", map[string]any{"field": lifecycle.FieldDocument})
		return
	}
	v, err := s.Lifecycle.ToggleDocument(r.Context(), id.Subject, idx)
	s.respond(w, r, v, err)
}

func (s *Server) AcceptGuidelines(w http.ResponseWriter, r *http.Request) {
	id, ok := s.identity(w, r)
	if !ok {
		return
	}
	v, err := s.Lifecycle.AcceptGuidelines(r.Context(), id.Subject)
	s.respond(w, r, v, err)
}

func (s *Server) UpdatePhone(w http.ResponseWriter, r *http.Request) {
	id, ok := s.identity(w, r)
	if !ok {
		return
	}
	var body UpdatePhoneRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid request body", nil)
		return
	}
	v, err := s.Lifecycle.SetPhone(r.Context(), id.Subject, lifecycle.PhonePatch{
		Number: optionalFromNullable(body.PhoneNumber),
		Locale: optionalFromNullable(body.Locale),
	})
	s.respond(w, r, v, err)
}

// ConfirmBooking honours Idempotency-Key: a retry for the same pending booking
// replays the first response; reusing the key for a different booking is a 409.
func (s *Server) ConfirmBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := s.identity(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))

	var respFP idempotency.Fingerprint
	if s.Idem != nil && key != "" {
		current, err := s.Lifecycle.Snapshot(id.Subject)
		if err != nil {
			writeAppError(w, r, s.Log, err)
			return
		}
		bodyHash := hashBookingID(current.BookingID)
		metaFP := idempotency.Fingerprint{
			Key:      idempotency.Key(key),
			Subject:  id.Subject,
			Method:   http.MethodPost,
			Route:    routeBookings,
			BodyHash: "",
		}
		if meta, ok, err := s.Idem.Get(ctx, metaFP); err != nil {
			writeAppError(w, r, s.Log, err)
			return
		} else if ok {
			if string(meta.Body) != bodyHash {
				writeError(w, r, http.StatusConflict, "IDEMPOTENCY_KEY_REUSE", "idempotency key reuse with different payload", nil)
				return
			}
		} else {
			_ = s.Idem.Put(ctx, metaFP, idempotency.Record{
				StatusCode:  0,
				ContentType: "text/plain",
				Body:        []byte(bodyHash),
				CreatedAt:   s.Clock.Now().UTC(),
			})
		}

		respFP = metaFP
		respFP.BodyHash = bodyHash
		if rec, ok, err := s.Idem.Get(ctx, respFP); err != nil {
			writeAppError(w, r, s.Log, err)
			return
		} else if ok && rec.StatusCode == http.StatusOK && strings.HasPrefix(rec.ContentType, "application/json") {
			w.Header().Set("Content-Type", rec.ContentType)
			w.Header().Set("Idempotent-Replayed", "true")
			w.WriteHeader(rec.StatusCode)
			_, _ = w.Write(rec.Body)
			return
		}
	}

	v, err := s.Lifecycle.ConfirmBooking(ctx, id.Subject)
	if err != nil {
		writeAppError(w, r, s.Log, err)
		return
	}
	resp := sessionStateFromView(v)

	if respFP.Key != "" {
		if b, err := json.Marshal(resp); err == nil {
			_ = s.Idem.Put(ctx, respFP, idempotency.Record{
				StatusCode:  http.StatusOK,
				ContentType: "application/json",
				Body:        b,
				CreatedAt:   s.Clock.Now().UTC(),
			})
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func hashBookingID(id domain.BookingID) string {
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:])
}

func (s *Server) OpenRide(w http.ResponseWriter, r *http.Request) {
	id, ok := s.identity(w, r)
	if !ok {
		return
	}
	v, err := s.Lifecycle.OpenRideCompletion(r.Context(), id.Subject)
	s.respond(w, r, v, err)
}

func (s *Server) CloseRide(w http.ResponseWriter, r *http.Request) {
	id, ok := s.identity(w, r)
	if !ok {
		return
	}
	v, err := s.Lifecycle.BackToConfirmation(r.Context(), id.Subject)
	s.respond(w, r, v, err)
}

func (s *Server) PutPhoto(w http.ResponseWriter, r *http.Request) {
	id, ok := s.identity(w, r)
	if !ok {
		return
	}
	slot := chi.URLParam(r, "slot")
	f, ok := s.readUpload(w, r, media.CodePhotoTooLarge, slot)
	if !ok {
		return
	}
	v, err := s.Lifecycle.AttachPhoto(r.Context(), id.Subject, slot, f)
	s.respond(w, r, v, err)
}

func (s *Server) PutVideo(w http.ResponseWriter, r *http.Request) {
	id, ok := s.identity(w, r)
	if !ok {
		return
	}
	f, ok := s.readUpload(w, r, media.CodeVideoTooLarge, domain.VideoSlotKey)
	if !ok {
		return
	}
	v, err := s.Lifecycle.AttachVideo(r.Context(), id.Subject, f)
	s.respond(w, r, v, err)
}

func (s *Server) CompleteRide(w http.ResponseWriter, r *http.Request) {
	id, ok := s.identity(w, r)
	if !ok {
		return
	}
	v, err := s.Lifecycle.CompleteRide(r.Context(), id.Subject)
	s.respond(w, r, v, err)
}

// readUpload reads the multipart "file" part into memory.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request, tooLargeCode, slot string) (media.File, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMem); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeError(w, r, http.StatusUnprocessableEntity, tooLargeCode, "file is too large", map[string]any{"slot": slot})
			return media.File{}, false
		}
		writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "expected a multipart form with a file field", nil)
		return media.File{}, false
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	part, hdr, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "missing file field", map[string]any{"field": "file"})
		return media.File{}, false
	}
	defer part.Close()
	body, err := io.ReadAll(part)
	if err != nil {
		writeAppError(w, r, s.Log, err)
		return media.File{}, false
	}
	return media.File{
		Name:        hdr.Filename,
		ContentType: hdr.Header.Get("Content-Type"),
		Body:        body,
	}, true
}

func (s *Server) ListPhoneLocales(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, phoneLocalesResponse())
}

func (s *Server) MatchNames(w http.ResponseWriter, r *http.Request) {
	var body NameMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "invalid request body", nil)
		return
	}
	res := namematch.Match(body.CardName, body.LicenseName)
	writeJSON(w, http.StatusOK, NameMatchResponse{Result: res, Message: res.Message()})
}
