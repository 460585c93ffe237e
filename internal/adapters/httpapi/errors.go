package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/oapi-codegen/nullable"
	"go.uber.org/zap"

	"github.com/carhop-rentals/booking-verify-api/internal/app/lifecycle"
	"github.com/carhop-rentals/booking-verify-api/internal/app/media"
	"github.com/carhop-rentals/booking-verify-api/internal/platform/config"
)

type ErrorBody struct {
	Code      string                             `json:"code"`
	Message   string                             `json:"message"`
	Details   nullable.Nullable[map[string]any] `json:"details,omitempty"`
	RequestId nullable.Nullable[string]          `json:"requestId,omitempty"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

func newErrorResponse(r *http.Request, code string, message string, details map[string]any) ErrorResponse {
	var er ErrorResponse
	er.Error.Code = code
	er.Error.Message = message
	if details != nil {
		er.Error.Details = nullable.NewNullableWithValue(details)
	}
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		er.Error.RequestId = nullable.NewNullableWithValue(rid)
	}
	return er
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code string, message string, details map[string]any) {
	writeJSON(w, status, newErrorResponse(r, code, message, details))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeAppError maps application errors onto status codes. Store failures keep
// the store's message so the client sees the same text the store returned.
func writeAppError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	var (
		verr  *lifecycle.ValidationError
		serr  *lifecycle.StoreError
		aerr  *lifecycle.Error
		merr  *media.Error
		uperr *media.UploadError
	)
	switch {
	case errors.As(err, &verr):
		details := map[string]any{"field": verr.Field}
		if verr.FieldMessage != "" {
			details["fieldMessage"] = verr.FieldMessage
		}
		writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_ERROR", verr.Message, details)
	case errors.As(err, &serr):
		if serr.Conflict() {
			writeError(w, r, http.StatusConflict, "ACTIVE_BOOKING_EXISTS", serr.Error(), nil)
			return
		}
		log.Error("record store failure", zap.String("op", serr.Op), zap.Error(serr.Err))
		writeError(w, r, http.StatusBadGateway, "STORE_ERROR", serr.Error(), map[string]any{"op": serr.Op})
	case errors.As(err, &aerr):
		writeError(w, r, aerr.Status, aerr.Code, aerr.Message, aerr.Details)
	case errors.As(err, &merr):
		details := map[string]any{}
		if merr.Slot != "" {
			details["slot"] = merr.Slot
		}
		if len(merr.Missing) > 0 {
			details["missing"] = merr.Missing
		}
		writeError(w, r, http.StatusUnprocessableEntity, merr.Code, merr.Message, details)
	case errors.As(err, &uperr):
		log.Error("media upload failed", zap.String("path", uperr.Path), zap.Strings("orphaned", uperr.Orphaned), zap.Error(uperr.Err))
		writeError(w, r, http.StatusBadGateway, "UPLOAD_FAILED", uperr.Error(), map[string]any{"orphaned": uperr.Orphaned})
	case config.IsConfigurationError(err):
		writeError(w, r, http.StatusInternalServerError, "CONFIGURATION_ERROR", err.Error(), nil)
	default:
		log.Error("unhandled error", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
	}
}
