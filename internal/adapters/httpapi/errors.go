package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/oapi-codegen/nullable"
	"github.com/sirupsen/logrus"

	"github.com/Overland-East-Bay/stockroom/internal/adapters/httpapi/dto"
	"github.com/Overland-East-Bay/stockroom/internal/app/catalog"
)

const (
	codeUnauthorized     = "UNAUTHORIZED"
	codeInternal         = "INTERNAL"
	codeBadRequest       = "BAD_REQUEST"
	codeIdempotencyReuse = "IDEMPOTENCY_KEY_REUSE"
)

func errorBody(r *http.Request, code string, message string, details map[string]any) dto.ErrorResponse {
	er := dto.ErrorResponse{Error: message, Code: code}
	if details != nil {
		er.Details = nullable.NewNullableWithValue(map[string]any(details))
	}
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		er.RequestID = nullable.NewNullableWithValue(rid)
	}
	return er
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code string, message string, details map[string]any) {
	writeJSON(w, status, errorBody(r, code, message, details))
}

// writeAppError maps service errors to responses; anything that is not a
// *catalog.Error is logged and reported as a 500.
func writeAppError(w http.ResponseWriter, r *http.Request, log logrus.FieldLogger, err error) {
	var ae *catalog.Error
	if errors.As(err, &ae) {
		writeError(w, r, ae.Status, ae.Code, ae.Message, ae.Details)
		return
	}
	log.WithError(err).WithField("request_id", middleware.GetReqID(r.Context())).Error("request failed")
	writeError(w, r, http.StatusInternalServerError, codeInternal, "internal error", nil)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
