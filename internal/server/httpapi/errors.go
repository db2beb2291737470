package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/tokenauth/internal/common"
)

type detailResponse struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, detailResponse{Detail: detail})
}

// writeError maps service errors to HTTP statuses. Unknown errors are
// logged and reported as 500 without details.
func (s *HTTPServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, common.ErrInvalidCredentials):
		w.Header().Set("WWW-Authenticate", common.BearerScheme)
		writeDetail(w, http.StatusUnauthorized, "incorrect email or password")
	case errors.Is(err, common.ErrInvalidToken), errors.Is(err, common.ErrUnauthorized):
		w.Header().Set("WWW-Authenticate", common.BearerScheme)
		writeDetail(w, http.StatusUnauthorized, "could not validate credentials")
	case errors.Is(err, common.ErrAccountDisabled):
		writeDetail(w, http.StatusForbidden, "inactive user")
	case errors.Is(err, common.ErrForbidden):
		writeDetail(w, http.StatusForbidden, err.Error())
	case errors.Is(err, common.ErrorValidation):
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, common.ErrorAlreadyExists):
		writeDetail(w, http.StatusConflict, err.Error())
	case errors.Is(err, common.ErrorNotFound):
		writeDetail(w, http.StatusNotFound, "not found")
	default:
		s.logger.Error(r.Context(), "request failed", "error", err, "request_id", common.RequestIDFromContext(r.Context()))
		writeDetail(w, http.StatusInternalServerError, "internal error")
	}
}
