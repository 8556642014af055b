// Package http provides HTTP routing and JSON handlers for the
// checklist service.
package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ykarpov/ListKeeper/internal/apperr"
)

// writeJSON encodes v with the given status. Encoding failures are
// ignored; the status line is already on the wire.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the shared error kinds onto HTTP statuses. Every error
// reaches the caller; nothing is logged-and-dropped here.
func writeError(w http.ResponseWriter, err error) {
	var status int
	msg := err.Error()
	switch {
	case errors.Is(err, apperr.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, apperr.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperr.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, apperr.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, apperr.ErrUpstream):
		status = http.StatusBadGateway
	default:
		status = http.StatusInternalServerError
		msg = "internal error"
	}
	writeJSON(w, status, map[string]string{"error": msg})
}
