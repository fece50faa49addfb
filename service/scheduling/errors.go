// Package scheduling defines the error taxonomy, collaborator interfaces and
// authorization policy shared by the availability, slot, appointment and
// reschedule services.
package scheduling

import (
	"encoding/json"
	"errors"
	"net/http"
)

var (
	ErrInvalidInterval   = errors.New("invalid time range")
	ErrSlotUnavailable   = errors.New("slot unavailable")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrTooLateToCancel   = errors.New("too late to cancel")
	ErrDoctorNotApproved = errors.New("doctor is not approved")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrNotFound          = errors.New("not found")
)

// WriteError maps a domain error onto an HTTP response. Unknown errors become
// a 500 without leaking internals.
func WriteError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	message := "Internal server error"

	switch {
	case errors.Is(err, ErrInvalidInterval):
		code, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, ErrSlotUnavailable):
		code, message = http.StatusConflict, err.Error()
	case errors.Is(err, ErrInvalidTransition):
		code, message = http.StatusConflict, err.Error()
	case errors.Is(err, ErrTooLateToCancel):
		code, message = http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, ErrDoctorNotApproved):
		code, message = http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, ErrPermissionDenied):
		code, message = http.StatusForbidden, err.Error()
	case errors.Is(err, ErrNotFound):
		code, message = http.StatusNotFound, err.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
