package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/courtsideapp/courtside/internal/booking"
)

// Error kinds surfaced in the response envelope. Internal failures never leak
// their underlying error text.
const (
	kindInvalid  = "invalid"
	kindNotFound = "not_found"
	kindConflict = "conflict"
	kindInternal = "internal"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind, details string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"kind":    kind,
			"details": details,
		},
	})
}

func invalid(w http.ResponseWriter, details string) {
	writeError(w, http.StatusBadRequest, kindInvalid, details)
}

func notFound(w http.ResponseWriter, details string) {
	writeError(w, http.StatusNotFound, kindNotFound, details)
}

func internal(w http.ResponseWriter) {
	writeError(w, http.StatusInternalServerError, kindInternal, "internal error")
}

// bookingError maps booking service sentinels onto the envelope.
func bookingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrNotFound):
		notFound(w, "booking or court not found")
	case errors.Is(err, booking.ErrSlotTaken):
		writeError(w, http.StatusConflict, kindConflict, "slot not available")
	case errors.Is(err, booking.ErrOutsideHours):
		invalid(w, "outside court operating hours")
	case errors.Is(err, booking.ErrInPast):
		invalid(w, "cannot book in the past")
	case errors.Is(err, booking.ErrInvalid):
		invalid(w, "invalid booking request")
	default:
		internal(w)
	}
}
