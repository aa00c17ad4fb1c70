package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/courtsideapp/courtside/internal/auth"
	"github.com/courtsideapp/courtside/internal/booking"
)

// BookingsHandler is the REST face of the booking service; the websocket path
// drives the same service.
type BookingsHandler struct {
	svc *booking.Service
}

func NewBookingsHandler(svc *booking.Service) *BookingsHandler {
	return &BookingsHandler{svc: svc}
}

type bookingRequest struct {
	CourtID   string `json:"court_id"`
	StartTime string `json:"start_time"`
	Duration  int    `json:"duration"`
}

func (h *BookingsHandler) Create(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDFromContext(w, r)
	if !ok {
		return
	}
	courtID, start, duration, ok := decodeBookingRequest(w, r)
	if !ok {
		return
	}

	b, err := h.svc.Book(r.Context(), accountID, courtID, start, duration)
	if err != nil {
		bookingError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"booking_id": b.ID,
		"court_id":   b.CourtID,
		"start_time": b.StartTime.UTC().Format(time.RFC3339),
		"end_time":   b.EndTime.UTC().Format(time.RFC3339),
		"duration":   b.Duration,
	})
}

func (h *BookingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDFromContext(w, r)
	if !ok {
		return
	}
	bookingID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		invalid(w, "invalid booking id")
		return
	}

	var req struct {
		StartTime string `json:"start_time"`
		Duration  int    `json:"duration"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		invalid(w, "invalid json body")
		return
	}
	start, err := time.Parse(time.RFC3339, strings.TrimSpace(req.StartTime))
	if err != nil {
		invalid(w, "invalid start_time")
		return
	}

	b, err := h.svc.Reschedule(r.Context(), accountID, bookingID, start, req.Duration)
	if err != nil {
		bookingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"booking_id": b.ID,
		"court_id":   b.CourtID,
		"start_time": b.StartTime.UTC().Format(time.RFC3339),
		"end_time":   b.EndTime.UTC().Format(time.RFC3339),
		"duration":   b.Duration,
	})
}

func (h *BookingsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDFromContext(w, r)
	if !ok {
		return
	}
	bookingID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		invalid(w, "invalid booking id")
		return
	}
	if err := h.svc.Cancel(r.Context(), accountID, bookingID); err != nil {
		bookingError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeBookingRequest(w http.ResponseWriter, r *http.Request) (uuid.UUID, time.Time, int, bool) {
	var req bookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		invalid(w, "invalid json body")
		return uuid.Nil, time.Time{}, 0, false
	}
	courtID, err := uuid.Parse(strings.TrimSpace(req.CourtID))
	if err != nil {
		invalid(w, "invalid court_id")
		return uuid.Nil, time.Time{}, 0, false
	}
	start, err := time.Parse(time.RFC3339, strings.TrimSpace(req.StartTime))
	if err != nil {
		invalid(w, "invalid start_time")
		return uuid.Nil, time.Time{}, 0, false
	}
	return courtID, start, req.Duration, true
}

func accountIDFromContext(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, kindInvalid, "unauthorized")
		return uuid.Nil, false
	}
	id, err := uuid.Parse(claims.Sub)
	if err != nil {
		writeError(w, http.StatusUnauthorized, kindInvalid, "unauthorized")
		return uuid.Nil, false
	}
	return id, true
}
