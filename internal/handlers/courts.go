package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/courtsideapp/courtside/internal/availability"
	"github.com/courtsideapp/courtside/internal/model"
	"github.com/courtsideapp/courtside/internal/storage"
)

type CourtsHandler struct {
	courts    *storage.CourtRepository
	schedules *storage.AvailabilityRepository
}

func NewCourtsHandler(courts *storage.CourtRepository, schedules *storage.AvailabilityRepository) *CourtsHandler {
	return &CourtsHandler{courts: courts, schedules: schedules}
}

func (h *CourtsHandler) List(w http.ResponseWriter, r *http.Request) {
	courts, err := h.courts.List(r.Context())
	if err != nil {
		internal(w)
		return
	}
	out := make([]map[string]any, 0, len(courts))
	for _, c := range courts {
		out = append(out, map[string]any{
			"court_id": c.ID,
			"name":     c.Name,
			"location": c.Location,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *CourtsHandler) Detail(w http.ResponseWriter, r *http.Request) {
	courtID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		invalid(w, "invalid court id")
		return
	}
	court, err := h.courts.Get(r.Context(), courtID)
	if err != nil {
		if storage.IsNotFound(err) {
			notFound(w, "court not found")
			return
		}
		internal(w)
		return
	}

	day := time.Now().UTC()
	if raw := strings.TrimSpace(r.URL.Query().Get("date")); raw != "" {
		day, err = time.Parse("2006-01-02", raw)
		if err != nil {
			invalid(w, "date must be YYYY-MM-DD")
			return
		}
	}
	booked, err := h.courts.ListBookedRanges(r.Context(), courtID, day)
	if err != nil {
		internal(w)
		return
	}

	intervals := make([]map[string]string, 0, len(booked))
	for _, b := range booked {
		intervals = append(intervals, map[string]string{
			"start_time": b.Start.String(),
			"end_time":   b.End.String(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"court_id":   court.ID,
		"name":       court.Name,
		"location":   court.Location,
		"open_time":  court.Open.String(),
		"close_time": court.Close.String(),
		"booked":     intervals,
	})
}

// Slots runs the availability engine for one day: the court's schedule minus
// its bookings, with the optional buffer applied.
func (h *CourtsHandler) Slots(w http.ResponseWriter, r *http.Request) {
	courtID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		invalid(w, "invalid court id")
		return
	}
	court, err := h.courts.Get(r.Context(), courtID)
	if err != nil {
		if storage.IsNotFound(err) {
			notFound(w, "court not found")
			return
		}
		internal(w)
		return
	}

	raw := strings.TrimSpace(r.URL.Query().Get("date"))
	if raw == "" {
		invalid(w, "date is required (YYYY-MM-DD)")
		return
	}
	day, err := time.Parse("2006-01-02", raw)
	if err != nil {
		invalid(w, "date must be YYYY-MM-DD")
		return
	}

	bufferMinutes := 0
	if v := strings.TrimSpace(r.URL.Query().Get("buffer_minutes")); v != "" {
		bufferMinutes, err = strconv.Atoi(v)
		if err != nil || bufferMinutes < 0 {
			invalid(w, "buffer_minutes must be a non-negative integer")
			return
		}
	}
	timezone := strings.TrimSpace(r.URL.Query().Get("timezone"))
	if timezone == "" {
		timezone = "UTC"
	}

	schedule, err := h.schedules.ListForCourt(r.Context(), courtID)
	if err != nil {
		internal(w)
		return
	}
	windows := resolveWindows(day, schedule, court.Open, court.Close)

	booked, err := h.courts.ListBookedRanges(r.Context(), courtID, day)
	if err != nil {
		internal(w)
		return
	}

	slots, err := availability.ComputeAvailableSlots(day, booked, windows, timezone, bufferMinutes)
	if err != nil {
		if errors.Is(err, availability.ErrInvalidInput) {
			invalid(w, "invalid availability query")
			return
		}
		internal(w)
		return
	}
	writeJSON(w, http.StatusOK, slots)
}

// A court with no schedule rows is treated as open between its operating
// hours every day.
func resolveWindows(day time.Time, schedule []model.AvailabilitySlot, open, close availability.Clock) []availability.Range {
	if len(schedule) == 0 {
		return []availability.Range{{Start: open, End: close}}
	}
	slots := make([]availability.ScheduleSlot, 0, len(schedule))
	for _, s := range schedule {
		slots = append(slots, s.Schedule())
	}
	return availability.ResolveDayWindows(day, slots)
}
