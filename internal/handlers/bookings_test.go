package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/courtsideapp/courtside/internal/auth"
	"github.com/courtsideapp/courtside/internal/availability"
	"github.com/courtsideapp/courtside/internal/booking"
	"github.com/courtsideapp/courtside/internal/model"
)

type stubStore struct {
	mu       sync.Mutex
	court    model.Court
	bookings map[uuid.UUID]model.Booking
}

func newStubStore() *stubStore {
	return &stubStore{
		court: model.Court{
			ID:    uuid.New(),
			Name:  "Court One",
			Open:  availability.NewClock(8, 0, 0),
			Close: availability.NewClock(22, 0, 0),
		},
		bookings: make(map[uuid.UUID]model.Booking),
	}
}

func (s *stubStore) GetCourt(_ context.Context, id uuid.UUID) (model.Court, error) {
	if id != s.court.ID {
		return model.Court{}, booking.ErrNotFound
	}
	return s.court, nil
}

func (s *stubStore) CreateBooking(_ context.Context, b *model.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.bookings {
		if booking.Conflicts(existing.StartTime, existing.EndTime, b.StartTime, b.EndTime) {
			return booking.ErrSlotTaken
		}
	}
	s.bookings[b.ID] = *b
	return nil
}

func (s *stubStore) UpdateBookingTimes(_ context.Context, b *model.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bookings[b.ID]; !ok {
		return booking.ErrNotFound
	}
	s.bookings[b.ID] = *b
	return nil
}

func (s *stubStore) GetBookingForAccount(_ context.Context, bookingID, accountID uuid.UUID) (model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[bookingID]
	if !ok || b.AccountID != accountID {
		return model.Booking{}, booking.ErrNotFound
	}
	return b, nil
}

func (s *stubStore) DeleteBooking(_ context.Context, bookingID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bookings[bookingID]; !ok {
		return booking.ErrNotFound
	}
	delete(s.bookings, bookingID)
	return nil
}

type noopNotifier struct{}

func (noopNotifier) BookingCreated(context.Context, model.Court, model.Booking) {}
func (noopNotifier) BookingChanged(context.Context, model.Court, model.Booking, model.Booking) {}
func (noopNotifier) BookingCancelled(context.Context, model.Court, model.Booking) {}

func authedRequest(method, target, body string, accountID uuid.UUID) *http.Request {
	r := httptest.NewRequest(method, target, strings.NewReader(body))
	claims := &auth.Claims{Sub: accountID.String(), Kind: auth.KindAccess}
	return r.WithContext(auth.ContextWithClaims(r.Context(), claims))
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var v map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("bad response body %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestCreateBooking(t *testing.T) {
	store := newStubStore()
	svc := booking.NewService(store, noopNotifier{}, slog.Default())
	h := NewBookingsHandler(svc)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/bookings", h.Create)

	// Two days out at 10:00 keeps the interval in the future and inside
	// operating hours regardless of wall clock.
	now := time.Now().UTC()
	start := time.Date(now.Year(), now.Month(), now.Day(), 10, 0, 0, 0, time.UTC).AddDate(0, 0, 2)
	body := fmt.Sprintf(`{"court_id":"%s","start_time":"%s","duration":2}`, store.court.ID, start.Format(time.RFC3339))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/bookings", body, uuid.New()))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	resp := decodeEnvelope(t, rec)
	if resp["duration"] != float64(2) {
		t.Errorf("unexpected duration: %v", resp["duration"])
	}

	// Same slot again: conflict envelope.
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/bookings", body, uuid.New()))
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	envelope := decodeEnvelope(t, rec)
	errObj, _ := envelope["error"].(map[string]any)
	if errObj["kind"] != "conflict" {
		t.Errorf("error kind = %v, want conflict", errObj["kind"])
	}
}

func TestCreateBookingUnknownCourt(t *testing.T) {
	store := newStubStore()
	svc := booking.NewService(store, noopNotifier{}, slog.Default())
	h := NewBookingsHandler(svc)

	start := time.Now().UTC().AddDate(0, 0, 2)
	start = time.Date(start.Year(), start.Month(), start.Day(), 10, 0, 0, 0, time.UTC)
	body := fmt.Sprintf(`{"court_id":"%s","start_time":"%s","duration":1}`, uuid.New(), start.Format(time.RFC3339))

	rec := httptest.NewRecorder()
	h.Create(rec, authedRequest(http.MethodPost, "/api/v1/bookings", body, uuid.New()))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	envelope := decodeEnvelope(t, rec)
	errObj, _ := envelope["error"].(map[string]any)
	if errObj["kind"] != "not_found" {
		t.Errorf("error kind = %v, want not_found", errObj["kind"])
	}
}

func TestDeleteBooking(t *testing.T) {
	store := newStubStore()
	svc := booking.NewService(store, noopNotifier{}, slog.Default())
	h := NewBookingsHandler(svc)

	accountID := uuid.New()
	start := time.Now().UTC().AddDate(0, 0, 2)
	start = time.Date(start.Year(), start.Month(), start.Day(), 10, 0, 0, 0, time.UTC)
	b, err := svc.Book(context.Background(), accountID, store.court.ID, start, 1)
	if err != nil {
		t.Fatalf("seed booking failed: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("DELETE /api/v1/bookings/{id}", h.Delete)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, authedRequest(http.MethodDelete, "/api/v1/bookings/"+b.ID.String(), "", accountID))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}

	// A stranger deleting the same booking gets not_found, not forbidden.
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, authedRequest(http.MethodDelete, "/api/v1/bookings/"+b.ID.String(), "", uuid.New()))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestUnauthenticatedRejected(t *testing.T) {
	store := newStubStore()
	svc := booking.NewService(store, noopNotifier{}, slog.Default())
	h := NewBookingsHandler(svc)

	rec := httptest.NewRecorder()
	h.Create(rec, httptest.NewRequest(http.MethodPost, "/api/v1/bookings", strings.NewReader("{}")))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}
