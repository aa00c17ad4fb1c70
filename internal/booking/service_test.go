package booking

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/courtsideapp/courtside/internal/availability"
	"github.com/courtsideapp/courtside/internal/model"
)

// memStore honors the Store contract in memory: the overlap check and the
// write happen under one lock, so it serializes bookings the same way the
// Postgres implementation does per court.
type memStore struct {
	mu       sync.Mutex
	courts   map[uuid.UUID]model.Court
	bookings map[uuid.UUID]model.Booking
}

func newMemStore(courts ...model.Court) *memStore {
	s := &memStore{
		courts:   make(map[uuid.UUID]model.Court),
		bookings: make(map[uuid.UUID]model.Booking),
	}
	for _, c := range courts {
		s.courts[c.ID] = c
	}
	return s
}

func (s *memStore) GetCourt(_ context.Context, id uuid.UUID) (model.Court, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.courts[id]
	if !ok {
		return model.Court{}, ErrNotFound
	}
	return c, nil
}

func (s *memStore) CreateBooking(_ context.Context, b *model.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.bookings {
		if existing.CourtID != b.CourtID {
			continue
		}
		if Conflicts(existing.StartTime, existing.EndTime, b.StartTime, b.EndTime) {
			return ErrSlotTaken
		}
	}
	b.CreatedAt = time.Now()
	s.bookings[b.ID] = *b
	return nil
}

func (s *memStore) UpdateBookingTimes(_ context.Context, b *model.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bookings[b.ID]; !ok {
		return ErrNotFound
	}
	for id, existing := range s.bookings {
		if id == b.ID || existing.CourtID != b.CourtID {
			continue
		}
		if Conflicts(existing.StartTime, existing.EndTime, b.StartTime, b.EndTime) {
			return ErrSlotTaken
		}
	}
	s.bookings[b.ID] = *b
	return nil
}

func (s *memStore) GetBookingForAccount(_ context.Context, bookingID, accountID uuid.UUID) (model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[bookingID]
	if !ok || b.AccountID != accountID {
		return model.Booking{}, ErrNotFound
	}
	return b, nil
}

func (s *memStore) DeleteBooking(_ context.Context, bookingID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bookings[bookingID]; !ok {
		return ErrNotFound
	}
	delete(s.bookings, bookingID)
	return nil
}

type recordingNotifier struct {
	mu        sync.Mutex
	created   []model.Booking
	changed   []model.Booking
	cancelled []model.Booking
}

func (n *recordingNotifier) BookingCreated(_ context.Context, _ model.Court, b model.Booking) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.created = append(n.created, b)
}

func (n *recordingNotifier) BookingChanged(_ context.Context, _ model.Court, _, updated model.Booking) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changed = append(n.changed, updated)
}

func (n *recordingNotifier) BookingCancelled(_ context.Context, _ model.Court, b model.Booking) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cancelled = append(n.cancelled, b)
}

func testCourt() model.Court {
	return model.Court{
		ID:    uuid.New(),
		Name:  "Centre Court",
		Open:  availability.NewClock(8, 0, 0),
		Close: availability.NewClock(16, 0, 0),
	}
}

func newTestService(store Store, notifier Notifier, now time.Time) *Service {
	svc := NewService(store, notifier, slog.Default())
	svc.now = func() time.Time { return now }
	return svc
}

func TestConflicts_HalfOpen(t *testing.T) {
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	existingStart := base
	existingEnd := base.Add(2 * time.Hour) // 10:00-12:00

	// Touching at a boundary is not a conflict, in either direction.
	if Conflicts(existingStart, existingEnd, existingEnd, existingEnd.Add(time.Hour)) {
		t.Error("booking starting at existing end must not conflict")
	}
	if Conflicts(existingStart, existingEnd, existingStart.Add(-time.Hour), existingStart) {
		t.Error("booking ending at existing start must not conflict")
	}
	if !Conflicts(existingStart, existingEnd, existingStart.Add(30*time.Minute), existingEnd.Add(30*time.Minute)) {
		t.Error("overlapping booking must conflict")
	}
	if !Conflicts(existingStart, existingEnd, existingStart, existingEnd) {
		t.Error("identical interval must conflict")
	}
}

func TestBook_Scenarios(t *testing.T) {
	court := testCourt()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	account := uuid.New()

	store := newMemStore(court)
	notifier := &recordingNotifier{}
	svc := newTestService(store, notifier, now)

	ctx := context.Background()
	if _, err := svc.Book(ctx, account, court.ID, day.Add(10*time.Hour), 2); err != nil {
		t.Fatalf("seed booking failed: %v", err)
	}

	// Touches the existing 10:00-12:00 booking: accepted.
	if _, err := svc.Book(ctx, account, court.ID, day.Add(12*time.Hour), 1); err != nil {
		t.Errorf("12:00-13:00 should be accepted, got %v", err)
	}

	// Overlaps 10:00-12:00: rejected.
	if _, err := svc.Book(ctx, account, court.ID, day.Add(9*time.Hour+30*time.Minute), 1); !errors.Is(err, ErrSlotTaken) {
		t.Errorf("09:30-10:30 should be ErrSlotTaken, got %v", err)
	}

	// Starts before opening: rejected.
	if _, err := svc.Book(ctx, account, court.ID, day.Add(7*time.Hour), 2); !errors.Is(err, ErrOutsideHours) {
		t.Errorf("07:00-09:00 should be ErrOutsideHours, got %v", err)
	}

	// Starting exactly at opening time is also rejected.
	if _, err := svc.Book(ctx, account, court.ID, day.Add(8*time.Hour), 1); !errors.Is(err, ErrOutsideHours) {
		t.Errorf("08:00-09:00 should be ErrOutsideHours, got %v", err)
	}

	// In the past: rejected.
	if _, err := svc.Book(ctx, account, court.ID, now.Add(-time.Hour), 1); !errors.Is(err, ErrInPast) {
		t.Errorf("past booking should be ErrInPast, got %v", err)
	}

	if len(notifier.created) != 2 {
		t.Errorf("expected 2 created notifications, got %d", len(notifier.created))
	}
}

func TestBook_ConcurrentSameSlot(t *testing.T) {
	court := testCourt()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	start := time.Date(2026, 3, 2, 13, 0, 0, 0, time.UTC)

	store := newMemStore(court)
	svc := newTestService(store, &recordingNotifier{}, now)

	const attempts = 8
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Book(context.Background(), uuid.New(), court.ID, start, 1)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
		} else if !errors.Is(err, ErrSlotTaken) {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("exactly one concurrent booking must succeed, got %d", succeeded)
	}
}

func TestReschedule(t *testing.T) {
	court := testCourt()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	account := uuid.New()

	store := newMemStore(court)
	notifier := &recordingNotifier{}
	svc := newTestService(store, notifier, now)

	ctx := context.Background()
	b, err := svc.Book(ctx, account, court.ID, day.Add(10*time.Hour), 1)
	if err != nil {
		t.Fatalf("book failed: %v", err)
	}

	updated, err := svc.Reschedule(ctx, account, b.ID, day.Add(14*time.Hour), 1)
	if err != nil {
		t.Fatalf("reschedule failed: %v", err)
	}
	if !updated.StartTime.Equal(day.Add(14 * time.Hour)) {
		t.Fatalf("unexpected start after reschedule: %v", updated.StartTime)
	}
	if !updated.EndTime.Equal(updated.StartTime.Add(time.Hour)) {
		t.Fatalf("end must be start plus duration, got %v", updated.EndTime)
	}
	if len(notifier.changed) != 1 {
		t.Fatalf("expected 1 changed notification, got %d", len(notifier.changed))
	}

	// A stranger cannot reschedule someone else's booking.
	if _, err := svc.Reschedule(ctx, uuid.New(), b.ID, day.Add(15*time.Hour), 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for foreign booking, got %v", err)
	}
}

func TestCancel(t *testing.T) {
	court := testCourt()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	account := uuid.New()

	store := newMemStore(court)
	notifier := &recordingNotifier{}
	svc := newTestService(store, notifier, now)

	ctx := context.Background()
	b, err := svc.Book(ctx, account, court.ID, day.Add(10*time.Hour), 2)
	if err != nil {
		t.Fatalf("book failed: %v", err)
	}

	if err := svc.Cancel(ctx, account, b.ID); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if len(notifier.cancelled) != 1 {
		t.Fatalf("expected 1 cancelled notification, got %d", len(notifier.cancelled))
	}

	// The slot frees up again.
	if _, err := svc.Book(ctx, account, court.ID, day.Add(10*time.Hour), 2); err != nil {
		t.Errorf("rebooking the freed slot should succeed, got %v", err)
	}

	if err := svc.Cancel(ctx, account, b.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("cancelling twice should be ErrNotFound, got %v", err)
	}
}
