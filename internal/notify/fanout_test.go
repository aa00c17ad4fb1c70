package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/courtsideapp/courtside/internal/availability"
	"github.com/courtsideapp/courtside/internal/broadcast"
	"github.com/courtsideapp/courtside/internal/jobs"
	"github.com/courtsideapp/courtside/internal/model"
	"github.com/courtsideapp/courtside/internal/outbox"
)

type fakeQueue struct {
	inserted  []jobs.Job
	cancelled [][]string
}

func (q *fakeQueue) Insert(_ context.Context, job jobs.Job) error {
	q.inserted = append(q.inserted, job)
	return nil
}

func (q *fakeQueue) CancelForBooking(_ context.Context, bookingID string, kinds ...string) error {
	q.cancelled = append(q.cancelled, append([]string{bookingID}, kinds...))
	return nil
}

type fakeOutbox struct {
	events []outbox.Event
}

func (o *fakeOutbox) Insert(_ context.Context, evt outbox.Event) error {
	o.events = append(o.events, evt)
	return nil
}

type fakeAccounts struct {
	account model.Account
}

func (a *fakeAccounts) GetByID(_ context.Context, _ uuid.UUID) (model.Account, error) {
	return a.account, nil
}

type captureSubscriber struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (s *captureSubscriber) Deliver(payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads = append(s.payloads, payload)
}

func fixtures() (model.Court, model.Booking) {
	court := model.Court{
		ID:    uuid.New(),
		Name:  "Centre Court",
		Open:  availability.NewClock(8, 0, 0),
		Close: availability.NewClock(22, 0, 0),
	}
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	b := model.Booking{
		ID:        uuid.New(),
		CourtID:   court.ID,
		AccountID: uuid.New(),
		StartTime: start,
		EndTime:   start.Add(2 * time.Hour),
		Duration:  2,
	}
	return court, b
}

func newTestFanout(broadcaster broadcast.Broadcaster, queue *fakeQueue, events *fakeOutbox, now time.Time) *Fanout {
	accounts := &fakeAccounts{account: model.Account{Email: "player@example.com"}}
	f := NewFanout(broadcaster, queue, events, accounts, slog.Default())
	f.now = func() time.Time { return now }
	return f
}

func jobByKind(t *testing.T, list []jobs.Job, kind string) jobs.Job {
	t.Helper()
	for _, j := range list {
		if j.Kind == kind {
			return j
		}
	}
	t.Fatalf("no %s job in %v", kind, list)
	return jobs.Job{}
}

func TestBookingCreated(t *testing.T) {
	court, b := fixtures()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	local := broadcast.NewLocal()
	sub := &captureSubscriber{}
	local.Join(CourtGroup(court), sub)

	queue := &fakeQueue{}
	events := &fakeOutbox{}
	f := newTestFanout(local, queue, events, now)

	f.BookingCreated(context.Background(), court, b)

	if len(sub.payloads) != 1 {
		t.Fatalf("expected 1 broadcast, got %d", len(sub.payloads))
	}
	var msg map[string]map[string]string
	if err := json.Unmarshal(sub.payloads[0], &msg); err != nil {
		t.Fatalf("bad payload: %v", err)
	}
	booked, ok := msg["booked"]
	if !ok {
		t.Fatalf("payload missing booked key: %s", sub.payloads[0])
	}
	if booked["start_time"] != "2026-03-02T10:00:00Z" || booked["end_time"] != "2026-03-02T12:00:00Z" {
		t.Errorf("unexpected interval: %v", booked)
	}

	if len(queue.inserted) != 4 {
		t.Fatalf("expected 4 jobs, got %d", len(queue.inserted))
	}
	if got := jobByKind(t, queue.inserted, jobs.KindConfirmation); !got.RunAt.Equal(now) {
		t.Errorf("confirmation should run immediately, got %v", got.RunAt)
	}
	if got := jobByKind(t, queue.inserted, jobs.KindReminder); !got.RunAt.Equal(b.StartTime.Add(-12 * time.Hour)) {
		t.Errorf("reminder should run 12h before start, got %v", got.RunAt)
	}
	if got := jobByKind(t, queue.inserted, jobs.KindWorkerCleanup); !got.RunAt.Equal(now.Add(2 * time.Minute)) {
		t.Errorf("cleanup should run 2m after booking, got %v", got.RunAt)
	}
	if got := jobByKind(t, queue.inserted, jobs.KindConfirmation); got.Recipient != "player@example.com" {
		t.Errorf("confirmation recipient = %q", got.Recipient)
	}

	if len(events.events) != 1 || events.events[0].EventType != outbox.TopicCourtBooked {
		t.Errorf("expected one booked outbox event, got %v", events.events)
	}
}

func TestBookingChanged(t *testing.T) {
	court, old := fixtures()
	updated := old
	updated.StartTime = old.StartTime.Add(4 * time.Hour)
	updated.EndTime = old.EndTime.Add(4 * time.Hour)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	local := broadcast.NewLocal()
	sub := &captureSubscriber{}
	local.Join(CourtGroup(court), sub)

	queue := &fakeQueue{}
	events := &fakeOutbox{}
	f := newTestFanout(local, queue, events, now)

	f.BookingChanged(context.Background(), court, old, updated)

	// Old interval freed, new one taken, in that order.
	if len(sub.payloads) != 2 {
		t.Fatalf("expected 2 broadcasts, got %d", len(sub.payloads))
	}
	var first, second map[string]map[string]string
	_ = json.Unmarshal(sub.payloads[0], &first)
	_ = json.Unmarshal(sub.payloads[1], &second)
	if _, ok := first["cancelled"]; !ok {
		t.Errorf("first broadcast should be cancelled: %s", sub.payloads[0])
	}
	if _, ok := second["booked"]; !ok {
		t.Errorf("second broadcast should be booked: %s", sub.payloads[1])
	}

	if len(queue.cancelled) != 1 {
		t.Fatalf("expected the stale reminder to be cancelled, got %v", queue.cancelled)
	}
	if len(queue.inserted) != 3 {
		t.Fatalf("expected 3 jobs, got %d", len(queue.inserted))
	}
	if got := jobByKind(t, queue.inserted, jobs.KindReminder); !got.RunAt.Equal(updated.StartTime.Add(-12 * time.Hour)) {
		t.Errorf("new reminder should track the new start, got %v", got.RunAt)
	}
	jobByKind(t, queue.inserted, jobs.KindBookingChanged)
	if got := jobByKind(t, queue.inserted, jobs.KindWorkerCleanup); !got.RunAt.Equal(now.Add(2 * time.Minute)) {
		t.Errorf("cleanup should run 2m after the change, got %v", got.RunAt)
	}

	if len(events.events) != 2 {
		t.Fatalf("expected cancelled+booked outbox events, got %v", events.events)
	}
}

func TestBookingCancelled(t *testing.T) {
	court, b := fixtures()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	local := broadcast.NewLocal()
	sub := &captureSubscriber{}
	local.Join(CourtGroup(court), sub)

	queue := &fakeQueue{}
	events := &fakeOutbox{}
	f := newTestFanout(local, queue, events, now)

	f.BookingCancelled(context.Background(), court, b)

	if len(sub.payloads) != 1 {
		t.Fatalf("expected 1 broadcast, got %d", len(sub.payloads))
	}
	var msg map[string]map[string]string
	_ = json.Unmarshal(sub.payloads[0], &msg)
	if _, ok := msg["cancelled"]; !ok {
		t.Errorf("payload should be cancelled: %s", sub.payloads[0])
	}

	jobByKind(t, queue.inserted, jobs.KindCancellation)
	jobByKind(t, queue.inserted, jobs.KindAdminCancellation)
	if len(queue.cancelled) != 1 {
		t.Errorf("pending reminder and cleanup should be cancelled, got %v", queue.cancelled)
	}
	if len(events.events) != 1 || events.events[0].EventType != outbox.TopicCourtCancelled {
		t.Errorf("expected one cancelled outbox event, got %v", events.events)
	}
}
