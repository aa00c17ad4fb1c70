package broadcast

import (
	"context"
	"sync"
	"testing"
)

type memSubscriber struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (s *memSubscriber) Deliver(payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads = append(s.payloads, payload)
}

func (s *memSubscriber) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.payloads)
}

func TestLocal_BroadcastReachesGroupMembersOnly(t *testing.T) {
	l := NewLocal()
	a := &memSubscriber{}
	b := &memSubscriber{}
	l.Join("court_1", a)
	l.Join("court_2", b)

	if err := l.Broadcast(context.Background(), "court_1", []byte(`{"booked":{}}`)); err != nil {
		t.Fatalf("broadcast failed: %v", err)
	}
	if a.count() != 1 {
		t.Errorf("group member should receive the payload, got %d", a.count())
	}
	if b.count() != 0 {
		t.Errorf("other group must not receive the payload, got %d", b.count())
	}
}

func TestLocal_LeaveStopsDelivery(t *testing.T) {
	l := NewLocal()
	a := &memSubscriber{}
	l.Join("court_1", a)
	l.Leave("court_1", a)

	if err := l.Broadcast(context.Background(), "court_1", []byte("x")); err != nil {
		t.Fatalf("broadcast failed: %v", err)
	}
	if a.count() != 0 {
		t.Errorf("left subscriber must not receive, got %d", a.count())
	}
}

func TestLocal_LeaveIsIdempotent(t *testing.T) {
	l := NewLocal()
	a := &memSubscriber{}

	// Leaving without ever joining must not panic or error.
	l.Leave("court_1", a)
	l.Join("court_1", a)
	l.Leave("court_1", a)
	l.Leave("court_1", a)

	if err := l.Broadcast(context.Background(), "court_1", []byte("x")); err != nil {
		t.Fatalf("broadcast failed: %v", err)
	}
	if a.count() != 0 {
		t.Errorf("expected no deliveries, got %d", a.count())
	}
}

func TestLocal_DoubleJoinDeliversOnce(t *testing.T) {
	l := NewLocal()
	a := &memSubscriber{}
	l.Join("court_1", a)
	l.Join("court_1", a)

	if err := l.Broadcast(context.Background(), "court_1", []byte("x")); err != nil {
		t.Fatalf("broadcast failed: %v", err)
	}
	if a.count() != 1 {
		t.Errorf("duplicate join must not duplicate delivery, got %d", a.count())
	}
}
