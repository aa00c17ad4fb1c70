package broadcast

import (
	"context"
	"sync"
)

// Subscriber receives raw payloads for the groups it has joined. Deliver must
// not block; slow subscribers drop messages rather than stall the fan-out.
type Subscriber interface {
	Deliver(payload []byte)
}

// Broadcaster fans a payload out to every subscriber of a group. Group names
// are opaque strings; court event groups use the form "court_<uuid>".
type Broadcaster interface {
	Join(group string, sub Subscriber)
	Leave(group string, sub Subscriber)
	Broadcast(ctx context.Context, group string, payload []byte) error
}

// Local is an in-process Broadcaster for single-instance deployments.
type Local struct {
	mu     sync.RWMutex
	groups map[string]map[Subscriber]struct{}
}

func NewLocal() *Local {
	return &Local{groups: make(map[string]map[Subscriber]struct{})}
}

func (l *Local) Join(group string, sub Subscriber) {
	l.mu.Lock()
	defer l.mu.Unlock()
	subs, ok := l.groups[group]
	if !ok {
		subs = make(map[Subscriber]struct{})
		l.groups[group] = subs
	}
	subs[sub] = struct{}{}
}

// Leave is idempotent: leaving a group the subscriber never joined is a no-op.
func (l *Local) Leave(group string, sub Subscriber) {
	l.mu.Lock()
	defer l.mu.Unlock()
	subs, ok := l.groups[group]
	if !ok {
		return
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(l.groups, group)
	}
}

func (l *Local) Broadcast(_ context.Context, group string, payload []byte) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for sub := range l.groups[group] {
		sub.Deliver(payload)
	}
	return nil
}
