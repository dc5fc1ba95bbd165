package events

import (
	"context"
	"sync"
	"sync/atomic"

	ferrors "git.home.luguber.info/inful/prnpusher/internal/foundation/errors"
)

// Bus carries scan pipeline events from a session to its observers: the
// daemon's activity summary and the NATS notifier. Nothing is durable.
//
// Publish waits for every interested subscriber to accept the event, bounded
// by ctx. A subscriber that is still full when ctx ends misses that event and
// its Dropped count grows; the others are unaffected.
type Bus struct {
	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64
	closed bool
}

// NewBus returns an open bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[uint64]*Subscription)}
}

// Subscription receives the events it registered for, in publish order.
type Subscription struct {
	// C is closed by Cancel and by Bus.Close.
	C <-chan Event

	bus     *Bus
	id      uint64
	ch      chan Event
	names   map[string]struct{}
	done    chan struct{}
	stop    sync.Once
	dropped atomic.Uint64
}

// Subscribe registers for events whose EventName is one of names, or for
// every event when names is empty. Subscribing to a closed bus returns a
// subscription whose channel is already closed.
func (b *Bus) Subscribe(buffer int, names ...string) *Subscription {
	if buffer < 0 {
		buffer = 0
	}
	s := &Subscription{bus: b, ch: make(chan Event, buffer), done: make(chan struct{})}
	s.C = s.ch
	if len(names) > 0 {
		s.names = make(map[string]struct{}, len(names))
		for _, n := range names {
			s.names[n] = struct{}{}
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		s.halt()
		close(s.ch)
		return s
	}
	b.nextID++
	s.id = b.nextID
	b.subs[s.id] = s
	return s
}

// Cancel detaches s and closes C. Safe to call more than once.
func (s *Subscription) Cancel() {
	s.halt()
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	s.bus.detach(s)
}

// Dropped returns how many events this subscriber missed.
func (s *Subscription) Dropped() uint64 { return s.dropped.Load() }

func (s *Subscription) wants(name string) bool {
	if s.names == nil {
		return true
	}
	_, ok := s.names[name]
	return ok
}

// halt releases publishers blocked on s before the bus lock is taken.
func (s *Subscription) halt() {
	s.stop.Do(func() { close(s.done) })
}

// detach requires b.mu held for writing.
func (b *Bus) detach(s *Subscription) {
	if _, ok := b.subs[s.id]; ok {
		delete(b.subs, s.id)
		close(s.ch)
	}
}

// Publish delivers evt to every subscriber registered for its name.
func (b *Bus) Publish(ctx context.Context, evt Event) error {
	if evt == nil {
		return ferrors.ValidationError("event is nil").Build()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ferrors.DaemonError("event bus is closed").Build()
	}

	name := evt.EventName()
	dropped := 0
	for _, s := range b.subs {
		if !s.wants(name) {
			continue
		}
		select {
		case s.ch <- evt:
		case <-s.done:
		case <-ctx.Done():
			s.dropped.Add(1)
			dropped++
		}
	}
	if dropped > 0 {
		return ferrors.DaemonError("event not accepted by every subscriber").
			WithContext("event", name).
			WithContext("dropped", dropped).
			Build()
	}
	return nil
}

// Subscribers counts the subscriptions that would receive an event named name.
func (b *Bus) Subscribers(name string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, s := range b.subs {
		if s.wants(name) {
			n++
		}
	}
	return n
}

// Close cancels every subscription and rejects later publishes.
func (b *Bus) Close() {
	b.mu.RLock()
	for _, s := range b.subs {
		s.halt()
	}
	b.mu.RUnlock()

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, s := range b.subs {
		b.detach(s)
	}
}
