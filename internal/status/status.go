// Package status keeps the bounded log of human-readable status messages
// shown to operators ("2024-06-01 12:00:00 : Successfully uploaded 3 lines").
package status

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"git.home.luguber.info/inful/prnpusher/internal/logfields"
)

// TimeLayout formats message timestamps.
const TimeLayout = "2006-01-02 15:04:05"

// DefaultCapacity is the number of messages retained.
const DefaultCapacity = 100

// Message is one timestamped status line.
type Message struct {
	Time time.Time `json:"time"`
	Text string    `json:"text"`
}

// String renders "yyyy-MM-dd HH:mm:ss : text" in local time.
func (m Message) String() string {
	return m.Time.Local().Format(TimeLayout) + " : " + m.Text
}

// Sink accepts human-readable status messages.
type Sink interface {
	Add(text string)
}

// Store persists messages beyond the in-memory window.
type Store interface {
	Append(ctx context.Context, m Message) error
	Recent(ctx context.Context, limit int) ([]Message, error)
	Close() error
}

// Log is a bounded, subscribable Sink. Only the most recent capacity
// messages survive.
type Log struct {
	mu       sync.RWMutex
	capacity int
	messages []Message
	subs     map[int]chan Message
	nextSub  int
	store    Store
	now      func() time.Time
}

// Option configures a Log.
type Option func(*Log)

// WithStore persists every message and seeds the log from the store's most
// recent entries.
func WithStore(s Store) Option {
	return func(l *Log) { l.store = s }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Log) { l.now = now }
}

// NewLog returns a Log retaining capacity messages (DefaultCapacity when <= 0).
func NewLog(capacity int, opts ...Option) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	l := &Log{capacity: capacity, subs: make(map[int]chan Message), now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	if l.store != nil {
		recent, err := l.store.Recent(context.Background(), capacity)
		if err != nil {
			slog.Warn("Failed to restore status messages", logfields.Error(err))
		}
		l.messages = append(l.messages, recent...)
	}
	return l
}

// Add appends a message stamped with the current time.
func (l *Log) Add(text string) {
	m := Message{Time: l.now(), Text: text}

	l.mu.Lock()
	l.messages = append(l.messages, m)
	if over := len(l.messages) - l.capacity; over > 0 {
		l.messages = append(l.messages[:0:0], l.messages[over:]...)
	}
	for _, ch := range l.subs {
		select {
		case ch <- m:
		default:
		}
	}
	l.mu.Unlock()

	if l.store != nil {
		if err := l.store.Append(context.Background(), m); err != nil {
			slog.Warn("Failed to persist status message", logfields.Error(err))
		}
	}
}

// Messages returns a copy of the retained messages, oldest first.
func (l *Log) Messages() []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Message(nil), l.messages...)
}

// Strings returns the retained messages formatted for display.
func (l *Log) Strings() []string {
	msgs := l.Messages()
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.String()
	}
	return out
}

// Subscribe returns a channel receiving new messages. Slow subscribers miss
// messages rather than blocking Add. Call cancel to unsubscribe.
func (l *Log) Subscribe(buffer int) (<-chan Message, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Message, buffer)
	l.mu.Lock()
	id := l.nextSub
	l.nextSub++
	l.subs[id] = ch
	l.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.subs, id)
			l.mu.Unlock()
			close(ch)
		})
	}
}

// Close releases the backing store.
func (l *Log) Close() error {
	if l.store == nil {
		return nil
	}
	return l.store.Close()
}

// Discard is a Sink that drops everything.
type Discard struct{}

func (Discard) Add(string) {}
