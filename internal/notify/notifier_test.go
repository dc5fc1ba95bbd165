package notify

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/prnpusher/internal/events"
)

type published struct {
	subject string
	data    []byte
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
}

func (f *fakePublisher) Publish(_ context.Context, subject string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, published{subject, data})
	return nil
}

func (f *fakePublisher) Close() error { return nil }

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.msgs)
}

func TestNotifierForwardsUploadEvents(t *testing.T) {
	bus := events.NewBus()
	pub := &fakePublisher{}
	n := &Notifier{Publisher: pub, Subject: "prnpusher.uploads"}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	sub := Subscribe(bus)
	go func() {
		n.Run(ctx, sub)
		close(done)
	}()
	require.Equal(t, 1, bus.Subscribers(events.NameBatchUploaded))
	require.Equal(t, 1, bus.Subscribers(events.NameUploadFailed))
	require.Zero(t, bus.Subscribers(events.NameFileSkipped))

	require.NoError(t, bus.Publish(ctx, events.BatchUploaded{File: "run.prn", Lines: 2}))
	require.NoError(t, bus.Publish(ctx, events.UploadFailed{File: "run.prn", Error: "boom"}))
	require.NoError(t, bus.Publish(ctx, events.FileSkipped{File: "run.prn"}))

	require.Eventually(t, func() bool { return pub.count() == 2 }, time.Second, 5*time.Millisecond)

	pub.mu.Lock()
	subjects := map[string][]byte{}
	for _, m := range pub.msgs {
		subjects[m.subject] = m.data
	}
	pub.mu.Unlock()

	var up events.BatchUploaded
	require.NoError(t, json.Unmarshal(subjects["prnpusher.uploads"], &up))
	require.Equal(t, 2, up.Lines)
	require.Contains(t, string(subjects["prnpusher.uploads.failed"]), "boom")

	cancel()
	<-done
	require.Zero(t, bus.Subscribers(events.NameBatchUploaded), "run cancels its subscription")
}

func TestNotifierStopsWhenBusCloses(t *testing.T) {
	bus := events.NewBus()
	n := &Notifier{Publisher: &fakePublisher{}, Subject: "s"}
	done := make(chan struct{})
	sub := Subscribe(bus)
	go func() {
		n.Run(context.Background(), sub)
		close(done)
	}()
	bus.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("notifier did not stop")
	}
}

func TestNewNATSPublisherRequiresURL(t *testing.T) {
	_, err := NewNATSPublisher("", "s")
	require.Error(t, err)
}
