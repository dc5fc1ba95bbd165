package daemon

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/prnpusher/internal/events"
)

func TestActivityFoldsScanEvents(t *testing.T) {
	var a activity
	_, ok := a.lastScan()
	require.False(t, ok)

	a.apply(events.FileSkipped{ScanID: "s1", File: "a.prn", Reason: "complete"})
	a.apply(events.FileSkipped{ScanID: "s1", File: "b.prn", Reason: "complete"})
	a.apply(events.FileSkipped{ScanID: "s1", File: "c.prn", Reason: "in_flight"})
	a.apply(events.ScanCompleted{ScanID: "s1", Files: 3, Skipped: 2, InFlight: 1})

	snap := a.snapshot()
	require.Equal(t, uint64(1), snap.Scans)
	require.Equal(t, "s1", snap.LastScan.ScanID)
	require.Equal(t, map[string]int{"complete": 2, "in_flight": 1}, snap.SkippedByReason)

	a.apply(events.ScanCompleted{ScanID: "s2", Files: 3, Opened: 3})
	snap = a.snapshot()
	require.Equal(t, "s2", snap.LastScan.ScanID)
	require.Nil(t, snap.SkippedByReason, "skips belong to the scan that reported them")
}

func TestActivityKeepsRecentFieldChanges(t *testing.T) {
	var a activity
	for i := 0; i < recentFieldChanges+5; i++ {
		a.apply(events.FieldsChanged{Field: "F", Enabled: i%2 == 0, ChangedAt: time.Unix(int64(i), 0)})
	}
	snap := a.snapshot()
	require.Len(t, snap.FieldChanges, recentFieldChanges)
	require.Equal(t, time.Unix(5, 0), snap.FieldChanges[0].ChangedAt)
}

func TestActivityRunDrainsOnStop(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()
	var a activity
	sub := subscribeActivity(bus)

	require.NoError(t, bus.Publish(context.Background(), events.ScanCompleted{ScanID: "s1"}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	a.run(ctx, sub)

	last, ok := a.lastScan()
	require.True(t, ok, "buffered events are applied after stop")
	require.Equal(t, "s1", last.ScanID)
	require.Zero(t, bus.Subscribers(events.NameScanCompleted))
}

func TestActivityCountsMissedEvents(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()
	var a activity
	sub := bus.Subscribe(0, events.NameScanCompleted)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.Error(t, bus.Publish(ctx, events.ScanCompleted{ScanID: "lost"}))

	stop, halt := context.WithCancel(context.Background())
	halt()
	a.run(stop, sub)
	require.Equal(t, uint64(1), a.snapshot().MissedEvents)
}
