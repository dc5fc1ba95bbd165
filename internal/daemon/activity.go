package daemon

import (
	"context"
	"maps"
	"slices"
	"sync"

	"git.home.luguber.info/inful/prnpusher/internal/events"
)

const (
	activityBuffer     = 256
	recentFieldChanges = 20
)

// Activity is the scan summary built from bus events.
type Activity struct {
	LastScan *events.ScanCompleted `json:"last_scan,omitempty"`
	// SkippedByReason counts the FileSkipped events of LastScan.
	SkippedByReason map[string]int        `json:"skipped_by_reason,omitempty"`
	FieldChanges    []events.FieldsChanged `json:"field_changes,omitempty"`
	Scans           uint64                 `json:"scans"`
	// MissedEvents counts events the summary never saw because it fell behind.
	MissedEvents uint64 `json:"missed_events"`
}

// activity folds ScanCompleted, FileSkipped and FieldsChanged events into an
// Activity. It outlives Start/Stop so the summary survives a restart.
type activity struct {
	mu          sync.RWMutex
	last        *events.ScanCompleted
	lastSkipped map[string]int
	pendingScan string
	pending     map[string]int
	changes     []events.FieldsChanged
	scans       uint64
	sub         *events.Subscription
	missed      uint64
}

func subscribeActivity(bus *events.Bus) *events.Subscription {
	return bus.Subscribe(activityBuffer, events.NameScanCompleted, events.NameFileSkipped, events.NameFieldsChanged)
}

// run applies events from sub until ctx is done, then applies whatever is
// already buffered and cancels sub.
func (a *activity) run(ctx context.Context, sub *events.Subscription) {
	a.mu.Lock()
	a.sub = sub
	a.mu.Unlock()
	defer func() {
		sub.Cancel()
		a.mu.Lock()
		a.missed += sub.Dropped()
		if a.sub == sub {
			a.sub = nil
		}
		a.mu.Unlock()
	}()
	for {
		select {
		case evt, ok := <-sub.C:
			if !ok {
				return
			}
			a.apply(evt)
		case <-ctx.Done():
			for {
				select {
				case evt, ok := <-sub.C:
					if !ok {
						return
					}
					a.apply(evt)
				default:
					return
				}
			}
		}
	}
}

func (a *activity) apply(evt events.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch e := evt.(type) {
	case events.FileSkipped:
		if e.ScanID != a.pendingScan {
			a.pendingScan = e.ScanID
			a.pending = make(map[string]int)
		}
		a.pending[e.Reason]++
	case events.ScanCompleted:
		a.last = &e
		a.lastSkipped = nil
		if e.ScanID == a.pendingScan {
			a.lastSkipped = a.pending
		}
		a.pendingScan, a.pending = "", nil
		a.scans++
	case events.FieldsChanged:
		a.changes = append(a.changes, e)
		if over := len(a.changes) - recentFieldChanges; over > 0 {
			a.changes = slices.Clone(a.changes[over:])
		}
	}
}

// lastScan returns the most recent ScanCompleted, if any.
func (a *activity) lastScan() (events.ScanCompleted, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.last == nil {
		return events.ScanCompleted{}, false
	}
	return *a.last, true
}

func (a *activity) snapshot() Activity {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := Activity{
		SkippedByReason: maps.Clone(a.lastSkipped),
		FieldChanges:    slices.Clone(a.changes),
		Scans:           a.scans,
		MissedEvents:    a.missed,
	}
	if a.sub != nil {
		out.MissedEvents += a.sub.Dropped()
	}
	if a.last != nil {
		last := *a.last
		out.LastScan = &last
	}
	return out
}
