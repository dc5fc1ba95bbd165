package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/prnpusher/internal/events"
	"git.home.luguber.info/inful/prnpusher/internal/logfields"
)

const publishTimeout = 5 * time.Second

// Notifier forwards BatchUploaded and UploadFailed events from the bus.
// Successful uploads go to Subject, failures to Subject + ".failed".
type Notifier struct {
	Publisher Publisher
	Subject   string
}

// Subscribe registers for the events a Notifier forwards. Subscribing
// before the first cycle starts ensures no upload is missed.
func Subscribe(bus *events.Bus) *events.Subscription {
	return bus.Subscribe(64, events.NameBatchUploaded, events.NameUploadFailed)
}

// Run forwards events from sub until ctx is done or sub is closed, then
// cancels sub.
func (n *Notifier) Run(ctx context.Context, sub *events.Subscription) {
	defer sub.Cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-sub.C:
			if !ok {
				return
			}
			switch evt.(type) {
			case events.BatchUploaded:
				n.forward(ctx, n.Subject, evt)
			case events.UploadFailed:
				n.forward(ctx, n.Subject+".failed", evt)
			}
		}
	}
}

func (n *Notifier) forward(ctx context.Context, subject string, evt events.Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		slog.Error("Failed to marshal notification", logfields.Error(err))
		return
	}
	pctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := n.Publisher.Publish(pctx, subject, data); err != nil {
		slog.Warn("Failed to publish notification", slog.String("subject", subject), logfields.Error(err))
		return
	}
	slog.Debug("Published notification", slog.String("subject", subject), slog.String("event", evt.EventName()))
}
