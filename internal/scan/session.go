// Package scan owns a scanning session: the field registry, ledger cache and
// completion state shared by every per-file task, and the cycle that drives
// them.
package scan

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"git.home.luguber.info/inful/prnpusher/internal/completion"
	"git.home.luguber.info/inful/prnpusher/internal/config"
	"git.home.luguber.info/inful/prnpusher/internal/events"
	"git.home.luguber.info/inful/prnpusher/internal/fields"
	"git.home.luguber.info/inful/prnpusher/internal/ledger"
	"git.home.luguber.info/inful/prnpusher/internal/logfields"
	"git.home.luguber.info/inful/prnpusher/internal/metrics"
	"git.home.luguber.info/inful/prnpusher/internal/prnfile"
	"git.home.luguber.info/inful/prnpusher/internal/status"
	"git.home.luguber.info/inful/prnpusher/internal/upload"
)

const publishTimeout = time.Second

// Session is the state of one scanner instance. Independent sessions share nothing.
type Session struct {
	cfg atomic.Pointer[config.Config]

	registry  *fields.Registry
	cache     *ledger.Cache
	scheduler *completion.Scheduler
	ingestor  *prnfile.Ingestor
	uploader  *upload.Uploader
	sink      status.Sink
	bus       *events.Bus
	recorder  metrics.Recorder
	now       func() time.Time

	ingestOpts []prnfile.Option
	uploadOpts []upload.Option

	inflightMu sync.Mutex
	inflight   map[string]struct{}
}

// Option configures a Session.
type Option func(*Session)

// WithSink sets the status message sink.
func WithSink(sink status.Sink) Option {
	return func(s *Session) { s.sink = sink }
}

// WithBus publishes pipeline events on bus.
func WithBus(bus *events.Bus) Option {
	return func(s *Session) { s.bus = bus }
}

// WithRecorder sets the metrics recorder for the session and its components.
func WithRecorder(r metrics.Recorder) Option {
	return func(s *Session) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithIngestOptions passes options to the file ingestor.
func WithIngestOptions(opts ...prnfile.Option) Option {
	return func(s *Session) { s.ingestOpts = append(s.ingestOpts, opts...) }
}

// WithUploadOptions passes options to the uploader.
func WithUploadOptions(opts ...upload.Option) Option {
	return func(s *Session) { s.uploadOpts = append(s.uploadOpts, opts...) }
}

// WithClock overrides time.Now for cycle start times.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// NewSession builds a session for cfg.
func NewSession(cfg *config.Config, opts ...Option) *Session {
	if cfg == nil {
		cfg = config.Default()
	}
	s := &Session{
		registry: fields.NewRegistry(),
		sink:     status.Discard{},
		recorder: metrics.NoopRecorder{},
		now:      time.Now,
		inflight: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.cache = ledger.NewCache(cfg.Ledger.CorruptPolicy)
	s.scheduler = completion.New(cfg.Scan.GraceCycles)
	s.ingestor = prnfile.NewIngestor(s.registry, append([]prnfile.Option{
		prnfile.WithRecorder(s.recorder),
		prnfile.WithDiscoverHook(s.onDiscover),
	}, s.ingestOpts...)...)
	s.uploader = upload.New(append([]upload.Option{upload.WithRecorder(s.recorder)}, s.uploadOpts...)...)

	s.SetConfig(cfg)
	return s
}

// Config returns the current configuration snapshot.
func (s *Session) Config() *config.Config {
	return s.cfg.Load()
}

// SetConfig replaces the snapshot used by the next cycle and enables every
// name in fields.enabled that is not enabled yet. Fields missing from the
// list keep their flag.
//
// Setting a backend URL where there was none resets every completion
// counter: files exhausted while nothing could be sent are opened again.
func (s *Session) SetConfig(cfg *config.Config) {
	prev := s.cfg.Swap(cfg.Clone())
	for _, name := range cfg.Fields.Enabled {
		if !s.registry.Enabled(name) {
			s.SetField(name, true)
		}
	}
	if prev != nil && !upload.Configured(prev.Backend) && upload.Configured(cfg.Backend) {
		slog.Info("Backend URL configured, reconsidering every file", logfields.URL(cfg.Backend.URL))
		s.scheduler.ResetAll()
	}
}

// SetField enables or disables a field. Enabling a field resets every known
// file's completion counter so history for the field is reconsidered.
func (s *Session) SetField(name string, enabled bool) bool {
	changed := s.registry.SetEnabled(name, enabled)
	if enabled {
		s.scheduler.ResetAll()
	}
	if changed {
		slog.Info("Field updated", logfields.Field(name), slog.Bool("enabled", enabled))
		s.publish(events.FieldsChanged{Field: name, Enabled: enabled, ChangedAt: s.now()})
	}
	return changed
}

// Fields returns the registry snapshot in discovery order.
func (s *Session) Fields() []fields.Field {
	return s.registry.Snapshot()
}

// Registry exposes the field registry.
func (s *Session) Registry() *fields.Registry { return s.registry }

// Scheduler exposes the completion scheduler.
func (s *Session) Scheduler() *completion.Scheduler { return s.scheduler }

// CachedLedgers returns how many sidecar ledgers are held in memory.
func (s *Session) CachedLedgers() int { return s.cache.Len() }

func (s *Session) onDiscover(path string, added []string) {
	slog.Info("Discovered new fields", logfields.File(path), slog.Any("fields", added))
	s.publish(events.FieldsChanged{File: path, Added: added, ChangedAt: s.now()})
}

// acquire marks key in flight; it reports false when another task holds it.
func (s *Session) acquire(key string) bool {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	if _, busy := s.inflight[key]; busy {
		return false
	}
	s.inflight[key] = struct{}{}
	return true
}

func (s *Session) release(key string) {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	delete(s.inflight, key)
}

func (s *Session) publish(evt events.Event) {
	if s.bus == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := s.bus.Publish(ctx, evt); err != nil {
		slog.Debug("Event not delivered", slog.String("event", evt.EventName()), logfields.Error(err))
	}
}

// message writes to the status sink and the structured log.
func (s *Session) message(level slog.Level, text string, attrs ...slog.Attr) {
	s.sink.Add(text)
	slog.LogAttrs(context.Background(), level, text, attrs...)
}
