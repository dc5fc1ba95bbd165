// Package daemon runs a scanning session on a fixed interval and exposes it
// over the admin HTTP server.
package daemon

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	promcollect "github.com/prometheus/client_golang/prometheus/collectors"

	"git.home.luguber.info/inful/prnpusher/internal/completion"
	"git.home.luguber.info/inful/prnpusher/internal/config"
	"git.home.luguber.info/inful/prnpusher/internal/events"
	"git.home.luguber.info/inful/prnpusher/internal/fields"
	"git.home.luguber.info/inful/prnpusher/internal/foundation/errors"
	"git.home.luguber.info/inful/prnpusher/internal/logfields"
	"git.home.luguber.info/inful/prnpusher/internal/metrics"
	"git.home.luguber.info/inful/prnpusher/internal/notify"
	"git.home.luguber.info/inful/prnpusher/internal/scan"
	"git.home.luguber.info/inful/prnpusher/internal/status"
	"git.home.luguber.info/inful/prnpusher/internal/version"
)

const (
	defaultStopTimeout = time.Minute
	shutdownTimeout    = 30 * time.Second
)

// Daemon owns one scan session and everything that drives or observes it.
type Daemon struct {
	configPath string

	session  *scan.Session
	bus      *events.Bus
	messages *status.Log
	registry *prom.Registry
	activity activity

	// lifecycle serializes Start and Stop; mu guards the fields below it.
	lifecycle sync.Mutex
	mu        sync.Mutex
	scheduler *Scheduler
	watcher   *ConfigWatcher
	admin     *AdminServer
	publisher notify.Publisher
	workers   WorkerGroup
	// stopObservers ends the activity consumer, notifier and watcher.
	stopObservers context.CancelFunc

	running   atomic.Bool
	startTime time.Time

	newPublisher func(url, subject string) (notify.Publisher, error)
	sessionOpts  []scan.Option
	stopTimeout  time.Duration
}

// Option configures a Daemon.
type Option func(*Daemon)

// WithConfigPath enables reloading from path while running.
func WithConfigPath(path string) Option {
	return func(d *Daemon) { d.configPath = path }
}

// WithPublisherFactory replaces the NATS connection used for notifications.
func WithPublisherFactory(fn func(url, subject string) (notify.Publisher, error)) Option {
	return func(d *Daemon) { d.newPublisher = fn }
}

// WithSessionOptions passes options to the scan session.
func WithSessionOptions(opts ...scan.Option) Option {
	return func(d *Daemon) { d.sessionOpts = append(d.sessionOpts, opts...) }
}

// New builds a stopped daemon for cfg.
func New(cfg *config.Config, opts ...Option) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.NewError(errors.CategoryConfig, "configuration is required").Build()
	}
	d := &Daemon{
		bus:         events.NewBus(),
		registry:    prom.NewRegistry(),
		stopTimeout: defaultStopTimeout,
		newPublisher: func(url, subject string) (notify.Publisher, error) {
			pub, err := notify.NewNATSPublisher(url, subject)
			if err != nil {
				return nil, err
			}
			return pub, nil
		},
	}
	for _, opt := range opts {
		opt(d)
	}

	var logOpts []status.Option
	if cfg.Status.Store != "" {
		store, err := status.NewSQLiteStore(cfg.Status.Store)
		if err != nil {
			return nil, errors.WrapError(err, errors.CategoryDaemon, "failed to open status store").
				WithContext("path", cfg.Status.Store).
				Build()
		}
		logOpts = append(logOpts, status.WithStore(store))
	}
	d.messages = status.NewLog(cfg.Status.Capacity, logOpts...)

	d.registry.MustRegister(
		promcollect.NewGoCollector(),
		promcollect.NewProcessCollector(promcollect.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewPrometheusRecorder(d.registry)

	d.session = scan.NewSession(cfg, append([]scan.Option{
		scan.WithSink(d.messages),
		scan.WithBus(d.bus),
		scan.WithRecorder(recorder),
	}, d.sessionOpts...)...)
	return d, nil
}

// Start runs one cycle immediately, then one per scan interval. Calling
// Start on a running daemon is a no-op.
func (d *Daemon) Start(ctx context.Context) error {
	d.lifecycle.Lock()
	defer d.lifecycle.Unlock()
	if d.running.Load() {
		return nil
	}

	cfg := d.session.Config()
	// Stop never cancels cycleCtx: a cycle in progress drains, uploads included.
	cycleCtx := context.WithoutCancel(ctx)
	observeCtx, stopObservers := context.WithCancel(cycleCtx)
	d.workers.Reset()

	sched, err := NewScheduler(cfg.ScanInterval(), d.stopTimeout, func() { d.tick(cycleCtx) })
	if err != nil {
		stopObservers()
		return errors.WrapError(err, errors.CategoryDaemon, "failed to create scheduler").Build()
	}

	var admin *AdminServer
	if cfg.Admin.Listen != "" {
		admin = NewAdminServer(d, cfg.Admin.Listen)
		if err := admin.Start(); err != nil {
			stopObservers()
			_ = sched.Stop()
			return err
		}
	}

	activitySub := subscribeActivity(d.bus)
	if !d.workers.Go(func() { d.activity.run(observeCtx, activitySub) }) {
		activitySub.Cancel()
	}

	var publisher notify.Publisher
	if cfg.Notify.NATSURL != "" {
		publisher = d.startNotifier(observeCtx, cfg.Notify)
	}

	var watcher *ConfigWatcher
	if d.configPath != "" {
		w, err := NewConfigWatcher(d.configPath, d)
		if err == nil {
			if err = w.Start(observeCtx); err != nil {
				_ = w.Stop()
			}
		}
		if err != nil {
			slog.Warn("Configuration reload disabled", logfields.Error(err))
		} else {
			watcher = w
		}
	}

	d.mu.Lock()
	d.scheduler = sched
	d.admin = admin
	d.publisher = publisher
	d.watcher = watcher
	d.stopObservers = stopObservers
	d.startTime = time.Now()
	d.mu.Unlock()

	d.running.Store(true)
	sched.Start()

	slog.Info("Daemon started",
		logfields.Folder(cfg.Input.Folder),
		slog.Duration("interval", cfg.ScanInterval()),
		slog.String("version", version.Version))
	return nil
}

// startNotifier connects to NATS and forwards upload events. A failed
// connection only disables notifications.
func (d *Daemon) startNotifier(ctx context.Context, cfg config.NotifyConfig) notify.Publisher {
	pub, err := d.newPublisher(cfg.NATSURL, cfg.Subject)
	if err != nil {
		slog.Warn("Upload notifications disabled", logfields.URL(cfg.NATSURL), logfields.Error(err))
		return nil
	}
	n := &notify.Notifier{Publisher: pub, Subject: cfg.Subject}
	sub := notify.Subscribe(d.bus)
	if !d.workers.Go(func() { n.Run(ctx, sub) }) {
		sub.Cancel()
	}
	return pub
}

// Stop halts the timer and waits for a cycle in progress, bounded by the
// scheduler's stop timeout. The cycle's uploads are never cancelled; a cycle
// outliving the timeout finishes in the background.
func (d *Daemon) Stop(ctx context.Context) error {
	d.lifecycle.Lock()
	defer d.lifecycle.Unlock()
	if !d.running.Load() {
		return nil
	}
	d.running.Store(false)

	d.mu.Lock()
	sched, watcher, admin, publisher, stopObservers := d.scheduler, d.watcher, d.admin, d.publisher, d.stopObservers
	d.watcher, d.admin, d.publisher = nil, nil, nil
	d.mu.Unlock()

	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	keep(sched.Stop())
	if watcher != nil {
		keep(watcher.Stop())
	}
	if admin != nil {
		keep(admin.Stop(ctx))
	}
	stopObservers()
	keep(d.workers.StopAndWait(ctx))
	if publisher != nil {
		keep(publisher.Close())
	}

	slog.Info("Daemon stopped")
	if firstErr != nil {
		return errors.WrapError(firstErr, errors.CategoryDaemon, "daemon did not stop cleanly").Build()
	}
	return nil
}

// Close stops the daemon and releases the event bus and status store.
func (d *Daemon) Close(ctx context.Context) error {
	err := d.Stop(ctx)
	d.bus.Close()
	if cerr := d.messages.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// Run starts the daemon and blocks until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return d.Close(stopCtx)
}

// Running reports whether the timer is active.
func (d *Daemon) Running() bool { return d.running.Load() }

func (d *Daemon) tick(ctx context.Context) {
	report, err := d.session.RunCycle(ctx)
	if err != nil {
		slog.Error("Scan cycle failed", logfields.ScanID(report.ScanID), logfields.Error(err))
	}
}

// TriggerScan requests a cycle outside the regular interval.
func (d *Daemon) TriggerScan() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return errors.NewError(errors.CategoryDaemon, "daemon is not running").Build()
	}
	if err := d.scheduler.RunNow(); err != nil {
		return errors.WrapError(err, errors.CategoryDaemon, "failed to trigger scan").Build()
	}
	return nil
}

// ReloadConfig swaps the configuration used by the next cycle and
// reschedules the timer when the interval changed.
func (d *Daemon) ReloadConfig(_ context.Context, cfg *config.Config) error {
	if cfg == nil {
		return errors.NewError(errors.CategoryConfig, "configuration is required").Build()
	}
	prev := d.session.Config()
	if prev.Admin.Listen != cfg.Admin.Listen || prev.Notify != cfg.Notify {
		slog.Warn("Admin and notify changes take effect after a restart")
	}
	d.session.SetConfig(cfg)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.scheduler != nil {
		if err := d.scheduler.SetInterval(cfg.ScanInterval()); err != nil {
			return errors.WrapError(err, errors.CategoryDaemon, "failed to apply scan interval").Build()
		}
	}
	return nil
}

// Config returns the configuration snapshot in use.
func (d *Daemon) Config() *config.Config { return d.session.Config() }

// Session exposes the scan session.
func (d *Daemon) Session() *scan.Session { return d.session }

// Bus exposes the event bus.
func (d *Daemon) Bus() *events.Bus { return d.bus }

// Messages exposes the status message log.
func (d *Daemon) Messages() *status.Log { return d.messages }

// Registry exposes the Prometheus registry served on /metrics.
func (d *Daemon) Registry() *prom.Registry { return d.registry }

// SetField enables or disables a field on the session.
func (d *Daemon) SetField(name string, enabled bool) bool {
	return d.session.SetField(name, enabled)
}

// Fields lists every known field.
func (d *Daemon) Fields() []fields.Field { return d.session.Fields() }

// StatusResponse is the /api/status payload.
type StatusResponse struct {
	Running   bool      `json:"running"`
	Version   string    `json:"version"`
	StartedAt time.Time `json:"started_at,omitzero"`
	Uptime    string    `json:"uptime,omitempty"`
	Folder    string    `json:"folder"`
	Interval  string    `json:"interval"`
	NextScan  time.Time `json:"next_scan,omitzero"`
	Activity
	EnabledFields []string                    `json:"enabled_fields"`
	FieldsVersion uint64                      `json:"fields_version"`
	Completion    map[string]completion.State `json:"completion,omitempty"`
	CachedLedgers int                         `json:"cached_ledgers"`
	Messages      []string                    `json:"messages"`
}

// Status reports the daemon state.
func (d *Daemon) Status() StatusResponse {
	cfg := d.session.Config()
	resp := StatusResponse{
		Running:  d.running.Load(),
		Version:  version.Version,
		Folder:   cfg.Input.Folder,
		Interval: cfg.ScanInterval().String(),
		Activity: d.activity.snapshot(),

		EnabledFields: d.session.Registry().EnabledNames(),
		FieldsVersion: d.session.Registry().Version(),
		Completion:    d.session.Scheduler().Snapshot(),
		CachedLedgers: d.session.CachedLedgers(),
		Messages:      d.messages.Strings(),
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if resp.Running {
		resp.StartedAt = d.startTime
		resp.Uptime = time.Since(d.startTime).Round(time.Second).String()
		if d.scheduler != nil {
			resp.NextScan = d.scheduler.NextRun()
		}
	}
	return resp
}
