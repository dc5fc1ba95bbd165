// Package upload delivers batches of write lines to the backend and commits
// the batch's ledger only once delivery is confirmed.
package upload

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"git.home.luguber.info/inful/prnpusher/internal/config"
	"git.home.luguber.info/inful/prnpusher/internal/foundation/errors"
	"git.home.luguber.info/inful/prnpusher/internal/ledger"
	"git.home.luguber.info/inful/prnpusher/internal/lineproto"
	"git.home.luguber.info/inful/prnpusher/internal/logfields"
	"git.home.luguber.info/inful/prnpusher/internal/metrics"
	"git.home.luguber.info/inful/prnpusher/internal/retry"
)

const bodySnippetLimit = 512

// ErrNotConfigured is returned by Deliver when no backend URL is set.
var ErrNotConfigured = errors.NewError(errors.CategoryConfig, "backend url is not set").Build()

// Configured reports whether b names a write endpoint. Without one, batches
// are neither sent nor recorded.
func Configured(b config.BackendConfig) bool {
	return strings.TrimSpace(b.URL) != ""
}

// Request is one file's batch.
type Request struct {
	File    string
	Sidecar string
	Lines   []string
	// Ledger is the candidate ledger including every pair in Lines.
	Ledger *ledger.Ledger
}

// Result describes a delivered batch.
type Result struct {
	Lines      int
	DryRun     bool
	Committed  bool
	StatusCode int
	Attempts   int
	Duration   time.Duration
}

// Uploader posts batches to the backend write endpoint.
type Uploader struct {
	client   *http.Client
	recorder metrics.Recorder

	mu      sync.Mutex
	limiter *rate.Limiter
	limit   float64
}

// Option configures an Uploader.
type Option func(*Uploader)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(u *Uploader) { u.client = c }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(u *Uploader) {
		if r != nil {
			u.recorder = r
		}
	}
}

// New returns an Uploader.
func New(opts ...Option) *Uploader {
	u := &Uploader{
		client:   &http.Client{},
		recorder: metrics.NoopRecorder{},
		limiter:  rate.NewLimiter(rate.Inf, 1),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// WriteURL builds {url}?org=..&bucket=..&precision=.., keeping any query
// parameters already present in the base URL.
func WriteURL(b config.BackendConfig) (string, error) {
	u, err := url.Parse(strings.TrimSuffix(b.URL, "/"))
	if err != nil {
		return "", errors.WrapError(err, errors.CategoryConfig, "invalid backend url").Build()
	}
	if u.Scheme == "" || u.Host == "" {
		return "", errors.ConfigError("backend url must be absolute").WithContext("url", b.URL).Build()
	}
	q := u.Query()
	q.Set("org", b.Org)
	q.Set("bucket", b.Bucket)
	precision := string(b.Precision)
	if precision == "" {
		precision = string(config.PrecisionSeconds)
	}
	q.Set("precision", precision)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Deliver sends req and commits its ledger through cache on success.
//
// Without a URL nothing happens and ErrNotConfigured is returned. Without a
// token no request is made: the batch counts as delivered and the ledger is
// committed when DryRunLedger is persist, or left untouched when it is
// discard. On any failure the committed ledger is unchanged.
func (u *Uploader) Deliver(ctx context.Context, b config.BackendConfig, cache *ledger.Cache, req Request) (Result, error) {
	res := Result{Lines: len(req.Lines)}
	if len(req.Lines) == 0 {
		return res, nil
	}
	if !Configured(b) {
		return res, ErrNotConfigured
	}

	if b.Token == "" {
		res.DryRun = true
		slog.Info("Backend token is not set, skipping upload",
			logfields.File(req.File), logfields.Lines(len(req.Lines)))
		slog.Debug("Dry-run batch", logfields.File(req.File), slog.String("body", lineproto.Join(req.Lines)))
		if b.DryRunLedger == config.DryRunDiscard {
			return res, nil
		}
		if err := cache.Commit(req.Sidecar, req.Ledger); err != nil {
			return res, err
		}
		res.Committed = true
		return res, nil
	}

	start := time.Now()
	status, attempts, err := u.send(ctx, b, lineproto.Join(req.Lines))
	res.Duration = time.Since(start)
	res.StatusCode = status
	res.Attempts = attempts
	u.recorder.ObserveUploadDuration(res.Duration, err == nil)
	if err != nil {
		u.recorder.IncUploadFailure()
		return res, err
	}
	u.recorder.AddLinesUploaded(len(req.Lines))

	if err := cache.Commit(req.Sidecar, req.Ledger); err != nil {
		return res, err
	}
	res.Committed = true
	return res, nil
}

func (u *Uploader) send(ctx context.Context, b config.BackendConfig, body string) (int, int, error) {
	target, err := WriteURL(b)
	if err != nil {
		return 0, 0, err
	}
	u.setLimit(b.RateLimit)
	policy := retry.FromConfig(b.Retry)
	timeout, _ := time.ParseDuration(b.Timeout)
	if timeout <= 0 {
		timeout = config.DefaultBackendTimeout
	}

	var (
		status  int
		lastErr error
	)
	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if attempt > 0 {
			slog.Warn("Retrying upload", logfields.URL(target), logfields.Attempt(attempt), logfields.Error(lastErr))
			if err := policy.Wait(ctx, attempt); err != nil {
				return status, attempt, err
			}
		}
		if err := u.limiter.Wait(ctx); err != nil {
			return status, attempt, errors.WrapError(err, errors.CategoryNetwork, "upload rate limiter").Build()
		}
		status, lastErr = u.post(ctx, target, b, body, timeout)
		if lastErr == nil {
			return status, attempt + 1, nil
		}
		if !errors.IsRetryable(lastErr) {
			return status, attempt + 1, lastErr
		}
	}
	return status, policy.MaxRetries + 1, lastErr
}

func (u *Uploader) post(ctx context.Context, target string, b config.BackendConfig, body string, timeout time.Duration) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(body))
	if err != nil {
		return 0, errors.WrapError(err, errors.CategoryInternal, "build upload request").Build()
	}
	scheme := b.AuthScheme
	if scheme == "" {
		scheme = config.DefaultAuthScheme
	}
	req.Header.Set("Authorization", scheme+" "+b.Token)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")

	resp, err := u.client.Do(req)
	if err != nil {
		return 0, errors.WrapError(err, errors.CategoryNetwork, "upload request failed").
			WithContext("url", redact(target)).Retryable().Build()
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, bodySnippetLimit))
	eb := errors.BackendError(fmt.Sprintf("backend returned %s: %s", resp.Status, strings.TrimSpace(string(snippet)))).
		WithContext("status_code", resp.StatusCode).
		WithContext("url", redact(target))
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		eb = eb.RateLimit()
	case resp.StatusCode >= 500:
		eb = eb.Retryable()
	}
	return resp.StatusCode, eb.Build()
}

func (u *Uploader) setLimit(perSecond float64) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if perSecond == u.limit {
		return
	}
	u.limit = perSecond
	if perSecond <= 0 {
		u.limiter.SetLimit(rate.Inf)
		return
	}
	u.limiter.SetLimit(rate.Limit(perSecond))
}

// redact drops the query string.
func redact(target string) string {
	if i := strings.IndexByte(target, '?'); i >= 0 {
		return target[:i]
	}
	return target
}
