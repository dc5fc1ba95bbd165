package scan

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"

	"git.home.luguber.info/inful/prnpusher/internal/completion"
	"git.home.luguber.info/inful/prnpusher/internal/config"
	"git.home.luguber.info/inful/prnpusher/internal/events"
	"git.home.luguber.info/inful/prnpusher/internal/fields"
	"git.home.luguber.info/inful/prnpusher/internal/foundation/errors"
	"git.home.luguber.info/inful/prnpusher/internal/ledger"
	"git.home.luguber.info/inful/prnpusher/internal/logfields"
	"git.home.luguber.info/inful/prnpusher/internal/prnfile"
	"git.home.luguber.info/inful/prnpusher/internal/upload"
)

// Report summarizes one cycle.
type Report struct {
	ScanID   string        `json:"scan_id"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	// Idle is set when the folder was unset or missing and nothing ran.
	Idle     bool `json:"idle"`
	Files    int  `json:"files"`
	Opened   int  `json:"opened"`
	Skipped  int  `json:"skipped"`
	InFlight int  `json:"in_flight"`
	Uploaded int  `json:"uploaded"`
	Failed   int  `json:"failed"`
	Unsent   int  `json:"unsent"` // new lines held back: no backend URL
	Lines    int  `json:"lines"`
}

// File is one enumerated PRN file.
type File struct {
	Path    string
	Key     string // slash-separated path relative to the scan folder
	ModTime time.Time
}

// RunCycle runs one scan over the configured folder and returns once every
// dispatched file task finished. A missing or unset folder is not an error.
func (s *Session) RunCycle(ctx context.Context) (Report, error) {
	cfg := s.Config()
	start := s.now()
	scanID := uuid.NewString()
	report := Report{ScanID: scanID, Started: start}
	log := slog.With(logfields.ScanID(scanID))

	folder := cfg.Input.Folder
	if !folderExists(folder) {
		report.Idle = true
		log.Debug("Scan folder unavailable, skipping cycle", logfields.Folder(folder))
		return report, nil
	}

	files, err := Enumerate(folder, cfg.Input.Pattern)
	if err != nil {
		s.message(slog.LevelWarn, fmt.Sprintf("Error scanning folder: %v", err), logfields.Folder(folder))
		return report, errors.WrapError(err, errors.CategoryFileSystem, "enumerate scan folder").
			WithContext("folder", folder).Retryable().Build()
	}
	report.Files = len(files)

	concurrency := cfg.Scan.Concurrency
	if concurrency <= 0 {
		concurrency = config.DefaultConcurrency
	}
	sem := make(chan struct{}, concurrency)
	opts := prnfile.OptionsFromConfig(cfg)

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	tally := func(fn func(r *Report)) {
		mu.Lock()
		fn(&report)
		mu.Unlock()
	}

dispatch:
	for _, f := range files {
		if !s.acquire(f.Key) {
			tally(func(r *Report) { r.InFlight++ })
			s.publish(events.FileSkipped{ScanID: scanID, File: f.Key, Reason: "in_flight"})
			log.Debug("File already in flight, skipping", logfields.File(f.Key))
			continue
		}
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			s.release(f.Key)
			break dispatch
		}
		wg.Add(1)
		go func(f File) {
			defer wg.Done()
			defer func() { <-sem }()
			defer s.release(f.Key)
			out := s.processFile(ctx, cfg, opts, scanID, start, f)
			tally(out.apply)
		}(f)
	}
	wg.Wait()

	keep := make(map[string]struct{}, len(files))
	for _, f := range files {
		keep[f.Key] = struct{}{}
	}
	if removed := s.scheduler.Prune(keep); len(removed) > 0 {
		for _, key := range removed {
			s.cache.Forget(ledger.SidecarPath(filepath.Join(folder, filepath.FromSlash(key))))
		}
		log.Debug("Pruned state of removed files", slog.Int("count", len(removed)))
	}

	report.Duration = s.now().Sub(start)
	s.recorder.ObserveScanDuration(report.Duration)
	s.publish(events.ScanCompleted{
		ScanID: scanID, Started: start, Duration: report.Duration,
		Files: report.Files, Opened: report.Opened, Skipped: report.Skipped, InFlight: report.InFlight,
		Uploaded: report.Uploaded, Failed: report.Failed, Unsent: report.Unsent, Lines: report.Lines,
	})
	log.Debug("Scan cycle complete",
		slog.Int("files", report.Files), slog.Int("opened", report.Opened),
		slog.Int("uploaded", report.Uploaded), slog.Int("failed", report.Failed),
		logfields.Duration(report.Duration))
	return report, ctx.Err()
}

type outcome struct {
	skipped  bool
	opened   bool
	uploaded bool
	failed   bool
	unsent   bool
	lines    int
}

func (o outcome) apply(r *Report) {
	if o.skipped {
		r.Skipped++
	}
	if o.opened {
		r.Opened++
	}
	if o.uploaded {
		r.Uploaded++
		r.Lines += o.lines
	}
	if o.unsent {
		r.Unsent++
	}
	if o.failed {
		r.Failed++
	}
}

// processFile runs the gate, ingest and upload steps for one file. The caller
// holds f.Key in flight.
func (s *Session) processFile(ctx context.Context, cfg *config.Config, opts prnfile.Options, scanID string, start time.Time, f File) (out outcome) {
	defer s.scheduler.Complete(f.Key, start)

	decision, counter := s.scheduler.Check(f.Key, f.ModTime)
	if decision == completion.Skip {
		s.recorder.IncFilesSkipped()
		s.publish(events.FileSkipped{ScanID: scanID, File: f.Key, Reason: "complete"})
		return outcome{skipped: true}
	}

	sidecar := ledger.SidecarPath(f.Path)
	committed, err := s.cache.Get(sidecar)
	if err != nil {
		s.message(slog.LevelWarn, fmt.Sprintf("Error reading ledger for %s: %v", f.Key, err),
			logfields.File(f.Key), logfields.Error(err))
		return outcome{failed: true}
	}

	batch, err := s.ingestor.Ingest(ctx, f.Path, opts, committed)
	if err != nil {
		s.message(slog.LevelWarn, fmt.Sprintf("Error reading PRN file %s: %v", f.Key, err),
			logfields.File(f.Key), logfields.Error(err))
		return outcome{opened: true, failed: true}
	}
	s.recorder.IncFilesScanned()
	out.opened = true
	if batch.Empty() {
		slog.Debug("No new data", logfields.File(f.Key), logfields.CompletionState(counter))
		return out
	}

	if !upload.Configured(cfg.Backend) {
		slog.Debug("Backend URL is not set, batch not sent",
			logfields.File(f.Key), logfields.Lines(len(batch.Lines)))
		out.unsent = true
		return out
	}

	s.scheduler.Produced(f.Key)
	res, err := s.uploader.Deliver(ctx, cfg.Backend, s.cache, upload.Request{
		File:    f.Key,
		Sidecar: sidecar,
		Lines:   batch.Lines,
		Ledger:  batch.Ledger,
	})
	if err != nil {
		out.failed = true
		s.message(slog.LevelWarn, fmt.Sprintf("Error uploading to backend: %v", err),
			logfields.File(f.Key), logfields.Lines(len(batch.Lines)), logfields.Error(err))
		s.publish(events.UploadFailed{
			ScanID: scanID, File: f.Key, Lines: len(batch.Lines), Error: err.Error(), FailedAt: s.now(),
		})
		return out
	}

	if res.DryRun {
		s.message(slog.LevelInfo, "Backend token is not set. Skipping upload.", logfields.File(f.Key))
	}
	out.uploaded = true
	out.lines = len(batch.Lines)
	s.message(slog.LevelInfo,
		fmt.Sprintf("Successfully uploaded %d lines of data from %s.", len(batch.Lines), filepath.Base(f.Path)),
		logfields.File(f.Key), logfields.Lines(len(batch.Lines)), logfields.Duration(res.Duration))
	s.publish(events.BatchUploaded{
		ScanID: scanID, File: f.Key, Lines: len(batch.Lines), Fields: batch.Fields,
		DryRun: res.DryRun, UploadedAt: s.now(),
	})
	return out
}

// DiscoverFields reads the header row of every matching file and registers
// their field names without touching ledgers or completion state.
func (s *Session) DiscoverFields(ctx context.Context) ([]fields.Field, error) {
	cfg := s.Config()
	if !folderExists(cfg.Input.Folder) {
		return s.Fields(), nil
	}
	files, err := Enumerate(cfg.Input.Folder, cfg.Input.Pattern)
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, err := s.ingestor.Header(f.Path, cfg.Input.Encoding); err != nil {
			slog.Warn("Failed to read header", logfields.File(f.Key), logfields.Error(err))
		}
	}
	return s.Fields(), nil
}

// Enumerate walks folder recursively and returns the files whose relative
// path matches pattern, compared case-insensitively, sorted by key.
// Unreadable subdirectories are logged and skipped.
func Enumerate(folder, pattern string) ([]File, error) {
	if pattern == "" {
		pattern = config.DefaultPattern
	}
	pattern = strings.ToLower(pattern)

	var out []File
	err := filepath.WalkDir(folder, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == folder {
				return err
			}
			slog.Warn("Skipping unreadable path", logfields.File(path), logfields.Error(err))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(folder, path)
		if err != nil {
			return nil
		}
		key := filepath.ToSlash(rel)
		ok, err := doublestar.Match(pattern, strings.ToLower(key))
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			slog.Warn("Skipping file without metadata", logfields.File(path), logfields.Error(err))
			return nil
		}
		out = append(out, File{Path: path, Key: key, ModTime: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func folderExists(folder string) bool {
	if strings.TrimSpace(folder) == "" {
		return false
	}
	info, err := os.Stat(folder)
	return err == nil && info.IsDir()
}
