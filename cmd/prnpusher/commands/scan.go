package commands

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"git.home.luguber.info/inful/prnpusher/internal/foundation/errors"
	"git.home.luguber.info/inful/prnpusher/internal/scan"
	"git.home.luguber.info/inful/prnpusher/internal/status"
)

// ScanCmd implements the 'scan' command.
type ScanCmd struct {
	Field []string `short:"f" help:"Enable an additional field for this run (repeatable)"`
}

// lineSink prints status messages as they are produced.
type lineSink struct {
	mu  sync.Mutex
	out io.Writer
}

func (s *lineSink) Add(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.out, status.Message{Time: time.Now(), Text: text}.String())
}

func (c *ScanCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	cfg.Fields.Enabled = append(cfg.Fields.Enabled, c.Field...)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	session := scan.NewSession(cfg, scan.WithSink(&lineSink{out: g.out()}))
	report, err := session.RunCycle(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(g.out(), "Scanned %d files: %d opened, %d skipped, %d uploaded, %d failed, %d lines\n",
		report.Files, report.Opened, report.Skipped, report.Uploaded, report.Failed, report.Lines)
	if report.Unsent > 0 {
		fmt.Fprintf(g.out(), "Backend URL is not set: new data in %d files was not sent\n", report.Unsent)
	}
	if report.Failed > 0 {
		return errors.NewError(errors.CategoryBackend, "some files could not be processed").
			WithContext("failed", report.Failed).
			Build()
	}
	return nil
}
