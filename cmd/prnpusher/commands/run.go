package commands

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/prnpusher/internal/daemon"
	"git.home.luguber.info/inful/prnpusher/internal/foundation/errors"
)

// RunCmd implements the 'run' command.
type RunCmd struct {
	NoWatch bool `help:"Do not reload the configuration file when it changes"`
}

func (r *RunCmd) Run(_ *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var opts []daemon.Option
	if !r.NoWatch {
		opts = append(opts, daemon.WithConfigPath(root.Config))
	}
	d, err := daemon.New(cfg, opts...)
	if err != nil {
		return err
	}

	slog.Info("Daemon started, waiting for shutdown signal...")
	if err := d.Run(ctx); err != nil {
		return errors.WrapError(err, errors.CategoryDaemon, "daemon failed").Build()
	}
	slog.Info("Daemon stopped successfully")
	return nil
}
