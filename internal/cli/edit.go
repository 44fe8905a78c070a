package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/Dicklesworthstone/wavedit/internal/events"
	"github.com/Dicklesworthstone/wavedit/internal/source"
	"github.com/Dicklesworthstone/wavedit/internal/tui/editor"
	"github.com/Dicklesworthstone/wavedit/internal/watcher"
)

// errNotTerminal is returned when edit is run without an interactive terminal.
var errNotTerminal = errors.New("edit needs an interactive terminal; use 'wavedit inspect' or 'wavedit serve' instead")

type editOptions struct {
	NoWatch bool
	NoMouse bool
}

func newEditCmd() *cobra.Command {
	var opts editOptions
	cmd := &cobra.Command{
		Use:   "edit <job-file>",
		Short: "Edit detected regions in the terminal",
		Long: `Open a job in the full-screen terminal editor.

Mouse:
  click waveform     seek            drag region body   move region
  drag region edge   resize region   drag preview bar   move/resize preview
  wheel              scroll          ctrl+wheel         zoom

The job file is watched and reloaded when it changes on disk; corrections to
regions that still exist are kept across reloads.

Examples:
  wavedit edit job.json
  wavedit edit job.yaml --no-mouse`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEdit(args[0], opts)
		},
	}
	cmd.Flags().BoolVar(&opts.NoWatch, "no-watch", false, "Do not reload the job file when it changes")
	cmd.Flags().BoolVar(&opts.NoMouse, "no-mouse", false, "Disable mouse input")
	return cmd
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func runEdit(path string, opts editOptions) error {
	if !isTerminal(os.Stdout) || !isTerminal(os.Stdin) {
		return errNotTerminal
	}

	// The editor owns the terminal, so logs go to a file or nowhere
	logger, closeLog, err := newLogger(io.Discard)
	if err != nil {
		return err
	}
	defer closeLog()

	job, err := source.Load(path)
	if err != nil {
		return fmt.Errorf("loading job: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var w *watcher.JobWatcher
	if !opts.NoWatch {
		w, err = watcher.NewJobWatcher(path, watcher.WithLogger(logger))
		if err != nil {
			return err
		}
		w.Start(ctx)
		defer w.Stop()
	}

	if opts.NoMouse {
		cfg.TUI.Mouse = false
	}
	m, err := editor.New(editor.Options{
		Config:  cfg,
		Job:     job,
		Watcher: w,
		Bus:     events.NewBus(0),
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	logger.Info("editor starting", "job", job.ID, "path", path, "watch", w != nil)
	return editor.Run(ctx, m, editor.RunOptions{Mouse: cfg.TUI.Mouse})
}
