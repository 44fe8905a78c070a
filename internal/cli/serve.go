package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Dicklesworthstone/wavedit/internal/events"
	"github.com/Dicklesworthstone/wavedit/internal/metrics"
	"github.com/Dicklesworthstone/wavedit/internal/serve"
	"github.com/Dicklesworthstone/wavedit/internal/source"
	"github.com/Dicklesworthstone/wavedit/internal/watcher"
)

type serveOptions struct {
	Addr    string
	NoWatch bool
	History int
}

func newServeCmd() *cobra.Command {
	var opts serveOptions
	cmd := &cobra.Command{
		Use:   "serve <job-file>",
		Short: "Start HTTP server with JSON API and event streaming",
		Long: `Start a local HTTP server that hosts one timeline session for a browser
front end. The browser renders the waveform and region widgets and forwards
pointer, wheel and engine events; the server runs the editing rules and
streams notifications back.

API Endpoints:
  GET  /api/timeline               Timeline state
  GET  /api/ruler?zoom=            Ruler ticks
  GET  /api/events?limit=          Recent notifications
  GET  /api/export?format=         Snapshot as JSON or YAML
  PUT  /api/segments               Replace detector segments
  POST /api/regions/update-end     Region widget finished a drag
  POST /api/regions/select         Select a region
  POST /api/regions/reset          Drop one or all corrections
  PUT  /api/preview                Set the committed preview window
  POST /api/preview/nudge          Move the preview window
  POST /api/pointer                Pointer down/move/up/cancel
  POST /api/wheel                  Wheel scroll or zoom
  PUT  /api/viewport               Client width
  POST /api/zoom                   Zoom around a point
  PUT  /api/mode                   Seek or pan mode
  POST /api/engine                 Rendering engine events
  GET  /events                     Server-Sent Events stream
  GET  /metrics                    Prometheus metrics
  GET  /health                     Health check

Examples:
  wavedit serve job.json                     # Start on 127.0.0.1:7420
  wavedit serve job.json --addr :8080`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("addr") {
				opts.Addr = cfg.Serve.Addr
			}
			return runServe(args[0], opts)
		},
	}
	cmd.Flags().StringVar(&opts.Addr, "addr", "127.0.0.1:7420", "HTTP listen address (default from config)")
	cmd.Flags().BoolVar(&opts.NoWatch, "no-watch", false, "Do not reload the job file when it changes")
	cmd.Flags().IntVar(&opts.History, "history", 500, "Events kept for /api/events")
	return cmd
}

func runServe(path string, opts serveOptions) error {
	logger, closeLog, err := newLogger(os.Stderr)
	if err != nil {
		return err
	}
	defer closeLog()

	job, err := source.Load(path)
	if err != nil {
		return fmt.Errorf("loading job: %w", err)
	}

	bus := events.NewBus(opts.History)
	session := serve.NewSession(cfg.Controller(), cfg.Preview, bus, logger)
	if err := session.Load(job); err != nil {
		return err
	}

	srv := serve.New(serve.Config{
		Addr:    opts.Addr,
		Session: session,
		Bus:     bus,
		Metrics: metrics.New(),
		Logger:  logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !opts.NoWatch {
		w, err := watcher.NewJobWatcher(path, watcher.WithLogger(logger))
		if err != nil {
			return err
		}
		w.Start(ctx)
		defer w.Stop()
		go srv.Follow(ctx, w.Changes())
	}

	logger.Info("server starting", "addr", srv.Addr(), "job", job.ID, "watch", !opts.NoWatch)
	fmt.Printf("Serving %s on http://%s\n", job.ID, srv.Addr())
	fmt.Println("Press Ctrl+C to stop")

	return srv.Start(ctx)
}
