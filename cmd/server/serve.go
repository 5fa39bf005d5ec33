package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"quill/internal/blog/scheduler"
	httpapi "quill/internal/http"
	"quill/internal/platform/config"
	"quill/internal/platform/httpserver"
	"quill/internal/platform/logger"
	"quill/internal/platform/worker"
)

const (
	shutdownGrace    = 10 * time.Second
	memorySweepEvery = time.Minute
)

var serveMigrate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the post scheduler",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", false, "apply pending migrations before serving")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	log := logger.New(cfg.Server.Production())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, log, prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.db == nil {
		log.Warn("DATABASE_URL not set, using in-memory stores")
	} else if serveMigrate {
		applied, err := a.db.Migrate(ctx)
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		log.Info("migrations applied", "count", len(applied), "files", applied)
	}

	srv := httpserver.New(cfg.Server.Addr, httpapi.NewRouter(a.routerDeps()))
	publishDue := scheduler.New(a.blog, cfg.Scheduler.Interval, log)
	purgeSessions := &worker.Periodic{
		Name:     "session_purge",
		Interval: cfg.Auth.SessionPurgeEvery,
		Logger:   log,
		Task: func(ctx context.Context) error {
			_, err := a.auth.PurgeExpiredSessions(ctx)
			return err
		},
	}
	sweepMemory := &worker.Periodic{
		Name:     "memory_sweep",
		Interval: memorySweepEvery,
		Logger:   log,
		Task:     a.sweep,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting quill", "addr", cfg.Server.Addr, "env", cfg.Server.Environment)
		return httpserver.Run(gctx, srv, shutdownGrace)
	})
	g.Go(func() error { return publishDue.Run(gctx) })
	g.Go(func() error { return purgeSessions.Run(gctx) })
	g.Go(func() error { return sweepMemory.Run(gctx) })

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("quill stopped")
	return nil
}
