// Entry point for the spool processing daemon — config, slog, SQLite stores,
// observability, worker pool, HTTP API.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spoolworks/spooldoc/dbopen"
	"github.com/spoolworks/spooldoc/observability"
	"github.com/spoolworks/spooldoc/render"
	"github.com/spoolworks/spooldoc/spoold"
	_ "modernc.org/sqlite"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	logLevel := env("LOG_LEVEL", "info")
	var lvl slog.Level
	switch logLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	cfg := spoold.DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = spoold.LoadConfig(*configPath)
		if err != nil {
			slog.Error("config", "error", err)
			os.Exit(1)
		}
	}
	if listen := os.Getenv("LISTEN"); listen != "" {
		cfg.Listen = listen
	}

	// Signal context.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Observability DB is separate from the job DB so metric churn never
	// contends with job writes.
	obsDB, err := dbopen.Open(cfg.Obs.DBPath, dbopen.WithMkdirAll())
	if err != nil {
		slog.Error("observability db", "error", err)
		os.Exit(1)
	}
	defer obsDB.Close()
	if err := observability.Init(obsDB); err != nil {
		slog.Error("observability init", "error", err)
		os.Exit(1)
	}

	events := observability.NewEventLogger(obsDB)
	metrics := observability.NewMetricsManager(obsDB, 100, 10*time.Second)

	heartbeat := observability.NewHeartbeatWriter(obsDB, "spoold", 30*time.Second)
	heartbeat.Start(ctx)
	defer heartbeat.Stop()

	opts := []spoold.Option{
		spoold.WithLogger(logger),
		spoold.WithEvents(events),
		spoold.WithMetrics(metrics),
	}
	if cfg.Render.Enabled {
		opts = append(opts, spoold.WithRenderer(render.New(cfg.Render.MaxDimension)))
	}

	svc, err := spoold.New(cfg, opts...)
	if err != nil {
		slog.Error("service", "error", err)
		os.Exit(1)
	}
	defer svc.Close()

	// Re-queue work interrupted by a previous crash before accepting new jobs.
	svc.RecoverStaleJobs(ctx)

	go func() {
		if err := svc.Run(ctx); err != nil && ctx.Err() == nil {
			slog.Error("worker pool", "error", err)
		}
	}()
	go svc.RunRetention(ctx, obsDB, 6*time.Hour)

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           svc.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
	slog.Info("server stopped")
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
