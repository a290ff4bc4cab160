package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/atlasguess/atlasguess/internal/api"
	"github.com/atlasguess/atlasguess/internal/config"
	"github.com/atlasguess/atlasguess/internal/factory"
	"github.com/atlasguess/atlasguess/internal/model"
	"github.com/atlasguess/atlasguess/internal/snapshot"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Set up logging with JSON output
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appCfg := factory.DefaultConfig()
	appCfg.Logger = logger
	appCfg.MemoryOnly = cfg.MemoryOnly
	appCfg.RedisURL = cfg.RedisURL
	appCfg.GraceWindow = cfg.GraceWindow
	if cfg.TickInterval > 0 {
		appCfg.SchedulerConfig.Interval = cfg.TickInterval
	}

	app, err := factory.New(ctx, appCfg)
	if err != nil {
		logger.Error("failed to create application", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn("close error", slog.String("error", err.Error()))
		}
	}()

	// Restore in-flight matches from the last shutdown, if recent enough
	if err := snapshot.Restore(ctx, app.SnapshotStore, app.Sessions, app.Registry, app.Clock.Now(), logger); err != nil {
		if !errors.Is(err, model.ErrSnapshotNotFound) && !errors.Is(err, model.ErrSnapshotStale) {
			logger.Warn("snapshot restore failed", slog.String("error", err.Error()))
		}
	}

	// Warm the location pool in the background
	go func() {
		if err := app.Locations.Fill(ctx); err != nil {
			logger.Warn("location pool fill failed", slog.String("error", err.Error()))
		}
	}()

	schedDone := make(chan struct{})
	go func() {
		app.Scheduler.Run(ctx)
		close(schedDone)
	}()

	router := api.NewRouter(api.RouterConfig{
		Logger:      logger,
		Hub:         app.Hub,
		Registry:    app.Registry,
		Sessions:    app.Sessions,
		Matchmaker:  app.Matchmaker,
		Maintenance: app.Maintenance,
		AdminSecret: cfg.AdminSecret,
	})

	serverConfig := api.DefaultServerConfig()
	serverConfig.Host = cfg.Host
	serverConfig.Port = cfg.Port
	server := api.NewServer(router, serverConfig, logger)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	logger.Info("server started", slog.String("addr", server.Addr()))

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	case <-ctx.Done():
		// Quiesce every mutator before touching state: stop the listener,
		// drain the socket pumps, and wait out the tick loop. Only then is
		// the capture a consistent view.
		shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := server.Shutdown(shutCtx); err != nil {
			logger.Warn("shutdown error", slog.String("error", err.Error()))
		}
		shutCancel()
		app.Hub.Shutdown()
		<-schedDone

		saveCtx, saveCancel := context.WithTimeout(context.Background(), 10*time.Second)
		snap := snapshot.Capture(app.Sessions, app.Registry, app.Clock.Now())
		if err := app.SnapshotStore.Save(saveCtx, snap); err != nil {
			logger.Warn("snapshot save failed", slog.String("error", err.Error()))
		}
		saveCancel()
	}

	logger.Info("server stopped")
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
