// Package factory wires the application components together.
package factory

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/atlasguess/atlasguess/internal/dependencies/clock"
	"github.com/atlasguess/atlasguess/internal/dependencies/random"
	"github.com/atlasguess/atlasguess/internal/history"
	"github.com/atlasguess/atlasguess/internal/locations"
	"github.com/atlasguess/atlasguess/internal/matchmaker"
	"github.com/atlasguess/atlasguess/internal/registry"
	"github.com/atlasguess/atlasguess/internal/scheduler"
	"github.com/atlasguess/atlasguess/internal/session"
	"github.com/atlasguess/atlasguess/internal/snapshot"
	"github.com/atlasguess/atlasguess/internal/transport/ws"
)

// App contains all wired application components
type App struct {
	// External dependencies
	Clock  clock.Clock
	Random random.Random

	// Stores
	SnapshotStore snapshot.Store
	Recorder      history.Recorder
	Verifier      history.Verifier

	// Core
	Registry    *registry.Registry
	Locations   *locations.Pool
	Sessions    *session.Manager
	Matchmaker  *matchmaker.Matchmaker
	Scheduler   *scheduler.Scheduler
	Hub         *ws.Hub
	Maintenance *atomic.Bool

	// Closers for process shutdown
	closers []func() error
}

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional); a no-op logger is used
	// if nil
	Logger *slog.Logger
	// MemoryOnly skips Redis entirely: in-memory snapshot store, no
	// rating/history persistence, guest accounts only
	MemoryOnly bool
	// RedisURL connects the snapshot and history stores (required unless
	// MemoryOnly)
	RedisURL string

	// GraceWindow is the disconnect reclaim window; zero means the
	// registry default
	GraceWindow time.Duration

	SchedulerConfig scheduler.Config
	SessionConfig   session.Config
	MatchConfig     matchmaker.Config
}

// DefaultConfig returns the production wiring defaults
func DefaultConfig() Config {
	return Config{
		SchedulerConfig: scheduler.DefaultConfig(),
		SessionConfig:   session.DefaultConfig(),
		MatchConfig:     matchmaker.DefaultConfig(),
	}
}

// New creates a new application with all dependencies wired
func New(ctx context.Context, cfg Config) (*App, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	clk := clock.New()
	rnd := random.New()

	var (
		snapStore snapshot.Store
		recorder  history.Recorder
		verifier  history.Verifier
		closers   []func() error
	)
	if cfg.MemoryOnly {
		snapStore = snapshot.NewMemoryStore()
		recorder = history.NopRecorder{}
		verifier = history.GuestOnlyVerifier{}
	} else {
		snapCfg := snapshot.DefaultConfig()
		snapCfg.URL = cfg.RedisURL
		redisSnap, err := snapshot.New(ctx, snapCfg, logger)
		if err != nil {
			return nil, err
		}

		histCfg := history.DefaultConfig()
		histCfg.URL = cfg.RedisURL
		redisHist, err := history.New(ctx, histCfg, logger)
		if err != nil {
			return nil, err
		}

		snapStore = redisSnap
		recorder = redisHist
		verifier = redisHist
		closers = append(closers, redisSnap.Close, redisHist.Close)
	}

	app := newWithDependencies(cfg, snapStore, recorder, verifier, clk, rnd, logger)
	app.closers = closers
	return app, nil
}

// newWithDependencies creates an App with the given dependencies (useful
// for testing)
func newWithDependencies(
	cfg Config,
	snapStore snapshot.Store,
	recorder history.Recorder,
	verifier history.Verifier,
	clk clock.Clock,
	rnd random.Random,
	logger *slog.Logger,
) *App {
	maintenance := &atomic.Bool{}

	if cfg.SchedulerConfig == (scheduler.Config{}) {
		cfg.SchedulerConfig = scheduler.DefaultConfig()
	}
	if cfg.SessionConfig == (session.Config{}) {
		cfg.SessionConfig = session.DefaultConfig()
	}
	if cfg.MatchConfig == (matchmaker.Config{}) {
		cfg.MatchConfig = matchmaker.DefaultConfig()
	}

	reg := registry.New(clk, cfg.GraceWindow, logger)
	source := locations.NewStaticSource(locations.WorldCities, rnd)
	pool := locations.NewPool(source, rnd, locations.DefaultPoolSize, logger)
	sessions := session.NewManager(reg, session.NopSender{}, pool, recorder, clk, rnd, cfg.SessionConfig, logger)
	mm := matchmaker.New(sessions, reg, clk, cfg.MatchConfig, logger)
	hub := ws.NewHub(reg, sessions, mm, verifier, clk, rnd, maintenance, logger)

	sessions.SetSender(hub)
	mm.SetSender(hub)
	mm.SetKicker(hub)

	sched := scheduler.New(sessions, mm, reg, hub, clk, cfg.SchedulerConfig, logger)

	return &App{
		Clock:         clk,
		Random:        rnd,
		SnapshotStore: snapStore,
		Recorder:      recorder,
		Verifier:      verifier,
		Registry:      reg,
		Locations:     pool,
		Sessions:      sessions,
		Matchmaker:    mm,
		Scheduler:     sched,
		Hub:           hub,
		Maintenance:   maintenance,
	}
}

// Close releases external resources
func (a *App) Close() error {
	var first error
	for _, c := range a.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
