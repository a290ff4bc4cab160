// Package scheduler drives the periodic work: session timers, matchmaking
// passes, grace-window reaping, and the broadcast heartbeat.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/atlasguess/atlasguess/internal/dependencies/clock"
	"github.com/atlasguess/atlasguess/internal/matchmaker"
	"github.com/atlasguess/atlasguess/internal/protocol"
	"github.com/atlasguess/atlasguess/internal/registry"
	"github.com/atlasguess/atlasguess/internal/session"
)

// Config holds the scheduler cadences
type Config struct {
	Interval time.Duration
	// HeartbeatEvery and CountEvery are in ticks
	HeartbeatEvery int
	CountEvery     int
}

// DefaultConfig returns the production cadences: 500ms ticks, heartbeat
// every 5s, player count every 10s
func DefaultConfig() Config {
	return Config{
		Interval:       500 * time.Millisecond,
		HeartbeatEvery: 10,
		CountEvery:     20,
	}
}

// Scheduler owns the single periodic mutation path. All deadline checks are
// wall-clock comparisons inside a pass, not OS timers.
type Scheduler struct {
	sessions   *session.Manager
	matchmaker *matchmaker.Matchmaker
	registry   *registry.Registry
	sender     session.Sender
	clock      clock.Clock
	cfg        Config
	logger     *slog.Logger

	ticks int
}

// New constructs a Scheduler
func New(
	sessions *session.Manager,
	mm *matchmaker.Matchmaker,
	reg *registry.Registry,
	sender session.Sender,
	clk clock.Clock,
	cfg Config,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		sessions:   sessions,
		matchmaker: mm,
		registry:   reg,
		sender:     sender,
		clock:      clk,
		cfg:        cfg,
		logger:     logger.With(slog.String("component", "scheduler")),
	}
}

// Run loops until the context is cancelled
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.logger.Info("scheduler started", slog.Duration("interval", s.cfg.Interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.Pass(s.clock.Now())
		}
	}
}

// Pass runs one scheduler pass at the given instant
func (s *Scheduler) Pass(now time.Time) {
	s.ticks++

	s.reapExpired(now)
	s.sessions.Tick(now)
	s.matchmaker.Tick(now)

	if s.cfg.HeartbeatEvery > 0 && s.ticks%s.cfg.HeartbeatEvery == 0 {
		s.broadcast(protocol.NewHeartbeat(now))
	}
	if s.cfg.CountEvery > 0 && s.ticks%s.cfg.CountEvery == 0 {
		s.broadcast(protocol.Count{Type: protocol.TypeCount, Count: s.registry.Count()})
	}
}

// reapExpired purges connections whose grace window elapsed, detaching them
// from their session and the queue first
func (s *Scheduler) reapExpired(now time.Time) {
	for _, conn := range s.registry.ExpiredGrace(now) {
		if conn.SessionID != "" {
			if err := s.sessions.RemovePlayer(conn.SessionID, conn.ID, false); err != nil {
				s.logger.Warn("reap detach failed",
					slog.String("connection_id", string(conn.ID)),
					slog.String("error", err.Error()),
				)
			}
		}
		s.matchmaker.Dequeue(conn.ID)
		s.registry.Purge(conn.ID)

		s.logger.Info("connection purged",
			slog.String("connection_id", string(conn.ID)),
		)
	}
}

func (s *Scheduler) broadcast(msg protocol.ServerMessage) {
	for _, id := range s.registry.ConnectedIDs() {
		s.sender.Send(id, msg)
	}
}
