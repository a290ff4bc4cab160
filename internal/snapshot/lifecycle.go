package snapshot

import (
	"context"
	"log/slog"
	"time"

	"github.com/atlasguess/atlasguess/internal/model"
	"github.com/atlasguess/atlasguess/internal/registry"
	"github.com/atlasguess/atlasguess/internal/session"
)

// Capture assembles a snapshot of the live server state. Call only with the
// scheduler stopped.
func Capture(sessions *session.Manager, reg *registry.Registry, now time.Time) *Snapshot {
	return &Snapshot{
		TakenAt:     now,
		Sessions:    sessions.All(),
		Connections: reg.All(),
	}
}

// Restore loads the stored snapshot and, if fresh enough, applies it:
// sessions rejoin the manager and every connection restarts its grace
// window so owners can reclaim their seats. The snapshot is cleared either
// way; a stale one returns model.ErrSnapshotStale.
func Restore(ctx context.Context, store Store, sessions *session.Manager, reg *registry.Registry, now time.Time, logger *slog.Logger) error {
	snap, err := store.Load(ctx)
	if err != nil {
		return err
	}

	if clearErr := store.Clear(ctx); clearErr != nil {
		logger.Warn("snapshot clear failed", slog.String("error", clearErr.Error()))
	}

	if snap.Stale(now) {
		logger.Warn("snapshot too old to restore",
			slog.Time("taken_at", snap.TakenAt),
		)
		return model.ErrSnapshotStale
	}

	reg.Restore(snap.Connections)
	sessions.Restore(snap.Sessions)

	logger.Info("snapshot restored",
		slog.Int("sessions", len(snap.Sessions)),
		slog.Int("connections", len(snap.Connections)),
		slog.Duration("age", now.Sub(snap.TakenAt)),
	)
	return nil
}

var _ Store = (*RedisStore)(nil)
var _ Store = (*MemoryStore)(nil)
