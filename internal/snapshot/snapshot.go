// Package snapshot persists in-flight match state across process restarts.
// A snapshot is written once at shutdown and consumed once at startup; the
// documented failure mode is losing at most one shutdown cycle of state.
package snapshot

import (
	"context"
	"time"

	"github.com/atlasguess/atlasguess/internal/model"
)

// MaxAge bounds how old a snapshot may be and still be restored
const MaxAge = 60 * time.Second

// Snapshot is the full serializable server state
type Snapshot struct {
	TakenAt     time.Time           `json:"takenAt"`
	Sessions    []*model.Session    `json:"sessions"`
	Connections []*model.Connection `json:"connections"`
}

// Stale reports whether the snapshot is too old to restore
func (s *Snapshot) Stale(now time.Time) bool {
	return now.Sub(s.TakenAt) > MaxAge
}

// Store persists snapshots. Load returns model.ErrSnapshotNotFound when no
// snapshot exists.
type Store interface {
	Save(ctx context.Context, snap *Snapshot) error
	Load(ctx context.Context) (*Snapshot, error)
	Clear(ctx context.Context) error
}
