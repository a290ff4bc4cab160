// Package history holds the write-only clients for the rating/account store
// and the completed-game history store. Both are fire-and-forget from the
// session core's perspective: failures are logged, never propagated into
// session progression.
package history

import (
	"context"
	"time"

	"github.com/atlasguess/atlasguess/internal/model"
)

// RatingMeta accompanies a rating change for audit/history purposes
type RatingMeta struct {
	SessionID model.SessionID `json:"sessionId"`
	Opponent  model.AccountID `json:"opponent,omitempty"`
	Outcome   string          `json:"outcome"` // win, loss, draw
}

// PlayerResult is one participant's final line in a session summary
type PlayerResult struct {
	ConnectionID model.ConnectionID `json:"connectionId"`
	AccountID    model.AccountID    `json:"accountId,omitempty"`
	Username     string             `json:"username"`
	Score        int                `json:"score"`
	RatingAfter  int                `json:"ratingAfter,omitempty"`
}

// SessionSummary is the record written once at session end
type SessionSummary struct {
	SessionID    model.SessionID   `json:"sessionId"`
	Kind         model.SessionKind `json:"kind"`
	RoundsPlayed int               `json:"roundsPlayed"`
	FinishedAt   time.Time         `json:"finishedAt"`
	Players      []PlayerResult    `json:"players"`
}

// Recorder is the session core's view of the external stores
type Recorder interface {
	ApplyRatingChange(ctx context.Context, accountID model.AccountID, newRating int, meta RatingMeta) error
	RecordCompletedSession(ctx context.Context, summary SessionSummary) error
}
