package model

import "time"

// QueueEntry is a connection waiting to be matched into a session
type QueueEntry struct {
	ConnectionID ConnectionID
	EnqueuedAt   time.Time

	// Duel is false for plain public-party joins
	Duel   bool
	Ranked bool // Ranked duels pair by rating range; unranked pair FIFO
	Guest  bool

	Rating    int
	RangeLow  int
	RangeHigh int
	// Widened is set once the entry has waited long enough that its
	// acceptable range was opened to the full rating span
	Widened bool
}

// Accepts returns true if the other party's rating lies inside this
// entry's acceptable range
func (e *QueueEntry) Accepts(rating int) bool {
	return rating >= e.RangeLow && rating <= e.RangeHigh
}
