package model

import "time"

// SessionID uniquely identifies a session
type SessionID string

// SessionKind distinguishes the three match formats
type SessionKind string

const (
	KindPublicParty  SessionKind = "public_party"
	KindPrivateParty SessionKind = "private_party"
	KindDuel         SessionKind = "duel"
)

// SessionState represents the current phase of a session
type SessionState string

const (
	SessionStateWaiting  SessionState = "waiting"  // Roster forming, locations generating
	SessionStateGetReady SessionState = "getready" // Lead-in before the guess window opens
	SessionStateGuess    SessionState = "guess"    // Guess window open
	SessionStateEnd      SessionState = "end"      // Terminal (public/duel) or looping (private)
)

// DuelRole indexes the two duel slots
type DuelRole int

const (
	DuelP1 DuelRole = 0
	DuelP2 DuelRole = 1
)

// DuelStartingHealth is the health-style starting score for duel slots
const DuelStartingHealth = 5000

// Slot is one roster member's per-session state
type Slot struct {
	ConnectionID ConnectionID
	Username     string
	Score        int
	Guess        *Point
	Final        bool
	GuessTook    time.Duration // Time from round open to last guess
	IsHost       bool
}

// RatingPair is a pair of post-match ratings for the two duel parties
type RatingPair struct {
	P1 int
	P2 int
}

// DuelOutcomes caches the three possible rating results of a duel, computed
// at pairing time so applying the final result is O(1)
type DuelOutcomes struct {
	P1Wins RatingPair
	P2Wins RatingPair
	Draw   RatingPair
}

// DuelState holds duel-specific session state. Slots are indexed by role,
// not looked up by tag.
type DuelState struct {
	Slots    [2]*Slot
	Ranked   bool
	Outcomes *DuelOutcomes // nil for guest/unranked duels
}

// SlotFor returns the duel slot for a connection, or nil
func (d *DuelState) SlotFor(id ConnectionID) *Slot {
	for _, s := range d.Slots {
		if s != nil && s.ConnectionID == id {
			return s
		}
	}
	return nil
}

// RoleOf returns the duel role of a connection; ok is false if absent
func (d *DuelState) RoleOf(id ConnectionID) (DuelRole, bool) {
	for i, s := range d.Slots {
		if s != nil && s.ConnectionID == id {
			return DuelRole(i), true
		}
	}
	return 0, false
}

// GuessResult is one roster member's result for a completed round
type GuessResult struct {
	ConnectionID ConnectionID
	Username     string
	Guess        *Point // nil if no guess submitted
	Points       int
	Took         time.Duration
}

// RoundRecord is the immutable record of one completed round
type RoundRecord struct {
	Round    int
	Location Location
	Results  []GuessResult
}

// SessionOptions holds configurable per-session settings
type SessionOptions struct {
	RoundCount   int
	TimePerRound time.Duration
	MaxPlayers   int
	MaxDistKm    float64
	Area         string // "all" or a country/area filter for the location supplier
}

// DefaultSessionOptions returns the defaults for public sessions
func DefaultSessionOptions() SessionOptions {
	return SessionOptions{
		RoundCount:   5,
		TimePerRound: 60 * time.Second,
		MaxPlayers:   100,
		MaxDistKm:    20000,
		Area:         "all",
	}
}

// DuelSessionOptions returns the fixed settings for duels
func DuelSessionOptions() SessionOptions {
	opts := DefaultSessionOptions()
	opts.MaxPlayers = 2
	return opts
}

// Session represents one match instance progressing through rounds
type Session struct {
	ID    SessionID
	Code  string // 6-digit join code, private lobbies only
	Kind  SessionKind
	State SessionState

	Round   int // 1-based; 0 before start
	Options SessionOptions

	WaitBetweenRounds time.Duration

	// Roster holds party members in join order. For duels it mirrors the
	// two duel slots so shared iteration stays uniform.
	Roster []*Slot
	Duel   *DuelState // nil unless Kind is duel

	Locations []Location
	History   []RoundRecord

	// NextEventAt is the wall-clock deadline the scheduler compares against
	NextEventAt time.Time
	// RoundOpenedAt is when the current guess window opened
	RoundOpenedAt time.Time

	// LastSavedRound guards against double-recording a round in History
	LastSavedRound int
	// EarlyEnd is set when a duel's health reaches zero mid-round
	EarlyEnd bool
	Ended    bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsPublic returns true for sessions joinable from the public queue
func (s *Session) IsPublic() bool {
	return s.Kind == KindPublicParty
}

// Member returns the roster slot for a connection, or nil
func (s *Session) Member(id ConnectionID) *Slot {
	for _, slot := range s.Roster {
		if slot.ConnectionID == id {
			return slot
		}
	}
	return nil
}

// MemberCount returns the current roster size
func (s *Session) MemberCount() int {
	return len(s.Roster)
}

// Host returns the host slot, or nil if the session has none
func (s *Session) Host() *Slot {
	for _, slot := range s.Roster {
		if slot.IsHost {
			return slot
		}
	}
	return nil
}

// LocationsReady returns true once the configured number of round
// locations has been generated
func (s *Session) LocationsReady() bool {
	return len(s.Locations) == s.Options.RoundCount
}

// CurrentLocation returns the location for the in-progress round; ok is
// false before the first round or past the last
func (s *Session) CurrentLocation() (Location, bool) {
	if s.Round < 1 || s.Round > len(s.Locations) {
		return Location{}, false
	}
	return s.Locations[s.Round-1], true
}
