// Package session implements the per-match state machine and the manager
// that owns all live sessions. All mutation happens through Manager methods
// under a per-session mutex; the tick scheduler and the websocket handlers
// are the only callers.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/atlasguess/atlasguess/internal/dependencies/clock"
	"github.com/atlasguess/atlasguess/internal/dependencies/random"
	"github.com/atlasguess/atlasguess/internal/history"
	"github.com/atlasguess/atlasguess/internal/locations"
	"github.com/atlasguess/atlasguess/internal/model"
	"github.com/atlasguess/atlasguess/internal/protocol"
	"github.com/atlasguess/atlasguess/internal/registry"
)

const (
	// JoinCodeLength is the length of private lobby join codes
	JoinCodeLength = 6
	// JoinCodeAlphabet restricts codes to digits
	JoinCodeAlphabet = "0123456789"
)

// Config holds the session timing rules
type Config struct {
	// GetReadyLead is the pause before each guess window opens
	GetReadyLead time.Duration
	// WaitBetweenRounds is the pause after a round's results
	WaitBetweenRounds time.Duration
	// EndLinger is how long an ended session lingers before it is garbage
	// collected (public/duel) or auto-reset (private)
	EndLinger time.Duration
	// AllFinalSettle is the short window left once every member has
	// finalized, so results don't land abruptly
	AllFinalSettle time.Duration
	// AllFinalThreshold is the minimum remaining time before the deadline
	// is pulled forward for the all-final case
	AllFinalThreshold time.Duration
	// LastGuesserGrace is the window granted when exactly one member is
	// still guessing
	LastGuesserGrace time.Duration
	// MinRoundsForFill is the minimum rounds remaining for the matchmaker
	// to fill a public session
	MinRoundsForFill int
}

// DefaultConfig returns the production timing rules
func DefaultConfig() Config {
	return Config{
		GetReadyLead:      5 * time.Second,
		WaitBetweenRounds: 10 * time.Second,
		EndLinger:         60 * time.Second,
		AllFinalSettle:    1 * time.Second,
		AllFinalThreshold: 5 * time.Second,
		LastGuesserGrace:  20 * time.Second,
		MinRoundsForFill:  3,
	}
}

// entry pairs a session with its own mutex so sessions stay independent
type entry struct {
	mu   sync.Mutex
	sess *model.Session
	dead bool
}

// Manager owns every live session
type Manager struct {
	mu       sync.RWMutex
	sessions map[model.SessionID]*entry
	byCode   map[string]model.SessionID

	registry *registry.Registry
	sender   Sender
	supplier locations.Supplier
	recorder history.Recorder
	clock    clock.Clock
	random   random.Random
	cfg      Config
	logger   *slog.Logger
}

// NewManager creates a session manager
func NewManager(
	reg *registry.Registry,
	sender Sender,
	supplier locations.Supplier,
	recorder history.Recorder,
	clk clock.Clock,
	rnd random.Random,
	cfg Config,
	logger *slog.Logger,
) *Manager {
	return &Manager{
		sessions: make(map[model.SessionID]*entry),
		byCode:   make(map[string]model.SessionID),
		registry: reg,
		sender:   sender,
		supplier: supplier,
		recorder: recorder,
		clock:    clk,
		random:   rnd,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "session")),
	}
}

// SetSender swaps the outbound sender; called once when the transport is
// wired after construction
func (m *Manager) SetSender(s Sender) {
	m.sender = s
}

// Create registers a new session. Location generation is the caller's
// responsibility (run GenerateLocations off the calling goroutine).
func (m *Manager) Create(kind model.SessionKind, opts model.SessionOptions, ranked bool) *model.Session {
	now := m.clock.Now()

	sess := &model.Session{
		ID:                model.SessionID(uuid.NewString()),
		Kind:              kind,
		State:             model.SessionStateWaiting,
		Options:           opts,
		WaitBetweenRounds: m.cfg.WaitBetweenRounds,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if kind == model.KindDuel {
		sess.Duel = &model.DuelState{Ranked: ranked}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if kind == model.KindPrivateParty {
		for {
			code := m.random.String(JoinCodeLength, JoinCodeAlphabet)
			if _, taken := m.byCode[code]; !taken {
				sess.Code = code
				m.byCode[code] = sess.ID
				break
			}
		}
	}

	m.sessions[sess.ID] = &entry{sess: sess}

	m.logger.Info("session created",
		slog.String("session_id", string(sess.ID)),
		slog.String("kind", string(kind)),
	)
	return sess
}

// SetDuelOutcomes attaches precomputed rating outcomes to a ranked duel
func (m *Manager) SetDuelOutcomes(id model.SessionID, outcomes *model.DuelOutcomes) {
	e, err := m.entry(id)
	if err != nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess.Duel != nil {
		e.sess.Duel.Outcomes = outcomes
	}
}

// Get returns the session with the given ID. Callers outside the manager's
// own serialization (handler or scheduler turn) must not mutate it.
func (m *Manager) Get(id model.SessionID) (*model.Session, error) {
	e, err := m.entry(id)
	if err != nil {
		return nil, err
	}
	return e.sess, nil
}

// FindByCode resolves a private lobby join code
func (m *Manager) FindByCode(code string) (model.SessionID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byCode[code]
	if !ok {
		return "", model.ErrInvalidJoinCode
	}
	return id, nil
}

// InviteCode returns the join code a member may share for a private lobby
func (m *Manager) InviteCode(id model.SessionID) (string, error) {
	e, err := m.entry(id)
	if err != nil {
		return "", err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sess.Kind != model.KindPrivateParty {
		return "", model.ErrWrongState
	}
	return e.sess.Code, nil
}

// Count returns the number of live sessions
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// JoinablePublic returns waiting public sessions with spare capacity and
// enough rounds remaining for a late joiner
func (m *Manager) JoinablePublic() []model.SessionID {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []model.SessionID
	for id, e := range m.sessions {
		e.mu.Lock()
		sess := e.sess
		joinable := !e.dead &&
			sess.IsPublic() &&
			sess.State == model.SessionStateWaiting &&
			sess.MemberCount() < maxQueueFill(sess) &&
			sess.Options.RoundCount-sess.Round >= m.cfg.MinRoundsForFill
		e.mu.Unlock()
		if joinable {
			ids = append(ids, id)
		}
	}
	return ids
}

// SpareCapacity returns how many queued players a public session can absorb
func (m *Manager) SpareCapacity(id model.SessionID) int {
	e, err := m.entry(id)
	if err != nil {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	n := maxQueueFill(e.sess) - e.sess.MemberCount()
	if n < 0 {
		return 0
	}
	return n
}

// maxQueueFill caps queue-driven fills below the hard roster limit so
// organically joined sessions keep headroom
func maxQueueFill(sess *model.Session) int {
	if sess.Options.MaxPlayers < 10 {
		return sess.Options.MaxPlayers
	}
	return 10
}

// Tick advances every live session against the current wall clock. Called
// only from the scheduler.
func (m *Manager) Tick(now time.Time) {
	m.mu.RLock()
	entries := make([]*entry, 0, len(m.sessions))
	for _, e := range m.sessions {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	var removed []model.SessionID
	for _, e := range entries {
		e.mu.Lock()
		if e.dead {
			e.mu.Unlock()
			continue
		}
		if remove := m.advanceLocked(e, now); remove {
			e.dead = true
			removed = append(removed, e.sess.ID)
		}
		e.mu.Unlock()
	}

	if len(removed) > 0 {
		m.remove(removed...)
	}
}

// entry fetches the live entry for a session
func (m *Manager) entry(id model.SessionID) (*entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.sessions[id]
	if !ok {
		return nil, model.ErrSessionNotFound
	}
	return e, nil
}

// remove drops sessions from the maps after their entry was marked dead
func (m *Manager) remove(ids ...model.SessionID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range ids {
		e, ok := m.sessions[id]
		if !ok {
			continue
		}
		if e.sess.Code != "" {
			delete(m.byCode, e.sess.Code)
		}
		delete(m.sessions, id)

		m.logger.Info("session removed", slog.String("session_id", string(id)))
	}
}

// All returns every live session, for snapshotting. Call only with the
// scheduler stopped.
func (m *Manager) All() []*model.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sessions := make([]*model.Session, 0, len(m.sessions))
	for _, e := range m.sessions {
		if !e.dead {
			sessions = append(sessions, e.sess)
		}
	}
	return sessions
}

// Restore loads snapshot sessions back into the manager
func (m *Manager) Restore(sessions []*model.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, sess := range sessions {
		// Deserialization splits the duel slots from their roster entries;
		// re-point them so both views share one slot per member
		if sess.Duel != nil {
			for i, slot := range sess.Duel.Slots {
				if slot == nil {
					continue
				}
				if roster := sess.Member(slot.ConnectionID); roster != nil {
					sess.Duel.Slots[i] = roster
				}
			}
		}
		m.sessions[sess.ID] = &entry{sess: sess}
		if sess.Code != "" {
			m.byCode[sess.Code] = sess.ID
		}
	}
}

// GenerateLocations fills a session's round locations via the supplier.
// Runs off the scheduler/handler goroutine; failures toast the roster and
// leave the session in its prior state.
func (m *Manager) GenerateLocations(ctx context.Context, id model.SessionID) error {
	e, err := m.entry(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	count := e.sess.Options.RoundCount
	area := e.sess.Options.Area
	maxDist := e.sess.Options.MaxDistKm
	m.broadcastLocked(e.sess, protocol.Generating{Type: protocol.TypeGenerating, Generated: len(e.sess.Locations)})
	e.mu.Unlock()

	locs, err := m.supplier.Generate(ctx, count, area)
	if err != nil {
		m.logger.Warn("location generation failed",
			slog.String("session_id", string(id)),
			slog.String("error", err.Error()),
		)
		e.mu.Lock()
		m.broadcastLocked(e.sess, protocol.NewToast("locationGenerationFailed", "error"))
		e.mu.Unlock()
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.dead || e.sess.Ended {
		return nil
	}
	// Options may have changed while generating; only a matching batch counts
	if count != e.sess.Options.RoundCount || area != e.sess.Options.Area {
		return nil
	}

	e.sess.Locations = locs
	e.sess.UpdatedAt = m.clock.Now()

	m.broadcastLocked(e.sess, protocol.Generating{Type: protocol.TypeGenerating, Generated: len(locs)})
	m.broadcastLocked(e.sess, protocol.MaxDistUpdate{Type: protocol.TypeMaxDist, MaxDist: maxDist})
	return nil
}
