// Package matchmaker forms sessions from waiting players. It owns the queue
// exclusively; the scheduler drives it once per tick.
package matchmaker

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/atlasguess/atlasguess/internal/dependencies/clock"
	"github.com/atlasguess/atlasguess/internal/model"
	"github.com/atlasguess/atlasguess/internal/protocol"
	"github.com/atlasguess/atlasguess/internal/rating"
	"github.com/atlasguess/atlasguess/internal/registry"
	"github.com/atlasguess/atlasguess/internal/session"
)

// Config holds the matchmaking tunables
type Config struct {
	// InitialRangeSpread is the half-width of a rated entry's starting
	// acceptable range, centered on its rating
	InitialRangeSpread int
	// DuelWidenAfter is how long a rated entry waits before its range
	// opens to the full rating scale
	DuelWidenAfter time.Duration
	// SubnetWindow and SubnetThreshold bound duel requests per /24 subnet
	SubnetWindow    time.Duration
	SubnetThreshold int
}

// DefaultConfig returns the production matchmaking tunables
func DefaultConfig() Config {
	return Config{
		InitialRangeSpread: 300,
		DuelWidenAfter:     10 * time.Second,
		SubnetWindow:       10 * time.Second,
		SubnetThreshold:    20,
	}
}

// Kicker force-closes a connection's socket
type Kicker interface {
	Kick(id model.ConnectionID)
}

// NopKicker discards kicks
type NopKicker struct{}

func (NopKicker) Kick(model.ConnectionID) {}

// Matchmaker owns the pending-player queue and the duel abuse counters
type Matchmaker struct {
	mu      sync.Mutex
	entries []*model.QueueEntry
	byConn  map[model.ConnectionID]*model.QueueEntry

	// duel requests per subnet inside the sliding window
	subnetHits map[string][]time.Time
	banned     map[string]struct{}

	sessions *session.Manager
	registry *registry.Registry
	sender   session.Sender
	kicker   Kicker
	clock    clock.Clock
	cfg      Config
	logger   *slog.Logger
}

// New constructs a Matchmaker
func New(
	sessions *session.Manager,
	reg *registry.Registry,
	clk clock.Clock,
	cfg Config,
	logger *slog.Logger,
) *Matchmaker {
	return &Matchmaker{
		byConn:     make(map[model.ConnectionID]*model.QueueEntry),
		subnetHits: make(map[string][]time.Time),
		banned:     make(map[string]struct{}),
		sessions:   sessions,
		registry:   reg,
		sender:     session.NopSender{},
		kicker:     NopKicker{},
		clock:      clk,
		cfg:        cfg,
		logger:     logger.With(slog.String("component", "matchmaker")),
	}
}

// SetSender installs the outbound transport. Must be called before serving.
func (mm *Matchmaker) SetSender(s session.Sender) {
	mm.sender = s
}

// SetKicker installs the socket closer. Must be called before serving.
func (mm *Matchmaker) SetKicker(k Kicker) {
	mm.kicker = k
}

// Enqueue places a connection in the queue. Ranked duels require a verified
// account; duel requests are counted against the subnet abuse limit.
func (mm *Matchmaker) Enqueue(conn *model.Connection, duel, ranked bool) error {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	if conn.InSession() {
		return model.ErrAlreadyInSession
	}
	if _, ok := mm.byConn[conn.ID]; ok {
		return model.ErrAlreadyQueued
	}

	now := mm.clock.Now()

	if duel {
		if err := mm.recordDuelRequestLocked(conn, now); err != nil {
			return err
		}
		if ranked && !conn.Verified {
			return model.ErrNotVerified
		}
	}

	entry := &model.QueueEntry{
		ConnectionID: conn.ID,
		EnqueuedAt:   now,
		Duel:         duel,
		Ranked:       duel && ranked && conn.Verified,
		Guest:        conn.IsGuest || !conn.Verified,
		Rating:       conn.Rating,
	}
	if entry.Ranked {
		entry.RangeLow = entry.Rating - mm.cfg.InitialRangeSpread
		entry.RangeHigh = entry.Rating + mm.cfg.InitialRangeSpread
		if entry.RangeLow < 0 {
			entry.RangeLow = 0
		}
	}

	mm.entries = append(mm.entries, entry)
	mm.byConn[conn.ID] = entry
	conn.InQueue = true

	mm.logger.Debug("enqueued",
		slog.String("connection_id", string(conn.ID)),
		slog.Bool("duel", duel),
		slog.Bool("ranked", entry.Ranked),
	)
	return nil
}

// Dequeue removes a connection from the queue, if present
func (mm *Matchmaker) Dequeue(connID model.ConnectionID) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	mm.removeLocked(connID)
}

func (mm *Matchmaker) removeLocked(connID model.ConnectionID) {
	if _, ok := mm.byConn[connID]; !ok {
		return
	}
	delete(mm.byConn, connID)
	for i, e := range mm.entries {
		if e.ConnectionID == connID {
			mm.entries = append(mm.entries[:i], mm.entries[i+1:]...)
			break
		}
	}
	if conn, err := mm.registry.Get(connID); err == nil {
		conn.InQueue = false
	}
}

// Len reports the queue size
func (mm *Matchmaker) Len() int {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	return len(mm.entries)
}

// SubnetBanned reports whether an address's /24 subnet is banned
func (mm *Matchmaker) SubnetBanned(ip string) bool {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	_, ok := mm.banned[subnet24(ip)]
	return ok
}

// recordDuelRequestLocked counts a duel request against the subnet window,
// banning the subnet and kicking its sockets past the threshold
func (mm *Matchmaker) recordDuelRequestLocked(conn *model.Connection, now time.Time) error {
	subnet := subnet24(conn.RemoteIP)
	if subnet == "" {
		return nil
	}
	if _, ok := mm.banned[subnet]; ok {
		return model.ErrSubnetBanned
	}

	cutoff := now.Add(-mm.cfg.SubnetWindow)
	hits := mm.subnetHits[subnet]
	kept := hits[:0]
	for _, t := range hits {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	kept = append(kept, now)
	mm.subnetHits[subnet] = kept

	if len(kept) <= mm.cfg.SubnetThreshold {
		return nil
	}

	mm.banned[subnet] = struct{}{}
	delete(mm.subnetHits, subnet)
	mm.logger.Warn("subnet banned", slog.String("subnet", subnet))

	for _, c := range mm.registry.All() {
		if subnet24(c.RemoteIP) == subnet {
			mm.removeLocked(c.ID)
			mm.kicker.Kick(c.ID)
		}
	}
	return model.ErrSubnetBanned
}

// Tick runs one matchmaking pass: drop stale entries, fill waiting public
// sessions, open a new public session if enough players remain, pair duels
func (mm *Matchmaker) Tick(now time.Time) {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	mm.dropStaleLocked()
	mm.fillPublicLocked()
	mm.openPublicLocked()
	mm.pairDuelsLocked(now)
}

// dropStaleLocked discards entries whose connection vanished or joined a
// session through another path
func (mm *Matchmaker) dropStaleLocked() {
	kept := mm.entries[:0]
	for _, e := range mm.entries {
		conn, err := mm.registry.Get(e.ConnectionID)
		if err != nil || conn.State == model.ConnStatePurged || conn.InSession() {
			delete(mm.byConn, e.ConnectionID)
			continue
		}
		kept = append(kept, e)
	}
	mm.entries = kept
}

func (mm *Matchmaker) fillPublicLocked() {
	for _, id := range mm.sessions.JoinablePublic() {
		spare := mm.sessions.SpareCapacity(id)
		if spare <= 0 {
			continue
		}
		mm.drainPartyLocked(id, spare)
	}
}

func (mm *Matchmaker) openPublicLocked() {
	waiting := 0
	for _, e := range mm.entries {
		if !e.Duel {
			waiting++
		}
	}
	if waiting < 2 {
		return
	}

	sess := mm.sessions.Create(model.KindPublicParty, model.DefaultSessionOptions(), false)
	go func(id model.SessionID) {
		_ = mm.sessions.GenerateLocations(context.Background(), id)
	}(sess.ID)

	mm.drainPartyLocked(sess.ID, mm.sessions.SpareCapacity(sess.ID))

	mm.logger.Info("public session opened",
		slog.String("session_id", string(sess.ID)),
	)
}

// drainPartyLocked moves up to n party entries into the session
func (mm *Matchmaker) drainPartyLocked(id model.SessionID, n int) {
	for _, e := range mm.snapshotLocked() {
		if n <= 0 {
			return
		}
		if e.Duel {
			continue
		}
		conn, err := mm.registry.Get(e.ConnectionID)
		if err != nil {
			mm.removeLocked(e.ConnectionID)
			continue
		}
		if err := mm.sessions.AddPlayer(id, conn, false); err != nil {
			if err == model.ErrSessionFull {
				return
			}
			mm.removeLocked(e.ConnectionID)
			continue
		}
		mm.removeLocked(e.ConnectionID)
		n--
	}
}

func (mm *Matchmaker) pairDuelsLocked(now time.Time) {
	// Widen first so a long-waiting entry can match in the same pass
	for _, e := range mm.entries {
		if !e.Duel || !e.Ranked || e.Widened {
			continue
		}
		if now.Sub(e.EnqueuedAt) < mm.cfg.DuelWidenAfter {
			continue
		}
		e.RangeLow = 0
		e.RangeHigh = rating.Max
		e.Widened = true
		mm.sender.Send(e.ConnectionID, protocol.DuelRange{
			Type: protocol.TypeDuelRange,
			Low:  e.RangeLow,
			High: e.RangeHigh,
		})
	}

	for _, a := range mm.snapshotLocked() {
		if _, ok := mm.byConn[a.ConnectionID]; !ok || !a.Duel {
			continue
		}
		for _, b := range mm.snapshotLocked() {
			if b.ConnectionID == a.ConnectionID || !b.Duel {
				continue
			}
			if !duelCompatible(a, b) {
				continue
			}
			mm.matchDuelLocked(a, b)
			break
		}
	}
}

// duelCompatible: unranked entries pair first-come first-matched, guests
// only with other guests; ranked entries need mutually acceptable ranges
func duelCompatible(a, b *model.QueueEntry) bool {
	if a.Ranked != b.Ranked {
		return false
	}
	if !a.Ranked {
		return a.Guest == b.Guest
	}
	return a.Accepts(b.Rating) && b.Accepts(a.Rating)
}

func (mm *Matchmaker) matchDuelLocked(a, b *model.QueueEntry) {
	connA, errA := mm.registry.Get(a.ConnectionID)
	connB, errB := mm.registry.Get(b.ConnectionID)
	if errA != nil {
		mm.removeLocked(a.ConnectionID)
		return
	}
	if errB != nil {
		mm.removeLocked(b.ConnectionID)
		return
	}

	sess := mm.sessions.Create(model.KindDuel, model.DuelSessionOptions(), a.Ranked)
	if a.Ranked {
		mm.sessions.SetDuelOutcomes(sess.ID, rating.Outcomes(connA.Rating, connB.Rating))
	}

	mm.removeLocked(a.ConnectionID)
	mm.removeLocked(b.ConnectionID)

	if err := mm.sessions.AddPlayer(sess.ID, connA, false); err != nil {
		mm.logger.Warn("duel seat failed", slog.String("error", err.Error()))
	}
	if err := mm.sessions.AddPlayer(sess.ID, connB, false); err != nil {
		mm.logger.Warn("duel seat failed", slog.String("error", err.Error()))
	}

	go func(id model.SessionID) {
		_ = mm.sessions.GenerateLocations(context.Background(), id)
	}(sess.ID)

	mm.logger.Info("duel paired",
		slog.String("session_id", string(sess.ID)),
		slog.Bool("ranked", a.Ranked),
	)
}

// snapshotLocked copies the entry slice so callers can mutate the queue
// while iterating
func (mm *Matchmaker) snapshotLocked() []*model.QueueEntry {
	out := make([]*model.QueueEntry, len(mm.entries))
	copy(out, mm.entries)
	return out
}

// subnet24 maps an IPv4 address to its /24 prefix. Non-IPv4 addresses map
// to themselves.
func subnet24(ip string) string {
	if ip == "" {
		return ""
	}
	i := strings.LastIndexByte(ip, '.')
	if i < 0 {
		return ip
	}
	return ip[:i]
}
