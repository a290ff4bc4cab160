package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/atlasguess/atlasguess/internal/geo"
	"github.com/atlasguess/atlasguess/internal/history"
	"github.com/atlasguess/atlasguess/internal/model"
	"github.com/atlasguess/atlasguess/internal/protocol"
	"github.com/atlasguess/atlasguess/internal/rating"
)

// chatCooldown bounds per-connection chat frequency
const chatCooldown = 500 * time.Millisecond

type endReason int

const (
	endComplete endReason = iota // all rounds played
	endHealth                    // duel health reached zero
	endForfeit                   // duel member left or was purged
)

// AddPlayer inserts a connection into a session's roster. Full rosters
// reject silently with ErrSessionFull.
func (m *Manager) AddPlayer(id model.SessionID, conn *model.Connection, isHost bool) error {
	e, err := m.entry(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.dead {
		return model.ErrSessionNotFound
	}
	return m.addPlayerLocked(e, conn, isHost)
}

func (m *Manager) addPlayerLocked(e *entry, conn *model.Connection, isHost bool) error {
	sess := e.sess
	if sess.State != model.SessionStateWaiting {
		return model.ErrWrongState
	}
	if sess.MemberCount() >= sess.Options.MaxPlayers {
		return model.ErrSessionFull
	}
	if sess.Member(conn.ID) != nil {
		return model.ErrAlreadyInSession
	}

	slot := &model.Slot{
		ConnectionID: conn.ID,
		Username:     conn.Username,
		IsHost:       isHost && sess.Kind == model.KindPrivateParty,
	}

	if sess.Kind == model.KindDuel {
		slot.Score = model.DuelStartingHealth
		placed := false
		for i := range sess.Duel.Slots {
			if sess.Duel.Slots[i] == nil {
				sess.Duel.Slots[i] = slot
				placed = true
				break
			}
		}
		if !placed {
			return model.ErrSessionFull
		}
	}

	// Existing members get the delta; the newcomer gets the full snapshot
	m.broadcastLocked(sess, protocol.NewPlayerAdd(slotView(slot)))

	sess.Roster = append(sess.Roster, slot)
	sess.UpdatedAt = m.clock.Now()

	conn.SessionID = sess.ID
	conn.InQueue = false

	m.sender.Send(conn.ID, m.buildSnapshot(sess, conn.ID, true, false))

	m.logger.Info("player added",
		slog.String("session_id", string(sess.ID)),
		slog.String("connection_id", string(conn.ID)),
		slog.Int("roster_size", sess.MemberCount()),
	)
	return nil
}

// Resume resends the full session view to a member whose socket was
// reclaimed after a disconnect
func (m *Manager) Resume(id model.SessionID, connID model.ConnectionID) error {
	e, err := m.entry(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sess.Member(connID) == nil {
		return model.ErrNotInSession
	}
	m.sender.Send(connID, m.buildSnapshot(e.sess, connID, true, e.sess.State == model.SessionStateEnd))
	return nil
}

// RemovePlayer removes a connection from a session. graceful is false for
// grace-window purges. May destroy the session or end a duel by forfeit.
func (m *Manager) RemovePlayer(id model.SessionID, connID model.ConnectionID, graceful bool) error {
	e, err := m.entry(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	remove := false
	if !e.dead {
		remove = m.removePlayerLocked(e, connID, graceful)
		if remove {
			e.dead = true
		}
	}
	e.mu.Unlock()

	if remove {
		m.remove(id)
	}
	return nil
}

func (m *Manager) removePlayerLocked(e *entry, connID model.ConnectionID, graceful bool) (destroy bool) {
	sess := e.sess
	slot := sess.Member(connID)
	if slot == nil {
		return false
	}
	wasHost := slot.IsHost

	if graceful {
		m.sender.Send(connID, protocol.GameShutdown{Type: protocol.TypeGameShutdown})
	}

	for i, s := range sess.Roster {
		if s.ConnectionID == connID {
			sess.Roster = append(sess.Roster[:i], sess.Roster[i+1:]...)
			break
		}
	}
	if sess.Duel != nil {
		if role, ok := sess.Duel.RoleOf(connID); ok {
			sess.Duel.Slots[role] = nil
		}
	}
	sess.UpdatedAt = m.clock.Now()

	if conn, err := m.registry.Get(connID); err == nil {
		conn.SessionID = ""
	}

	m.broadcastLocked(sess, protocol.NewPlayerRemove(connID))

	now := m.clock.Now()

	// A started duel dropping below two members ends immediately with the
	// remaining member as winner, regardless of health. Before start there
	// is nothing to forfeit; the lone opponent goes back to the menu.
	if sess.Kind == model.KindDuel && !sess.Ended && sess.MemberCount() == 1 {
		if sess.Round >= 1 {
			m.endLocked(e, now, endForfeit, sess.Roster[0].ConnectionID, connID)
			return false
		}
		return m.destroyLocked(e)
	}

	if sess.MemberCount() == 0 || (wasHost && sess.Kind != model.KindDuel) {
		return m.destroyLocked(e)
	}

	if sess.State == model.SessionStateGuess {
		m.checkRemainingLocked(e, now)
	}
	return false
}

// destroyLocked shuts a session down, detaching every remaining member.
// The caller removes the entry from the maps.
func (m *Manager) destroyLocked(e *entry) bool {
	sess := e.sess
	for _, slot := range sess.Roster {
		m.sender.Send(slot.ConnectionID, protocol.GameShutdown{Type: protocol.TypeGameShutdown})
		if conn, err := m.registry.Get(slot.ConnectionID); err == nil {
			conn.SessionID = ""
		}
	}
	sess.Roster = nil

	m.logger.Info("session destroyed", slog.String("session_id", string(sess.ID)))
	return true
}

// StartByHost starts a private session on the host's request
func (m *Manager) StartByHost(id model.SessionID, connID model.ConnectionID) error {
	e, err := m.entry(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	slot := e.sess.Member(connID)
	if slot == nil {
		return model.ErrNotInSession
	}
	if !slot.IsHost {
		return model.ErrNotHost
	}
	return m.startLocked(e, m.clock.Now())
}

func (m *Manager) startLocked(e *entry, now time.Time) error {
	sess := e.sess
	if sess.State != model.SessionStateWaiting {
		return model.ErrWrongState
	}
	if sess.MemberCount() < 2 {
		return model.ErrInsufficientPlayers
	}
	if !sess.LocationsReady() {
		return model.ErrLocationsNotReady
	}

	sess.State = model.SessionStateGetReady
	sess.Round = 1
	sess.NextEventAt = now.Add(m.cfg.GetReadyLead)
	sess.UpdatedAt = now

	m.broadcastEachLocked(sess, func(id model.ConnectionID) protocol.ServerMessage {
		return m.buildSnapshot(sess, id, true, false)
	})

	m.logger.Info("session started",
		slog.String("session_id", string(sess.ID)),
		slog.Int("roster_size", sess.MemberCount()),
		slog.Int("rounds", sess.Options.RoundCount),
	)
	return nil
}

// SetGuess records a guess for the current round. Out-of-context calls and
// already-finalized members drop silently.
func (m *Manager) SetGuess(id model.SessionID, connID model.ConnectionID, point model.Point, final bool) error {
	e, err := m.entry(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	sess := e.sess
	if sess.State != model.SessionStateGuess {
		return model.ErrWrongState
	}
	slot := sess.Member(connID)
	if slot == nil {
		return model.ErrNotInSession
	}
	if slot.Final {
		return model.ErrAlreadyFinal
	}

	now := m.clock.Now()
	slot.Guess = &point
	slot.Final = final
	slot.GuessTook = now.Sub(sess.RoundOpenedAt)

	if final {
		m.broadcastLocked(sess, protocol.PlaceBroadcast{
			Type:    protocol.TypePlaceBcast,
			ID:      connID,
			Final:   true,
			LatLong: [2]float64{point.Lat, point.Lng},
		})
		m.checkRemainingLocked(e, now)
	}
	return nil
}

// checkRemainingLocked re-evaluates the deadline-pull rules once a member
// finalizes or leaves mid-guess
func (m *Manager) checkRemainingLocked(e *entry, now time.Time) {
	sess := e.sess

	unfinished := 0
	var lastSlot *model.Slot
	for _, slot := range sess.Roster {
		if !slot.Final {
			unfinished++
			lastSlot = slot
		}
	}

	remaining := sess.NextEventAt.Sub(now)

	if unfinished == 0 && remaining > m.cfg.AllFinalThreshold {
		sess.NextEventAt = now.Add(m.cfg.AllFinalSettle)
		m.stateUpdateLocked(sess)
		return
	}

	if unfinished == 1 && remaining > m.cfg.LastGuesserGrace {
		sess.NextEventAt = now.Add(m.cfg.LastGuesserGrace)
		m.stateUpdateLocked(sess)

		toast := protocol.NewToast("lastGuesser", "info")
		toast.Seconds = int(m.cfg.LastGuesserGrace / time.Second)
		m.sender.Send(lastSlot.ConnectionID, toast)
	}
}

// advanceLocked drives the state machine against the wall clock. Returns
// true when the session should be removed.
func (m *Manager) advanceLocked(e *entry, now time.Time) bool {
	sess := e.sess

	switch sess.State {
	case model.SessionStateWaiting:
		// Public sessions and duels auto-start; private ones wait for the host
		auto := sess.IsPublic() || sess.Kind == model.KindDuel
		if auto && sess.MemberCount() >= 2 && sess.LocationsReady() {
			_ = m.startLocked(e, now)
		}

	case model.SessionStateGetReady:
		if now.After(sess.NextEventAt) {
			sess.State = model.SessionStateGuess
			sess.RoundOpenedAt = now
			sess.NextEventAt = now.Add(sess.Options.TimePerRound)
			for _, slot := range sess.Roster {
				slot.Guess = nil
				slot.Final = false
				slot.GuessTook = 0
			}
			sess.UpdatedAt = now
			m.stateUpdateLocked(sess)
		}

	case model.SessionStateGuess:
		if now.After(sess.NextEventAt) {
			m.closeRoundLocked(e, now)
		}

	case model.SessionStateEnd:
		if now.After(sess.NextEventAt) {
			if sess.Kind == model.KindPrivateParty {
				m.resetLocked(e, now)
				go func(id model.SessionID) {
					_ = m.GenerateLocations(context.Background(), id)
				}(sess.ID)
			} else {
				return m.destroyLocked(e)
			}
		}
	}
	return false
}

// closeRoundLocked records the finished round, applies scores, and either
// opens the next round or ends the session
func (m *Manager) closeRoundLocked(e *entry, now time.Time) {
	sess := e.sess

	results := m.scoreRoundLocked(sess)
	m.applyPointsLocked(sess, results)

	// Guard against double-recording if the deadline fires twice
	if sess.LastSavedRound < sess.Round {
		if loc, ok := sess.CurrentLocation(); ok {
			sess.History = append(sess.History, model.RoundRecord{
				Round:    sess.Round,
				Location: loc,
				Results:  results,
			})
			sess.LastSavedRound = sess.Round
		}
	}

	switch {
	case sess.EarlyEnd:
		m.endLocked(e, now, endHealth, "", "")
	case sess.Round >= sess.Options.RoundCount:
		m.endLocked(e, now, endComplete, "", "")
	default:
		sess.Round++
		sess.State = model.SessionStateGetReady
		sess.NextEventAt = now.Add(m.cfg.WaitBetweenRounds)
		sess.UpdatedAt = now
		m.stateUpdateLocked(sess)
	}
}

// scoreRoundLocked computes every member's points for the current round
func (m *Manager) scoreRoundLocked(sess *model.Session) []model.GuessResult {
	loc, ok := sess.CurrentLocation()
	if !ok {
		return nil
	}

	results := make([]model.GuessResult, 0, len(sess.Roster))
	for _, slot := range sess.Roster {
		res := model.GuessResult{
			ConnectionID: slot.ConnectionID,
			Username:     slot.Username,
			Guess:        slot.Guess,
			Took:         slot.GuessTook,
		}
		if slot.Guess != nil {
			res.Points = geo.Points(loc.Point(), *slot.Guess, sess.Options.MaxDistKm)
		}
		results = append(results, res)
	}
	return results
}

// applyPointsLocked folds round results into running scores. Party members
// accumulate; duels subtract the round difference from the lower scorer's
// health and flag early termination at zero.
func (m *Manager) applyPointsLocked(sess *model.Session, results []model.GuessResult) {
	if sess.Kind != model.KindDuel {
		for _, res := range results {
			if slot := sess.Member(res.ConnectionID); slot != nil {
				slot.Score += res.Points
			}
		}
		return
	}

	p1 := sess.Duel.Slots[model.DuelP1]
	p2 := sess.Duel.Slots[model.DuelP2]
	if p1 == nil || p2 == nil {
		return
	}

	var pts [2]int
	for _, res := range results {
		if role, ok := sess.Duel.RoleOf(res.ConnectionID); ok {
			pts[role] = res.Points
		}
	}

	diff := pts[model.DuelP1] - pts[model.DuelP2]
	var loser *model.Slot
	switch {
	case diff > 0:
		loser = p2
	case diff < 0:
		loser = p1
		diff = -diff
	default:
		return
	}

	loser.Score -= diff
	if loser.Score <= 0 {
		loser.Score = 0
		sess.EarlyEnd = true
	}
}

// endLocked finishes a session: applies duel ratings, notifies the external
// stores, and broadcasts the terminal snapshot. Idempotent.
func (m *Manager) endLocked(e *entry, now time.Time, reason endReason, winnerID, loserID model.ConnectionID) {
	sess := e.sess
	if sess.Ended {
		return
	}
	sess.Ended = true
	sess.State = model.SessionStateEnd
	sess.NextEventAt = now.Add(m.cfg.EndLinger)
	sess.UpdatedAt = now

	if sess.Kind == model.KindDuel {
		m.finishDuelLocked(sess, reason, winnerID, loserID)
	}

	m.broadcastEachLocked(sess, func(id model.ConnectionID) protocol.ServerMessage {
		return m.buildSnapshot(sess, id, false, true)
	})

	summary := m.buildSummaryLocked(sess, now)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.recorder.RecordCompletedSession(ctx, summary); err != nil {
			m.logger.Warn("session summary write failed",
				slog.String("session_id", string(summary.SessionID)),
				slog.String("error", err.Error()),
			)
		}
	}()

	m.logger.Info("session ended",
		slog.String("session_id", string(sess.ID)),
		slog.Int("rounds_played", len(sess.History)),
	)
}

// finishDuelLocked resolves the duel outcome and applies the precomputed
// rating changes
func (m *Manager) finishDuelLocked(sess *model.Session, reason endReason, winnerID, loserID model.ConnectionID) {
	duel := sess.Duel
	forfeit := reason == endForfeit

	if !forfeit {
		p1 := duel.Slots[model.DuelP1]
		p2 := duel.Slots[model.DuelP2]
		if p1 != nil && p2 != nil {
			switch {
			case p1.Score > p2.Score:
				winnerID, loserID = p1.ConnectionID, p2.ConnectionID
			case p2.Score > p1.Score:
				winnerID, loserID = p2.ConnectionID, p1.ConnectionID
			}
		}
	}

	draw := winnerID == ""
	m.broadcastLocked(sess, protocol.DuelEnd{
		Type:     protocol.TypeDuelEnd,
		WinnerID: winnerID,
		Draw:     draw,
		Forfeit:  forfeit,
	})

	if !duel.Ranked || duel.Outcomes == nil {
		return
	}

	var pair model.RatingPair
	winnerRole := model.DuelP1
	if !draw {
		if role, ok := duel.RoleOf(winnerID); ok {
			winnerRole = role
		} else if role, ok := duel.RoleOf(loserID); ok {
			// Loser slot may already be detached on forfeit
			winnerRole = model.DuelRole(1 - int(role))
		}
	}
	switch {
	case draw:
		pair = duel.Outcomes.Draw
	case winnerRole == model.DuelP1:
		pair = duel.Outcomes.P1Wins
	default:
		pair = duel.Outcomes.P2Wins
	}

	newRatings := [2]int{pair.P1, pair.P2}
	ids := [2]model.ConnectionID{winnerID, loserID}
	outcomes := [2]string{"win", "loss"}
	if draw {
		// No winner or loser to key off; address both seats by role
		for role, slot := range duel.Slots {
			if slot != nil {
				ids[role] = slot.ConnectionID
			}
		}
		outcomes = [2]string{"draw", "draw"}
	}

	for i, id := range ids {
		if id == "" {
			continue
		}
		conn, err := m.registry.Get(id)
		if err != nil {
			continue
		}

		role, ok := duel.RoleOf(id)
		if !ok {
			// Detached forfeit loser: the opposite role of the winner
			role = model.DuelRole(1 - int(winnerRole))
			if i == 0 {
				role = winnerRole
			}
		}
		newRating := newRatings[role]

		opponent := model.AccountID("")
		if other, err := m.registry.Get(ids[1-i]); err == nil {
			opponent = other.AccountID
		}

		conn.Rating = newRating
		conn.League = rating.League(newRating)
		m.sender.Send(id, protocol.RatingUpdate{
			Type:   protocol.TypeRating,
			Rating: newRating,
			League: conn.League,
		})

		if conn.AccountID == "" {
			continue
		}
		meta := history.RatingMeta{
			SessionID: sess.ID,
			Opponent:  opponent,
			Outcome:   outcomes[i],
		}
		go func(accountID model.AccountID, newRating int, meta history.RatingMeta) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := m.recorder.ApplyRatingChange(ctx, accountID, newRating, meta); err != nil {
				m.logger.Warn("rating write failed",
					slog.String("account_id", string(accountID)),
					slog.String("error", err.Error()),
				)
			}
		}(conn.AccountID, newRating, meta)
	}
}

// ResetByHost returns an ended private lobby to waiting. The caller is
// responsible for regenerating locations.
func (m *Manager) ResetByHost(id model.SessionID, connID model.ConnectionID) error {
	e, err := m.entry(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	slot := e.sess.Member(connID)
	if slot == nil {
		return model.ErrNotInSession
	}
	if !slot.IsHost {
		return model.ErrNotHost
	}
	if e.sess.Kind != model.KindPrivateParty || e.sess.State != model.SessionStateEnd {
		return model.ErrWrongState
	}

	m.resetLocked(e, m.clock.Now())
	return nil
}

func (m *Manager) resetLocked(e *entry, now time.Time) {
	sess := e.sess
	sess.State = model.SessionStateWaiting
	sess.Round = 0
	sess.LastSavedRound = 0
	sess.EarlyEnd = false
	sess.Ended = false
	sess.Locations = nil
	sess.History = nil
	sess.NextEventAt = time.Time{}
	for _, slot := range sess.Roster {
		slot.Score = 0
		slot.Guess = nil
		slot.Final = false
		slot.GuessTook = 0
	}
	sess.UpdatedAt = now

	m.stateUpdateLocked(sess)
}

// EditOptions lets the host adjust a private lobby before start. Cleared
// locations must be regenerated by the caller.
func (m *Manager) EditOptions(id model.SessionID, connID model.ConnectionID, opts model.SessionOptions) error {
	e, err := m.entry(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	sess := e.sess
	slot := sess.Member(connID)
	if slot == nil {
		return model.ErrNotInSession
	}
	if !slot.IsHost {
		return model.ErrNotHost
	}
	if sess.Kind != model.KindPrivateParty || sess.State != model.SessionStateWaiting {
		return model.ErrWrongState
	}

	opts.MaxPlayers = sess.Options.MaxPlayers
	sess.Options = opts
	sess.Locations = nil
	sess.UpdatedAt = m.clock.Now()

	m.broadcastLocked(sess, protocol.MaxDistUpdate{Type: protocol.TypeMaxDist, MaxDist: opts.MaxDistKm})
	m.stateUpdateLocked(sess)
	return nil
}

// Chat relays a roster chat message, rate limited per connection
func (m *Manager) Chat(id model.SessionID, connID model.ConnectionID, message string) error {
	e, err := m.entry(id)
	if err != nil {
		return err
	}

	conn, err := m.registry.Get(connID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sess.Member(connID) == nil {
		return model.ErrNotInSession
	}

	now := m.clock.Now()
	if now.Sub(conn.LastChatAt) < chatCooldown {
		return nil
	}
	conn.LastChatAt = now

	m.broadcastLocked(e.sess, protocol.ChatBroadcast{
		Type:    protocol.TypeChatBcast,
		ID:      connID,
		Name:    conn.Username,
		Message: message,
	})
	return nil
}

// broadcastLocked sends one message to every roster member
func (m *Manager) broadcastLocked(sess *model.Session, msg protocol.ServerMessage) {
	for _, slot := range sess.Roster {
		m.sender.Send(slot.ConnectionID, msg)
	}
}

// broadcastEachLocked sends a per-member message to every roster member
func (m *Manager) broadcastEachLocked(sess *model.Session, build func(model.ConnectionID) protocol.ServerMessage) {
	for _, slot := range sess.Roster {
		m.sender.Send(slot.ConnectionID, build(slot.ConnectionID))
	}
}

// stateUpdateLocked broadcasts the lightweight session state
func (m *Manager) stateUpdateLocked(sess *model.Session) {
	m.broadcastLocked(sess, m.buildSnapshot(sess, "", false, false))
}

// buildSnapshot assembles the session view for one member (or the shared
// view if myID is empty)
func (m *Manager) buildSnapshot(sess *model.Session, myID model.ConnectionID, includeLocations, includeHistory bool) protocol.GameSnapshot {
	snap := protocol.GameSnapshot{
		Type:         protocol.TypeGame,
		State:        sess.State,
		Kind:         sess.Kind,
		CurRound:     sess.Round,
		Rounds:       sess.Options.RoundCount,
		TimePerRound: sess.Options.TimePerRound.Milliseconds(),
		MaxPlayers:   sess.Options.MaxPlayers,
		MaxDist:      sess.Options.MaxDistKm,
		Public:       sess.IsPublic(),
		Generated:    len(sess.Locations),
	}
	if !sess.NextEventAt.IsZero() {
		snap.NextEvtTime = sess.NextEventAt.UnixMilli()
	}

	for _, slot := range sess.Roster {
		snap.Players = append(snap.Players, slotView(slot))
	}

	if myID != "" {
		snap.MyID = myID
		if slot := sess.Member(myID); slot != nil {
			snap.Host = slot.IsHost
		}
		snap.Code = sess.Code
	}
	if includeLocations {
		snap.Locations = sess.Locations
	}
	if includeHistory {
		snap.History = sess.History
	}
	return snap
}

// buildSummaryLocked assembles the completed-session record
func (m *Manager) buildSummaryLocked(sess *model.Session, now time.Time) history.SessionSummary {
	summary := history.SessionSummary{
		SessionID:    sess.ID,
		Kind:         sess.Kind,
		RoundsPlayed: len(sess.History),
		FinishedAt:   now,
	}
	for _, slot := range sess.Roster {
		res := history.PlayerResult{
			ConnectionID: slot.ConnectionID,
			Username:     slot.Username,
			Score:        slot.Score,
		}
		if conn, err := m.registry.Get(slot.ConnectionID); err == nil {
			res.AccountID = conn.AccountID
			res.RatingAfter = conn.Rating
		}
		summary.Players = append(summary.Players, res)
	}
	return summary
}

func slotView(slot *model.Slot) protocol.SlotView {
	return protocol.SlotView{
		ID:       slot.ConnectionID,
		Username: slot.Username,
		Score:    slot.Score,
		Final:    slot.Final,
		Host:     slot.IsHost,
	}
}
