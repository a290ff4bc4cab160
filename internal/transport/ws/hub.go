// Package ws is the websocket transport: one upgrade endpoint, one
// read/write pump pair per socket, and a hub that routes decoded messages
// into the session core. The hub owns no game state.
package ws

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/atlasguess/atlasguess/internal/dependencies/clock"
	"github.com/atlasguess/atlasguess/internal/dependencies/random"
	"github.com/atlasguess/atlasguess/internal/history"
	"github.com/atlasguess/atlasguess/internal/matchmaker"
	"github.com/atlasguess/atlasguess/internal/model"
	"github.com/atlasguess/atlasguess/internal/protocol"
	"github.com/atlasguess/atlasguess/internal/rating"
	"github.com/atlasguess/atlasguess/internal/registry"
	"github.com/atlasguess/atlasguess/internal/session"
)

const (
	guestNameDigits = 4

	// inviteCooldown bounds how often one connection can be invited
	inviteCooldown = 5 * time.Second
)

// Hub tracks live sockets and routes their messages. It implements
// session.Sender and matchmaker.Kicker.
type Hub struct {
	mu      sync.RWMutex
	clients map[model.ConnectionID]*client

	registry    *registry.Registry
	sessions    *session.Manager
	matchmaker  *matchmaker.Matchmaker
	verifier    history.Verifier
	clock       clock.Clock
	random      random.Random
	maintenance *atomic.Bool
	logger      *slog.Logger

	upgrader websocket.Upgrader
}

// NewHub constructs a Hub
func NewHub(
	reg *registry.Registry,
	sessions *session.Manager,
	mm *matchmaker.Matchmaker,
	verifier history.Verifier,
	clk clock.Clock,
	rnd random.Random,
	maintenance *atomic.Bool,
	logger *slog.Logger,
) *Hub {
	return &Hub{
		clients:     make(map[model.ConnectionID]*client),
		registry:    reg,
		sessions:    sessions,
		matchmaker:  mm,
		verifier:    verifier,
		clock:       clk,
		random:      rnd,
		maintenance: maintenance,
		logger:      logger.With(slog.String("component", "ws")),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Send implements session.Sender: best-effort, never blocks
func (h *Hub) Send(id model.ConnectionID, msg protocol.ServerMessage) {
	h.mu.RLock()
	c, ok := h.clients[id]
	h.mu.RUnlock()
	if !ok {
		return
	}

	frame := protocol.Encode(msg)
	if frame == nil {
		return
	}
	if !c.enqueue(frame) {
		h.logger.Debug("send buffer full, frame dropped",
			slog.String("connection_id", string(id)),
		)
	}
}

// Kick implements matchmaker.Kicker: force-closes a socket
func (h *Hub) Kick(id model.ConnectionID) {
	h.mu.RLock()
	c, ok := h.clients[id]
	h.mu.RUnlock()
	if ok {
		c.close()
	}
}

// HandleWS upgrades the request and registers a fresh guest connection
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	ip := remoteIP(r)
	if h.matchmaker.SubnetBanned(ip) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	sock, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", slog.String("error", err.Error()))
		return
	}

	now := h.clock.Now()
	conn := &model.Connection{
		ID:          model.ConnectionID(uuid.NewString()),
		Username:    "Guest" + h.random.String(guestNameDigits, "0123456789"),
		IsGuest:     true,
		Rating:      rating.Initial,
		League:      rating.League(rating.Initial),
		RejoinToken: uuid.NewString(),
		State:       model.ConnStateConnected,
		RemoteIP:    ip,
		CreatedAt:   now,
	}
	h.registry.Add(conn)

	c := newClient(conn.ID, sock)
	h.mu.Lock()
	h.clients[conn.ID] = c
	h.mu.Unlock()

	go c.writePump()
	go c.readPump(h)

	if h.maintenance.Load() {
		h.Send(conn.ID, protocol.RestartQueued{Type: protocol.TypeRestartQueued, Value: true})
	}

	h.logger.Info("socket opened", slog.String("connection_id", string(conn.ID)))
}

// disconnect tears the socket down and starts the grace window. Session
// membership survives until the registry purges the connection.
func (h *Hub) disconnect(c *client) {
	c.close()

	h.mu.Lock()
	if h.clients[c.id] == c {
		delete(h.clients, c.id)
	}
	h.mu.Unlock()

	h.matchmaker.Dequeue(c.id)
	h.registry.MarkDisconnected(c.id)

	h.logger.Info("socket closed", slog.String("connection_id", string(c.id)))
}

// Shutdown force-closes every socket and waits for the read pumps to
// return, so no handler mutates game state afterwards. Call with the
// listener already stopped.
func (h *Hub) Shutdown() {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.close()
	}
	for _, c := range clients {
		<-c.gone
	}
}

// Broadcast sends one message to every live socket
func (h *Hub) Broadcast(msg protocol.ServerMessage) {
	frame := protocol.Encode(msg)
	if frame == nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		c.enqueue(frame)
	}
}

// handleMessage decodes and routes one inbound frame. Malformed or
// out-of-context frames are dropped.
func (h *Hub) handleMessage(c *client, data []byte) {
	msg, err := protocol.DecodeClient(data)
	if err != nil {
		return
	}

	if v, ok := msg.(protocol.Verify); ok {
		h.handleVerify(c, v)
		return
	}
	if !c.verified {
		return
	}

	conn, err := h.registry.Get(c.id)
	if err != nil {
		return
	}

	switch m := msg.(type) {
	case protocol.Pong, protocol.Screen:
		// client-side liveness and telemetry, nothing to do

	case protocol.Place:
		if m.Validate() != nil || !conn.InSession() {
			return
		}
		point := model.Point{Lat: m.LatLong[0], Lng: m.LatLong[1]}
		_ = h.sessions.SetGuess(conn.SessionID, conn.ID, point, m.Final)

	case protocol.Chat:
		if m.Validate() != nil || !conn.InSession() {
			return
		}
		_ = h.sessions.Chat(conn.SessionID, conn.ID, m.Message)

	case protocol.CreatePrivateGame:
		h.handleCreatePrivate(conn, m)

	case protocol.JoinPrivateGame:
		h.handleJoinPrivate(conn, m)

	case protocol.StartGameHost:
		if conn.InSession() {
			_ = h.sessions.StartByHost(conn.SessionID, conn.ID)
		}

	case protocol.EditPrivateGame:
		h.handleEditPrivate(conn, m)

	case protocol.ResetGame:
		if conn.InSession() {
			if err := h.sessions.ResetByHost(conn.SessionID, conn.ID); err == nil {
				h.generateLocations(conn.SessionID)
			}
		}

	case protocol.PublicParty:
		_ = h.matchmaker.Enqueue(conn, false, false)

	case protocol.PublicDuel:
		h.handleDuelRequest(c, conn, true)

	case protocol.UnrankedDuel:
		h.handleDuelRequest(c, conn, false)

	case protocol.LeaveQueue:
		h.matchmaker.Dequeue(conn.ID)

	case protocol.LeaveGame:
		if conn.InSession() {
			_ = h.sessions.RemovePlayer(conn.SessionID, conn.ID, true)
		}

	case protocol.InviteFriend:
		h.handleInviteFriend(conn, m)

	case protocol.AcceptInvite:
		h.handleAcceptInvite(conn, m)
	}
}

// handleVerify completes the handshake: reclaim a disconnected connection
// if the client presented a valid key, otherwise resolve the account or
// confirm guest status
func (h *Hub) handleVerify(c *client, v protocol.Verify) {
	if c.verified {
		return
	}

	if v.RejoinToken != "" && h.reclaim(c, v.RejoinToken) {
		return
	}

	conn, err := h.registry.Get(c.id)
	if err != nil {
		return
	}

	if v.Secret != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		acct, err := h.verifier.VerifyAccount(ctx, v.Secret)
		cancel()
		if err == nil {
			// An account reconnecting within grace claims its old seat
			if h.reclaim(c, string(acct.ID)) {
				return
			}
			conn.AccountID = acct.ID
			conn.Username = acct.Username
			conn.Verified = true
			conn.IsGuest = false
			if acct.Rating > 0 {
				conn.Rating = acct.Rating
			}
			conn.League = rating.League(conn.Rating)
			h.registry.SetAccount(conn.ID, acct.ID)
		}
	}

	c.verified = true

	ack := protocol.NewVerifyAck("", "")
	if conn.IsGuest {
		ack = protocol.NewVerifyAck(conn.Username, conn.RejoinToken)
	}
	h.Send(c.id, ack)
}

// reclaim swaps this socket onto a grace-state connection found under key.
// The fresh guest connection created at upgrade is discarded.
func (h *Hub) reclaim(c *client, key string) bool {
	old := h.registry.Reclaim(key)
	if old == nil {
		return false
	}

	staleID := c.id

	h.mu.Lock()
	delete(h.clients, staleID)
	c.id = old.ID
	// A zombie socket for the old id loses its hub slot to the reclaim
	if prev, ok := h.clients[old.ID]; ok {
		prev.close()
	}
	h.clients[old.ID] = c
	h.mu.Unlock()

	h.registry.Purge(staleID)
	c.verified = true

	ack := protocol.NewVerifyAck("", "")
	if old.IsGuest {
		ack = protocol.NewVerifyAck(old.Username, old.RejoinToken)
	}
	h.Send(old.ID, ack)

	if old.SessionID != "" {
		if err := h.sessions.Resume(old.SessionID, old.ID); err != nil {
			old.SessionID = ""
		}
	}

	h.logger.Info("connection reclaimed",
		slog.String("connection_id", string(old.ID)),
	)
	return true
}

func (h *Hub) handleCreatePrivate(conn *model.Connection, m protocol.CreatePrivateGame) {
	if conn.InSession() || conn.InQueue {
		return
	}
	if h.maintenance.Load() {
		h.Send(conn.ID, protocol.NewToast("maintenanceMode", "error"))
		return
	}
	if m.Validate() != nil {
		return
	}

	opts := model.DefaultSessionOptions()
	opts.RoundCount = m.Rounds
	opts.TimePerRound = time.Duration(m.TimePerRound) * time.Second
	opts.Area = m.Location
	if m.MaxDist > 0 {
		opts.MaxDistKm = m.MaxDist
	}

	sess := h.sessions.Create(model.KindPrivateParty, opts, false)
	if err := h.sessions.AddPlayer(sess.ID, conn, true); err != nil {
		return
	}
	h.generateLocations(sess.ID)
}

func (h *Hub) handleJoinPrivate(conn *model.Connection, m protocol.JoinPrivateGame) {
	if conn.InSession() || conn.InQueue {
		return
	}

	id, err := h.sessions.FindByCode(strings.TrimSpace(m.Code))
	if err != nil {
		h.Send(conn.ID, protocol.JoinError{Type: protocol.TypeJoinError, Error: "invalidCode"})
		return
	}

	switch err := h.sessions.AddPlayer(id, conn, false); err {
	case nil:
	case model.ErrSessionFull:
		h.Send(conn.ID, protocol.JoinError{Type: protocol.TypeJoinError, Error: "gameFull"})
	case model.ErrWrongState:
		h.Send(conn.ID, protocol.JoinError{Type: protocol.TypeJoinError, Error: "gameStarted"})
	default:
		h.Send(conn.ID, protocol.JoinError{Type: protocol.TypeJoinError, Error: "invalidCode"})
	}
}

func (h *Hub) handleEditPrivate(conn *model.Connection, m protocol.EditPrivateGame) {
	if !conn.InSession() || m.Validate() != nil {
		return
	}

	opts := model.DefaultSessionOptions()
	opts.RoundCount = m.Rounds
	opts.TimePerRound = time.Duration(m.TimePerRound) * time.Second
	opts.Area = m.Location
	if m.MaxDist > 0 {
		opts.MaxDistKm = m.MaxDist
	}

	if err := h.sessions.EditOptions(conn.SessionID, conn.ID, opts); err == nil {
		h.generateLocations(conn.SessionID)
	}
}

func (h *Hub) handleDuelRequest(c *client, conn *model.Connection, ranked bool) {
	if h.maintenance.Load() {
		h.Send(conn.ID, protocol.NewToast("maintenanceMode", "error"))
		return
	}
	switch err := h.matchmaker.Enqueue(conn, true, ranked); err {
	case nil:
	case model.ErrSubnetBanned:
		c.close()
	case model.ErrNotVerified:
		h.Send(conn.ID, protocol.NewToast("loginRequired", "error"))
	}
}

// handleInviteFriend relays a private-lobby invitation to another live
// connection. The friendship relation itself lives in the account store;
// the server requires both parties to be signed in.
func (h *Hub) handleInviteFriend(conn *model.Connection, m protocol.InviteFriend) {
	if conn.AccountID == "" || !conn.InSession() || m.FriendID == "" {
		return
	}
	code, err := h.sessions.InviteCode(conn.SessionID)
	if err != nil {
		return
	}

	friend, err := h.registry.Get(model.ConnectionID(m.FriendID))
	if err != nil || friend.State != model.ConnStateConnected || friend.AccountID == "" {
		return
	}
	if friend.SessionID == conn.SessionID {
		h.Send(conn.ID, protocol.NewToast("alreadyInYourGame", "error"))
		return
	}

	now := h.clock.Now()
	if now.Sub(friend.LastInvitedAt) < inviteCooldown {
		h.Send(conn.ID, protocol.NewToast("inviteCooldown", "error"))
		return
	}
	friend.LastInvitedAt = now

	h.Send(friend.ID, protocol.Invite{
		Type:          protocol.TypeInvite,
		Code:          code,
		InvitedByName: conn.Username,
		InvitedByID:   conn.ID,
	})
	h.Send(conn.ID, protocol.NewToast("inviteSent", "success"))
}

// handleAcceptInvite joins the invited lobby, leaving any queue or current
// session first, and notifies the inviter on success
func (h *Hub) handleAcceptInvite(conn *model.Connection, m protocol.AcceptInvite) {
	if conn.AccountID == "" || m.Code == "" {
		return
	}

	id, err := h.sessions.FindByCode(strings.TrimSpace(m.Code))
	if err != nil {
		h.Send(conn.ID, protocol.NewToast("invalidGameCode", "error"))
		return
	}

	if conn.InQueue {
		h.matchmaker.Dequeue(conn.ID)
	}
	if conn.InSession() {
		_ = h.sessions.RemovePlayer(conn.SessionID, conn.ID, true)
	}

	switch err := h.sessions.AddPlayer(id, conn, false); err {
	case nil:
	case model.ErrSessionFull:
		h.Send(conn.ID, protocol.NewToast("gameIsFull", "error"))
		return
	default:
		h.Send(conn.ID, protocol.NewToast("invalidGameCode", "error"))
		return
	}

	h.Send(conn.ID, protocol.NewToast("inviteAccepted", "success"))
	if inviter, err := h.registry.Get(model.ConnectionID(m.InvitedBy)); err == nil {
		h.Send(inviter.ID, protocol.NewToast("inviteAcceptedBy", "success"))
	}
}

func (h *Hub) generateLocations(id model.SessionID) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = h.sessions.GenerateLocations(ctx, id)
	}()
}

// remoteIP prefers the first X-Forwarded-For hop, falling back to the
// socket peer address
func remoteIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
