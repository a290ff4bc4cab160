// Package registry tracks every client connection known to the server,
// including the disconnect grace window that lets a dropped socket reclaim
// its session membership.
package registry

import (
	"log/slog"
	"sync"
	"time"

	"github.com/atlasguess/atlasguess/internal/dependencies/clock"
	"github.com/atlasguess/atlasguess/internal/model"
)

// DefaultGraceWindow is how long a disconnected connection's membership is
// preserved before it is purged
const DefaultGraceWindow = 30 * time.Second

// Registry is the explicit owner of all Connection records. Sessions hold
// connection IDs only; lifecycle transitions happen exclusively here.
type Registry struct {
	mu sync.RWMutex

	conns     map[model.ConnectionID]*model.Connection
	byAccount map[model.AccountID]model.ConnectionID
	byToken   map[string]model.ConnectionID

	clock  clock.Clock
	grace  time.Duration
	logger *slog.Logger
}

// New creates an empty registry
func New(clk clock.Clock, grace time.Duration, logger *slog.Logger) *Registry {
	if grace <= 0 {
		grace = DefaultGraceWindow
	}
	return &Registry{
		conns:     make(map[model.ConnectionID]*model.Connection),
		byAccount: make(map[model.AccountID]model.ConnectionID),
		byToken:   make(map[string]model.ConnectionID),
		clock:     clk,
		grace:     grace,
		logger:    logger.With(slog.String("component", "registry")),
	}
}

// Add registers a new connection
func (r *Registry) Add(conn *model.Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn.State = model.ConnStateConnected
	r.conns[conn.ID] = conn
	if conn.AccountID != "" {
		r.byAccount[conn.AccountID] = conn.ID
	}
	if conn.RejoinToken != "" {
		r.byToken[conn.RejoinToken] = conn.ID
	}
}

// Get returns the connection with the given ID, or an error
func (r *Registry) Get(id model.ConnectionID) (*model.Connection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.conns[id]
	if !ok {
		return nil, model.ErrConnectionNotFound
	}
	return conn, nil
}

// SetAccount indexes a connection by account after verification
func (r *Registry) SetAccount(id model.ConnectionID, accountID model.AccountID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[id]
	if !ok {
		return
	}
	conn.AccountID = accountID
	r.byAccount[accountID] = id
}

// MarkDisconnected starts the grace window for a connection whose socket
// closed. Session membership is preserved until the window elapses.
func (r *Registry) MarkDisconnected(id model.ConnectionID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[id]
	if !ok || conn.State != model.ConnStateConnected {
		return
	}
	conn.State = model.ConnStateGrace
	conn.DisconnectedAt = r.clock.Now()

	r.logger.Info("connection entered grace",
		slog.String("connection_id", string(id)),
		slog.String("session_id", string(conn.SessionID)),
	)
}

// Reclaim atomically claims a disconnected connection for a fresh socket.
// The key is the account ID for registered players or the rejoin token for
// guests. Returns the reclaimed connection, or nil if no grace-state
// connection matches.
func (r *Registry) Reclaim(key string) *model.Connection {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byAccount[model.AccountID(key)]
	if !ok {
		id, ok = r.byToken[key]
	}
	if !ok {
		return nil
	}

	conn, ok := r.conns[id]
	if !ok || conn.State != model.ConnStateGrace {
		return nil
	}

	conn.State = model.ConnStateConnected
	conn.DisconnectedAt = time.Time{}

	r.logger.Info("connection reclaimed",
		slog.String("connection_id", string(conn.ID)),
		slog.String("session_id", string(conn.SessionID)),
	)
	return conn
}

// ExpiredGrace returns connections whose grace window has elapsed as of now
func (r *Registry) ExpiredGrace(now time.Time) []*model.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var expired []*model.Connection
	for _, conn := range r.conns {
		if conn.State == model.ConnStateGrace && now.Sub(conn.DisconnectedAt) >= r.grace {
			expired = append(expired, conn)
		}
	}
	return expired
}

// Purge removes a connection permanently. The caller is responsible for
// notifying its session.
func (r *Registry) Purge(id model.ConnectionID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[id]
	if !ok {
		return
	}
	conn.State = model.ConnStatePurged
	delete(r.conns, id)
	if conn.AccountID != "" {
		delete(r.byAccount, conn.AccountID)
	}
	if conn.RejoinToken != "" {
		delete(r.byToken, conn.RejoinToken)
	}
}

// Count returns the number of connections not in grace
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, conn := range r.conns {
		if conn.State == model.ConnStateConnected {
			n++
		}
	}
	return n
}

// All returns every tracked connection, for snapshotting
func (r *Registry) All() []*model.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]*model.Connection, 0, len(r.conns))
	for _, conn := range r.conns {
		conns = append(conns, conn)
	}
	return conns
}

// ConnectedIDs returns the IDs of all connections with a live socket
func (r *Registry) ConnectedIDs() []model.ConnectionID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]model.ConnectionID, 0, len(r.conns))
	for id, conn := range r.conns {
		if conn.State == model.ConnStateConnected {
			ids = append(ids, id)
		}
	}
	return ids
}

// Restore loads snapshot connections, forcing each into the grace state so
// only a legitimate reconnect (not a replay) can resume it. The grace timer
// restarts from the restore instant.
func (r *Registry) Restore(conns []*model.Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	for _, conn := range conns {
		conn.State = model.ConnStateGrace
		conn.DisconnectedAt = now
		r.conns[conn.ID] = conn
		if conn.AccountID != "" {
			r.byAccount[conn.AccountID] = conn.ID
		}
		if conn.RejoinToken != "" {
			r.byToken[conn.RejoinToken] = conn.ID
		}
	}
}
