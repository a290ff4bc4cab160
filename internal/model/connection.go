package model

import "time"

// ConnectionID uniquely identifies a live client connection
type ConnectionID string

// AccountID identifies a registered account in the external account store
type AccountID string

// ConnState represents the lifecycle state of a connection
type ConnState string

const (
	ConnStateConnected ConnState = "connected" // Socket open and verified or verifying
	ConnStateGrace     ConnState = "grace"     // Socket closed, membership preserved
	ConnStatePurged    ConnState = "purged"    // Grace window elapsed, removed
)

// Connection represents one client known to the server.
// The socket handle itself lives in the transport layer; the registry only
// tracks identity and lifecycle so a connection survives socket churn.
type Connection struct {
	ID        ConnectionID
	AccountID AccountID // Empty for guests
	Username  string
	Verified  bool
	IsGuest   bool

	Rating int
	League string

	SessionID SessionID // Empty when not in a session
	InQueue   bool

	// RejoinToken lets guests reclaim a disconnected connection; registered
	// players reclaim by account ID instead.
	RejoinToken string

	State          ConnState
	DisconnectedAt time.Time

	// LastChatAt enforces the per-connection chat rate limit
	LastChatAt time.Time

	// LastInvitedAt enforces the cooldown on invitations sent to this
	// connection
	LastInvitedAt time.Time

	RemoteIP  string
	CreatedAt time.Time
}

// InSession returns true if the connection belongs to a session
func (c *Connection) InSession() bool {
	return c.SessionID != ""
}

// ReclaimKey returns the key a fresh socket must present to claim this
// connection: the account ID for registered players, the rejoin token for guests
func (c *Connection) ReclaimKey() string {
	if c.AccountID != "" {
		return string(c.AccountID)
	}
	return c.RejoinToken
}
