package session

import (
	"github.com/atlasguess/atlasguess/internal/model"
	"github.com/atlasguess/atlasguess/internal/protocol"
)

// Sender delivers outbound messages to connections. Implementations must be
// non-blocking and best-effort: a slow or broken socket drops frames rather
// than stalling the caller.
type Sender interface {
	Send(id model.ConnectionID, msg protocol.ServerMessage)
}

// NopSender discards all messages; used in tests and before the transport
// is wired
type NopSender struct{}

// Send discards the message
func (NopSender) Send(model.ConnectionID, protocol.ServerMessage) {}

// CaptureSender records sent messages per connection; test helper
type CaptureSender struct {
	Messages map[model.ConnectionID][]protocol.ServerMessage
}

// NewCaptureSender creates an empty CaptureSender
func NewCaptureSender() *CaptureSender {
	return &CaptureSender{Messages: make(map[model.ConnectionID][]protocol.ServerMessage)}
}

// Send records the message
func (c *CaptureSender) Send(id model.ConnectionID, msg protocol.ServerMessage) {
	c.Messages[id] = append(c.Messages[id], msg)
}

// Last returns the most recent message sent to a connection, or nil
func (c *CaptureSender) Last(id model.ConnectionID) protocol.ServerMessage {
	msgs := c.Messages[id]
	if len(msgs) == 0 {
		return nil
	}
	return msgs[len(msgs)-1]
}

// OfType returns all messages of the given concrete type sent to a connection
func (c *CaptureSender) OfType(id model.ConnectionID, match func(protocol.ServerMessage) bool) []protocol.ServerMessage {
	var out []protocol.ServerMessage
	for _, m := range c.Messages[id] {
		if match(m) {
			out = append(out, m)
		}
	}
	return out
}
