package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/atlasguess/atlasguess/internal/model"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

// client is one socket with its outbound queue. The id is rewritten under
// the hub lock when a reclaim swaps this socket onto an existing connection.
type client struct {
	id   model.ConnectionID
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	gone chan struct{}

	// set once the verify handshake completed; gated in the read pump
	verified bool

	closeOnce sync.Once
}

func newClient(id model.ConnectionID, conn *websocket.Conn) *client {
	return &client{
		id:   id,
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
		gone: make(chan struct{}),
	}
}

// enqueue drops the frame when the buffer is full or the client is closed;
// a slow socket must not stall the caller
func (c *client) enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// readPump delivers inbound frames to the hub until the socket dies.
// gone closes only after the disconnect completed, so a waiter sees no
// further handler activity from this socket.
func (c *client) readPump(h *Hub) {
	defer close(c.gone)
	defer h.disconnect(c)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		h.handleMessage(c, data)
	}
}

// writePump drains the send queue and keeps the socket alive with pings
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
