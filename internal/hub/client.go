// Package hub manages WebSocket connection lifecycle: registration,
// read/write pumps and per-connection identity. The engine owns the
// per-stream viewer sets; the hub only owns connections.
package hub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/RickEth137/ClawStream/internal/config"
	"github.com/RickEth137/ClawStream/pkg/log"
)

// Client is one WebSocket connection, producer or viewer.
type Client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	cfg  config.WebSocketConfig

	mu sync.RWMutex
	// Identity, set after auth. Viewers may stay anonymous.
	userID string
	name   string
	role   string
	// streamID is the stream this connection is watching or
	// producing for.
	streamID   string
	isProducer bool
}

// NewClient wraps an upgraded connection.
func NewClient(id string, hub *Hub, conn *websocket.Conn, cfg config.WebSocketConfig) *Client {
	return &Client{
		id:   id,
		hub:  hub,
		conn: conn,
		send: make(chan []byte, 256),
		cfg:  cfg,
	}
}

// ID implements engine.Viewer.
func (c *Client) ID() string { return c.id }

// Send marshals v and enqueues it without blocking. A full send
// buffer means the client is too slow; the message is dropped and the
// write pump's ping/pong deadlines will eventually reap the
// connection.
func (c *Client) Send(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	select {
	case c.send <- data:
	default:
	}
	return nil
}

// SetIdentity stores the authenticated identity.
func (c *Client) SetIdentity(userID, name, role string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userID = userID
	c.name = name
	c.role = role
}

// Identity returns userID, display name and role.
func (c *Client) Identity() (string, string, string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID, c.name, c.role
}

// SetStream records which stream this connection is attached to.
func (c *Client) SetStream(streamID string, producer bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.streamID = streamID
	c.isProducer = producer
}

// Stream returns the attached stream and whether this connection
// holds the producer role for it.
func (c *Client) Stream() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.streamID, c.isProducer
}

// ReadPump reads messages until the connection drops, dispatching
// each to handler. Runs as a goroutine per connection.
func (c *Client) ReadPump(handler func(*Client, []byte), onClose func(*Client)) {
	defer func() {
		onClose(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				l := log.L()
				l.Debug().Err(err).Str("client_id", c.id).Msg("websocket read error")
			}
			break
		}
		handler(c, message)
	}
}

// WritePump drains the send buffer and keeps the connection alive
// with pings. Runs as a goroutine per connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)
			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
