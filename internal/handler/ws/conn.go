package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type outgoing struct {
	Type      string `json:"type"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// wsConn wraps a gorilla connection behind the registry's Conn contract. The
// write mutex serializes broadcasts, error events and pings; gorilla permits
// only one concurrent writer.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func newWSConn(conn *websocket.Conn) *wsConn {
	return &wsConn{conn: conn}
}

// Send delivers one event envelope.
func (c *wsConn) Send(event string, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.conn.WriteJSON(outgoing{
		Type:      event,
		Data:      payload,
		Timestamp: time.Now().UnixMilli(),
	})
}

// Ping sends a websocket ping frame.
func (c *wsConn) Ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.PingMessage, nil)
}

// Close terminates the underlying connection. Safe to call more than once.
func (c *wsConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return c.conn.Close()
}
