package hub

import (
	"time"

	"github.com/gofiber/websocket/v2"
)

// Stream subscribers only ever answer pings, so inbound frames are tiny.
const (
	writeTimeout = 10 * time.Second
	idleTimeout  = 60 * time.Second
	keepalive    = idleTimeout * 9 / 10
	inboundLimit = 4 << 10
)

// Client is one websocket subscriber attached to a hub.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan Message
}

// NewClient attaches conn to h. If the hub has already shut down the
// client's queue is closed at once and Serve returns immediately.
func NewClient(h *Hub, conn *websocket.Conn) *Client {
	c := &Client{hub: h, conn: conn, send: make(chan Message, sendBuffer)}
	select {
	case h.register <- c:
	case <-h.done:
		close(c.send)
	}
	return c
}

// Run serves the connection until the peer goes away, a write fails or the
// hub stops. The websocket handler must not return before Run does.
func (c *Client) Run() {
	gone := make(chan struct{})
	go c.watchPeer(gone)

	c.stream(gone)

	select {
	case c.hub.unregister <- c:
	case <-c.hub.done:
	}
	c.conn.Close()
}

// watchPeer consumes inbound frames so pongs are processed, and closes gone
// once the peer stops answering or disconnects.
func (c *Client) watchPeer(gone chan<- struct{}) {
	defer close(gone)

	c.conn.SetReadLimit(inboundLimit)
	c.conn.SetReadDeadline(time.Now().Add(idleTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(idleTimeout))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// stream is the connection's only writer.
func (c *Client) stream(gone <-chan struct{}) {
	ping := time.NewTicker(keepalive)
	defer ping.Stop()

	for {
		var (
			kind int
			data []byte
		)
		select {
		case <-gone:
			return
		case msg, ok := <-c.send:
			if !ok {
				c.write(websocket.CloseMessage, nil)
				return
			}
			kind, data = websocket.TextMessage, msg.Data
			if msg.Type == BinaryMessage {
				kind = websocket.BinaryMessage
			}
		case <-ping.C:
			kind = websocket.PingMessage
		}
		if err := c.write(kind, data); err != nil {
			return
		}
	}
}

func (c *Client) write(kind int, data []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(kind, data)
}
