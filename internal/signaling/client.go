package signaling

import (
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const wsWriteWait = 5 * time.Second

// client is one signaling WebSocket. The read pump feeds the hub; the write
// pump drains the send queue; a separate ticker sends pings.
type client struct {
	id    string
	conn  *websocket.Conn
	hub   *Hub
	queue *sendQueue
	log   *slog.Logger

	idleTimeout     time.Duration
	pingInterval    time.Duration
	maxMessageBytes int64

	stop     chan struct{}
	stopOnce sync.Once
}

func (c *client) ID() string {
	return c.id
}

func (c *client) Enqueue(frame []byte) bool {
	return c.queue.Enqueue(frame)
}

func (c *client) Close() {
	c.queue.Close()
}

func (c *client) shutdown() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// readPump runs on the HTTP handler goroutine. When it returns the connection
// is unregistered, which the hub treats as a disconnect.
func (c *client) readPump() {
	defer func() {
		c.hub.Unregister(c.id)
		c.queue.Close()
		c.shutdown()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(c.maxMessageBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.idleTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.idleTimeout))
	})

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			switch {
			case errors.Is(err, websocket.ErrReadLimit):
				writeClose(c.conn, websocket.CloseMessageTooBig, "message too large")
			case isTimeout(err):
				writeClose(c.conn, websocket.CloseNormalClosure, "idle timeout")
			case websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived):
				c.log.Debug("signaling websocket read failed", "conn_id", c.id, "err", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			writeClose(c.conn, websocket.CloseUnsupportedData, "expected text message")
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(c.idleTimeout))

		if err := c.hub.Submit(c.id, data); err != nil {
			writeClose(c.conn, websocket.CloseGoingAway, "server shutting down")
			return
		}
	}
}

// writePump is the only writer of data frames. It exits once the queue is
// closed and drained, or on the first write error.
func (c *client) writePump() {
	defer func() {
		if n := c.queue.DropCount(); n > 0 {
			c.log.Debug("signaling connection dropped outbound frames", "conn_id", c.id, "dropped", n)
		}
		c.shutdown()
		_ = c.conn.Close()
	}()

	for {
		frame, ok := c.queue.Dequeue()
		if !ok {
			writeClose(c.conn, websocket.CloseNormalClosure, "")
			return
		}
		_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			return
		}
	}
}

// pingLoop uses WriteControl, which gorilla allows alongside the write pump.
func (c *client) pingLoop() {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}

func writeClose(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(wsWriteWait))
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
