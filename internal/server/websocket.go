package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zeusync/pitchside/internal/core/observability/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Displays run on the pitch-side laptop, usually from a file:// page.
	CheckOrigin: func(*http.Request) bool { return true },
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func newClient(conn *websocket.Conn, buffer int) *client {
	return &client{conn: conn, send: make(chan []byte, buffer), done: make(chan struct{})}
}

// offer queues payload unless the client is behind.
func (c *client) offer(payload []byte) bool {
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

func (t *Telemetry) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if err := t.auth.Authorize(r); err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		t.logger.Debug("websocket upgrade failed", log.Error(err))
		return
	}

	c := newClient(conn, t.config.SendBuffer)
	if err := t.register(c); err != nil {
		msg := websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error())
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(t.config.WriteTimeout))
		_ = conn.Close()
		return
	}
	t.logger.Info("display connected", log.String("remote", conn.RemoteAddr().String()))

	go t.writeLoop(c)
	t.readLoop(c)
}

func (t *Telemetry) writeLoop(c *client) {
	defer c.conn.Close()
	for {
		select {
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(t.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				t.unregister(c)
				return
			}
		case <-c.done:
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(t.config.WriteTimeout))
			return
		}
	}
}

// readLoop discards input and notices when the display goes away.
func (t *Telemetry) readLoop(c *client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			t.unregister(c)
			t.logger.Info("display disconnected", log.String("remote", c.conn.RemoteAddr().String()))
			return
		}
	}
}
