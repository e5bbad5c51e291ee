// internal/registry/ws.go
package registry

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WSConn adapts a gorilla websocket to Conn. gorilla allows one concurrent writer,
// so writes are serialized.
type WSConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func NewWSConn(conn *websocket.Conn) *WSConn {
	return &WSConn{conn: conn}
}

// Send writes one text frame. The context deadline bounds the write.
func (w *WSConn) Send(ctx context.Context, payload []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(defaultWriteTimeout)
	}
	if err := w.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return w.conn.WriteMessage(websocket.TextMessage, payload)
}

// CloseWithReason sends a close frame before closing the socket.
func (w *WSConn) CloseWithReason(code int, reason string) error {
	w.mu.Lock()
	msg := websocket.FormatCloseMessage(code, reason)
	_ = w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	w.mu.Unlock()
	return w.conn.Close()
}

func (w *WSConn) Close() error {
	return w.CloseWithReason(websocket.CloseGoingAway, "server shutting down")
}

// ReadUntilClosed discards inbound frames until the peer disconnects or the read
// fails. Keepalive pings from the client arrive here.
func (w *WSConn) ReadUntilClosed() error {
	for {
		if _, _, err := w.conn.ReadMessage(); err != nil {
			return err
		}
	}
}
