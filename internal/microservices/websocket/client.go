package websocket

import (
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

const ( // ping pong(2-way heartbeat) to keep connection alive
	WriteWait  = 10 * time.Second    // max time write a message to the peer
	PongWait   = 60 * time.Second    // max time to wait for pong from peer => no pong = no connection
	PingPeriod = (PongWait * 9) / 10 // send ping before pong wait expires, 10% slack for network jitter
)

// wsTransport sends each relay message as one text frame.
// WriteMessage is called only by the session writer; pings go through
// WriteControl, which gorilla allows concurrently.
type wsTransport struct {
	conn      *websocket.Conn
	writeWait time.Duration
}

func newTransport(conn *websocket.Conn, writeWait time.Duration) *wsTransport {
	if writeWait <= 0 {
		writeWait = WriteWait
	}
	return &wsTransport{conn: conn, writeWait: writeWait}
}

func (t *wsTransport) WriteMessage(data []byte) error {
	t.conn.SetWriteDeadline(time.Now().Add(t.writeWait))
	if err := t.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to write websocket frame: %w", err)
	}
	return nil
}

func (t *wsTransport) ping() error {
	return t.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(t.writeWait))
}

func (t *wsTransport) Close() error       { return t.conn.Close() }
func (t *wsTransport) RemoteAddr() string { return t.conn.RemoteAddr().String() }
func (t *wsTransport) Kind() string       { return "websocket" }
