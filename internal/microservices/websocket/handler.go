package websocket

import (
	"errors"
	"net/http"
	"time"

	"flichub/internal/hub"
	"flichub/internal/relay"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// HTTP upgrade handler to WebSocket connections

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// hub clients live on the local network; origin is not checked
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSHandler upgrades the request and runs a relay session over it. Each text
// frame may carry one or more newline-separated commands, the same as a TCP line.
func WSHandler(h hub.Hub, manager *relay.ConnectionManager, opts relay.Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already wrote the HTTP error response
			return
		}

		transport := newTransport(conn, opts.WriteTimeout)
		session := relay.NewSession(transport, h, opts)
		manager.AddConnection(session)
		defer manager.RemoveConnection(session)

		session.Start()
		defer func() {
			session.Close()
			session.Wait()
		}()

		go keepAlive(session, transport)
		readPump(session, conn)
	}
}

// readPump feeds inbound frames to the session until the peer goes away.
func readPump(session *relay.Session, conn *websocket.Conn) {
	conn.SetReadLimit(relay.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(PongWait))
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) && websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				session.Logger().Warn("websocket_unexpected_close", "code", closeErr.Code)
			}
			return
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}
		conn.SetReadDeadline(time.Now().Add(PongWait))
		session.HandleInput(string(data))
	}
}

// keepAlive pings the peer until the session ends.
func keepAlive(session *relay.Session, transport *wsTransport) {
	ticker := time.NewTicker(PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := transport.ping(); err != nil {
				session.Logger().Warn("websocket_ping_failed", "error", err.Error())
				session.Close()
				return
			}
		case <-session.Done():
			return
		}
	}
}
