package handler

import (
	"log/slog"

	"flichub/internal/hub"
	"flichub/internal/microservices/http-api/middleware"
	"flichub/internal/microservices/websocket"
	"flichub/internal/relay"

	"github.com/gin-gonic/gin"
)

// NewRouter wires the HTTP API and the websocket relay endpoint.
// Websocket sessions share manager with the TCP server.
func NewRouter(h hub.Hub, manager *relay.ConnectionManager, opts relay.Options, logger *slog.Logger) *gin.Engine {
	if logger == nil {
		logger = slog.Default()
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))

	connections := NewConnectionHandler(manager)
	r.GET("/healthz", connections.Health)
	r.GET("/ws", websocket.WSHandler(h, manager, opts))

	api := r.Group("/api")
	{
		NewHubHandler(h).RegisterRoutes(api)
		connections.RegisterRoutes(api)
	}
	return r
}
