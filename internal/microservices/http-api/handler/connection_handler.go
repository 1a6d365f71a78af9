package handler

import (
	"net/http"

	"flichub/internal/relay"

	"github.com/gin-gonic/gin"
)

type ConnectionHandler struct {
	manager *relay.ConnectionManager
}

func NewConnectionHandler(manager *relay.ConnectionManager) *ConnectionHandler {
	return &ConnectionHandler{manager: manager}
}

func (h *ConnectionHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/connections", h.List)
}

func (h *ConnectionHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, h.manager.Snapshot())
}

// Health handles GET /healthz
func (h *ConnectionHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"version":     relay.Version,
		"connections": h.manager.Count(),
	})
}
