package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"flichub/internal/hub"

	"github.com/gin-gonic/gin"
)

const requestTimeout = 5 * time.Second

// EventRequest is the body of POST /api/events.
type EventRequest struct {
	Event         string `json:"event" binding:"required"`
	BdAddr        string `json:"bdaddr" binding:"required"`
	IsSingleClick bool   `json:"isSingleClick"`
	IsDoubleClick bool   `json:"isDoubleClick"`
	IsHold        bool   `json:"isHold"`
}

type HubHandler struct {
	hub hub.Hub
}

func NewHubHandler(h hub.Hub) *HubHandler {
	return &HubHandler{hub: h}
}

func (h *HubHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/buttons", h.ListButtons)
	rg.GET("/buttons/:bdaddr", h.GetButton)
	rg.GET("/network", h.GetNetwork)
	rg.POST("/events", h.InjectEvent)
}

func (h *HubHandler) ListButtons(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	buttons, err := h.hub.ListButtons(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if buttons == nil {
		buttons = []hub.Button{}
	}
	c.JSON(http.StatusOK, buttons)
}

// GetButton handles GET /api/buttons/:bdaddr
func (h *HubHandler) GetButton(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	button, err := h.hub.GetButton(ctx, c.Param("bdaddr"))
	if errors.Is(err, hub.ErrButtonNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "button not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, button)
}

func (h *HubHandler) GetNetwork(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	state, err := h.hub.GetState(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if state == nil {
		state = hub.NetworkInfo{}
	}
	c.JSON(http.StatusOK, state)
}

// InjectEvent handles POST /api/events; only backends implementing hub.Emitter accept it.
func (h *HubHandler) InjectEvent(c *gin.Context) {
	emitter, ok := h.hub.(hub.Emitter)
	if !ok {
		c.JSON(http.StatusNotImplemented, gin.H{"error": hub.ErrEmitUnsupported.Error()})
		return
	}

	var in EventRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	kind, ok := hub.ParseEventKind(in.Event)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown event: " + in.Event})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	flags := hub.ClickFlags{IsSingleClick: in.IsSingleClick, IsDoubleClick: in.IsDoubleClick, IsHold: in.IsHold}
	err := emitter.Emit(ctx, kind, in.BdAddr, flags)
	switch {
	case errors.Is(err, hub.ErrButtonNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "button not found"})
	case errors.Is(err, hub.ErrEmitUnsupported):
		c.JSON(http.StatusNotImplemented, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusAccepted, gin.H{"event": in.Event, "bdaddr": in.BdAddr})
	}
}
