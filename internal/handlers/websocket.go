package handlers

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"echoreach/internal/services"
)

// WebSocketHandler streams decision events to connected dashboards.
type WebSocketHandler struct {
	connManager *services.ConnectionManager
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(connManager *services.ConnectionManager) *WebSocketHandler {
	return &WebSocketHandler{connManager: connManager}
}

// Upgrade rejects non-WebSocket requests before the upgrade.
func (h *WebSocketHandler) Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// Events handles GET /ws/events. The stream is one-way; inbound messages
// are read only to detect disconnects.
func (h *WebSocketHandler) Events() fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		h.connManager.Add(c)
		defer h.connManager.Remove(c)

		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	})
}
