package services

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/gofiber/contrib/websocket"

	"echoreach/internal/models"
)

// ConnectionManager tracks dashboard WebSocket connections and broadcasts
// decision events to them. It implements EventStore so it can be wired
// straight into the event log fan-out.
type ConnectionManager struct {
	mu    sync.RWMutex
	conns map[*websocket.Conn]bool
}

// NewConnectionManager creates an empty manager.
func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{conns: make(map[*websocket.Conn]bool)}
}

// Add registers a connection.
func (m *ConnectionManager) Add(c *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conns[c] = true
	log.Printf("🔌 [WS] Dashboard connected (%d active)", len(m.conns))
}

// Remove unregisters a connection.
func (m *ConnectionManager) Remove(c *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.conns, c)
	log.Printf("🔌 [WS] Dashboard disconnected (%d active)", len(m.conns))
}

// Count returns the number of active connections.
func (m *ConnectionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conns)
}

// WriteEvent broadcasts a decision event to every connected dashboard.
// Write failures drop the connection; the client reconnects on its own.
func (m *ConnectionManager) WriteEvent(_ context.Context, event models.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for c := range m.conns {
		if err := c.WriteMessage(websocket.TextMessage, payload); err != nil {
			c.Close()
			delete(m.conns, c)
		}
	}
	return nil
}
