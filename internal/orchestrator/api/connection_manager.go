package api

import (
	"sync"

	"github.com/gorilla/websocket"
)

// ConnectionManager tracks the WebSocket subscribers receiving task events.
// Unlike a per-user registry, every subscriber gets every event; the control
// surface is an operator tool, not a multi-tenant API.
type ConnectionManager struct {
	connections map[string]*websocket.Conn
	mu          sync.Mutex
}

// NewConnectionManager creates an empty manager.
func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{connections: make(map[string]*websocket.Conn)}
}

// Add registers a subscriber under its connection id.
func (m *ConnectionManager) Add(connID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connections[connID] = conn
}

// Remove closes and forgets a subscriber.
func (m *ConnectionManager) Remove(connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if conn, ok := m.connections[connID]; ok {
		conn.Close()
		delete(m.connections, connID)
	}
}

// Count returns the number of live subscribers.
func (m *ConnectionManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.connections)
}

// Broadcast pushes a message to every subscriber. Connections whose write
// fails are dropped; the subscriber reconnects if it still cares.
func (m *ConnectionManager) Broadcast(message []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for connID, conn := range m.connections {
		if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
			conn.Close()
			delete(m.connections, connID)
		}
	}
}
