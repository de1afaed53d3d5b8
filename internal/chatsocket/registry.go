// Package chatsocket serves chat turns over a WebSocket connection.
package chatsocket

import (
	"log/slog"
	"sync"

	"github.com/coder/websocket"
)

// Registry tracks the active WebSocket connection of each session.
// A session has at most one live socket; a newer one replaces the old.
type Registry struct {
	mu     sync.RWMutex
	active map[string]*websocket.Conn
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		active: make(map[string]*websocket.Conn),
	}
}

// Active returns the active connection for a session.
func (m *Registry) Active(sessionID string) *websocket.Conn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active[sessionID]
}

// Len returns the number of active connections.
func (m *Registry) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.active)
}

// Register adds a connection for a session, closing any connection it replaces.
func (m *Registry) Register(sessionID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, exists := m.active[sessionID]; exists && existing != conn {
		_ = existing.Close(websocket.StatusNormalClosure, "session replaced")
	}
	m.active[sessionID] = conn
	slog.Info("Chat socket registered", "session_id", sessionID)
}

// Unregister removes a connection if it is still the session's active one.
func (m *Registry) Unregister(sessionID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if current, exists := m.active[sessionID]; exists && current == conn {
		delete(m.active, sessionID)
		slog.Info("Chat socket unregistered", "session_id", sessionID)
	}
}

// CloseAll closes every active connection, e.g. on shutdown.
func (m *Registry) CloseAll(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for sid, conn := range m.active {
		_ = conn.Close(websocket.StatusGoingAway, reason)
		slog.Info("Chat socket closed", "session_id", sid)
	}
	m.active = make(map[string]*websocket.Conn)
}
