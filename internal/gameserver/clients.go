package gameserver

import (
	"log/slog"
	"sync"

	"github.com/udisondev/zombiearena/internal/game/room"
)

// ClientManager manages all connected game clients.
// Provides registration, lookup, and room notification delivery.
// Thread-safe for concurrent access.
type ClientManager struct {
	mu      sync.RWMutex
	clients map[string]*GameClient // key: connection ID
}

// Compile-time check.
var _ room.Notifier = (*ClientManager)(nil)

// NewClientManager creates a new client manager.
func NewClientManager() *ClientManager {
	return &ClientManager{
		clients: make(map[string]*GameClient, 256),
	}
}

// Register adds a client to the manager.
func (cm *ClientManager) Register(client *GameClient) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.clients[client.ID()] = client
}

// Unregister removes a client from the manager.
func (cm *ClientManager) Unregister(id string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	delete(cm.clients, id)
}

// GetClient returns the client with the given connection ID.
// Returns nil if not found.
func (cm *ClientManager) GetClient(id string) *GameClient {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.clients[id]
}

// Count returns total number of connected clients.
func (cm *ClientManager) Count() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.clients)
}

// ForEachClient iterates over all connected clients.
// fn receives GameClient pointer. If fn returns false, iteration stops.
func (cm *ClientManager) ForEachClient(fn func(*GameClient) bool) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	for _, client := range cm.clients {
		if !fn(client) {
			return
		}
	}
}

// Send delivers a room notification to the participant's connection.
// Never blocks: a full queue disconnects the client.
func (cm *ClientManager) Send(participantID string, msg room.Message) {
	client := cm.GetClient(participantID)
	if client == nil {
		return
	}
	if err := client.SendEvent(msg.Event, msg.Data); err != nil {
		slog.Debug("notification dropped",
			"client", participantID,
			"event", msg.Event,
			"error", err)
	}
}

// CloseAll closes every connection.
func (cm *ClientManager) CloseAll() {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	for _, client := range cm.clients {
		client.CloseAsync()
	}
}
