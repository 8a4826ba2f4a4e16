package wsgateway

import (
	"sync"
)

// ConnectionRegistry tracks live connections by ID and by role
type ConnectionRegistry struct {
	connections map[string]*Connection
	byRole      map[string]int
	mu          sync.RWMutex
}

// NewConnectionRegistry creates a new connection registry
func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{
		connections: make(map[string]*Connection),
		byRole:      make(map[string]int),
	}
}

// Add adds a connection to the registry
func (r *ConnectionRegistry) Add(conn *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.connections[conn.ID]; exists {
		return
	}
	r.connections[conn.ID] = conn
	r.byRole[conn.Role]++
}

// Remove removes a connection and reports whether it was registered
func (r *ConnectionRegistry) Remove(connectionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, exists := r.connections[connectionID]
	if !exists {
		return false
	}
	delete(r.connections, connectionID)

	r.byRole[conn.Role]--
	if r.byRole[conn.Role] <= 0 {
		delete(r.byRole, conn.Role)
	}
	return true
}

// Get retrieves a connection by ID
func (r *ConnectionRegistry) Get(connectionID string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, exists := r.connections[connectionID]
	return conn, exists
}

// GetAll returns a snapshot of all connections
func (r *ConnectionRegistry) GetAll() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	connections := make([]*Connection, 0, len(r.connections))
	for _, conn := range r.connections {
		connections = append(connections, conn)
	}
	return connections
}

// Count returns the total number of connections
func (r *ConnectionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connections)
}

// CountByRole returns the number of connections holding role
func (r *ConnectionRegistry) CountByRole(role string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byRole[role]
}
