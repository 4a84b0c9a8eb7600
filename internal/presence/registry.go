package presence

import (
	"sync"
)

// Registry maps live connection identifiers to participant display names
// ARCHITECTURAL DISCOVERY: Lifecycle tied 1:1 to connection lifetime -
// one connection is one identity is one entry
type Registry struct {
	mu    sync.RWMutex
	names map[string]string // connectionID -> displayName
}

// NewRegistry creates an empty presence registry
func NewRegistry() *Registry {
	return &Registry{
		names: make(map[string]string),
	}
}

// Register records the display name of a connection, overwriting any previous entry
func (r *Registry) Register(connectionID, displayName string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.names[connectionID] = displayName
}

// Lookup returns the display name of a connection
func (r *Registry) Lookup(connectionID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	name, exists := r.names[connectionID]
	return name, exists
}

// Unregister removes a connection. Unknown ids are ignored.
func (r *Registry) Unregister(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.names, connectionID)
}

// Count returns the number of registered participants
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.names)
}
