// Package registry tracks the set of currently connected peer sessions so
// an observability surface can enumerate them. It holds no protocol logic.
package registry

import (
	"sync"

	"github.com/haildev/hail/internal/peerconn"
)

// Registry is a concurrency-safe directory of live connections, keyed by
// remote address.
type Registry struct {
	mu          sync.RWMutex
	connections map[string]*peerconn.Conn
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{connections: make(map[string]*peerconn.Conn)}
}

// Add registers conn under addr, replacing any existing entry at that
// address.
func (r *Registry) Add(addr string, conn *peerconn.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connections[addr] = conn
}

// Remove deletes the entry for addr, if any.
func (r *Registry) Remove(addr string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.connections, addr)
}

// Get returns the connection registered under addr, if any.
func (r *Registry) Get(addr string) (*peerconn.Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.connections[addr]
	return conn, ok
}

// Len returns the number of currently registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connections)
}

// Snapshot returns a point-in-time copy of the address-to-connection map,
// safe for the caller to range over without holding the registry's lock.
func (r *Registry) Snapshot() map[string]*peerconn.Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := make(map[string]*peerconn.Conn, len(r.connections))
	for addr, conn := range r.connections {
		snapshot[addr] = conn
	}
	return snapshot
}
