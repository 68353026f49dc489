package presence

import "sync"

// Registry tracks which recipients currently have live connections.
// Process-local and ephemeral: nothing survives a restart, recipients
// rejoin when they reconnect. All mutations go through one lock.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]map[string]struct{} // recipientID -> connection IDs
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]map[string]struct{})}
}

// Join adds a connection to the recipient's set. Idempotent per pair.
func (r *Registry) Join(recipientID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.conns[recipientID]
	if !ok {
		set = make(map[string]struct{})
		r.conns[recipientID] = set
	}
	set[connID] = struct{}{}
}

// Leave removes one connection; an emptied set is pruned.
func (r *Registry) Leave(recipientID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.conns[recipientID]
	if !ok {
		return
	}
	delete(set, connID)
	if len(set) == 0 {
		delete(r.conns, recipientID)
	}
}

// OnConnectionClosed removes the connection from every recipient's set.
// A connection only ever belongs to one recipient, but the sweep is
// defensive.
func (r *Registry) OnConnectionClosed(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for recipientID, set := range r.conns {
		if _, ok := set[connID]; ok {
			delete(set, connID)
			if len(set) == 0 {
				delete(r.conns, recipientID)
			}
		}
	}
}

// IsOnline reports whether the recipient has at least one connection.
func (r *Registry) IsOnline(recipientID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[recipientID]) > 0
}

// ConnectionsFor returns a snapshot of the recipient's connection IDs.
func (r *Registry) ConnectionsFor(recipientID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.conns[recipientID]
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}
