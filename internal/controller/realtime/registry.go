package realtime

import "sync"

// Registry tracks the live connections of every user. Each connection (one per open
// dashboard) carries its own feeds.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]map[*conn]struct{}
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]map[*conn]struct{})}
}

func (r *Registry) register(c *conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.conns[c.uid]
	if !ok {
		set = make(map[*conn]struct{})
		r.conns[c.uid] = set
	}
	set[c] = struct{}{}
}

func (r *Registry) unregister(c *conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := r.conns[c.uid]
	delete(set, c)
	if len(set) == 0 {
		delete(r.conns, c.uid)
	}
}

// Connected reports whether uid has at least one live connection.
func (r *Registry) Connected(uid string) bool {
	return r.Connections(uid) > 0
}

func (r *Registry) Connections(uid string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[uid])
}

// Count is the number of live connections across all users.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, set := range r.conns {
		n += len(set)
	}
	return n
}
