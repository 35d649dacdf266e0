package session

import (
	"sync"

	"joinlink/internal/transport"
)

// Registry maps client ids to their session contexts.
type Registry struct {
	mu   sync.RWMutex
	ctxs map[string]*Context
}

func NewRegistry() *Registry { return &Registry{ctxs: make(map[string]*Context)} }

func (r *Registry) Put(c *Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctxs[c.ID()] = c
}

func (r *Registry) Get(clientID string) *Context {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ctxs[clientID]
}

func (r *Registry) Remove(clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.ctxs, clientID)
}

func (r *Registry) All() []*Context {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Context, 0, len(r.ctxs))
	for _, c := range r.ctxs {
		out = append(out, c)
	}
	return out
}

// Events resolves the transport event sink for a client. It returns an
// untyped nil for unknown clients so callers can compare against nil.
func (r *Registry) Events(clientID string) transport.Events {
	if c := r.Get(clientID); c != nil {
		return c
	}
	return nil
}
