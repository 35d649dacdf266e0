package agentws

import (
	"context"
	"encoding/json"
	"sync"

	ws "nhooyr.io/websocket"
)

// Registry keeps at most one agent connection per client.
type Registry struct {
	mu    sync.Mutex
	conns map[string]*ws.Conn
}

func NewRegistry() *Registry { return &Registry{conns: make(map[string]*ws.Conn)} }

// Replace sets the connection for a client and closes the previous one if present.
// The old connection is closed after the lock is released since Close waits
// for the peer's handshake.
func (r *Registry) Replace(clientID string, c *ws.Conn) (prevClosed bool) {
	r.mu.Lock()
	old := r.conns[clientID]
	r.conns[clientID] = c
	r.mu.Unlock()
	if old != nil && old != c {
		_ = old.Close(ws.StatusNormalClosure, "replaced")
		prevClosed = true
	}
	return
}

func (r *Registry) Connected(clientID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conns[clientID] != nil
}

// Remove drops c for clientID unless it has already been replaced.
func (r *Registry) Remove(clientID string, c *ws.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conns[clientID] == c {
		delete(r.conns, clientID)
	}
}

// CloseAll closes every agent connection.
func (r *Registry) CloseAll(reason string) {
	r.mu.Lock()
	conns := r.conns
	r.conns = make(map[string]*ws.Conn)
	r.mu.Unlock()
	for _, c := range conns {
		_ = c.Close(ws.StatusGoingAway, reason)
	}
}

// SendJSON writes v to the agent for clientID. It returns ErrNoAgent when
// nothing is connected.
func (r *Registry) SendJSON(ctx context.Context, clientID string, v any) error {
	r.mu.Lock()
	c := r.conns[clientID]
	r.mu.Unlock()
	if c == nil {
		return ErrNoAgent
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Write(ctx, ws.MessageText, b)
}
