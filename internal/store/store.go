package store

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrClientExists  = errors.New("client already exists")
	ErrClientUnknown = errors.New("unknown client")
)

type Event struct {
	ID      string         `json:"id"`
	Type    string         `json:"type"`
	Ts      time.Time      `json:"timestamp"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Client is the service-side record of one caller.
type Client struct {
	ID        string    `json:"client_id"`
	CreatedAt time.Time `json:"created_at"`
	Phase     string    `json:"phase"`
	Channel   string    `json:"channel,omitempty"`
	Link      string    `json:"link,omitempty"`
	LastError string    `json:"last_error,omitempty"`
	AgentSeen bool      `json:"agent_connected"`
}

const maxEvents = 200

type Store struct {
	mu      sync.RWMutex
	clients map[string]*Client
	events  map[string][]Event
}

func New() *Store {
	return &Store{
		clients: make(map[string]*Client),
		events:  make(map[string][]Event),
	}
}

func (s *Store) CreateClient(c *Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c.ID]; ok {
		return ErrClientExists
	}
	s.clients[c.ID] = c
	s.events[c.ID] = []Event{}
	return nil
}

// GetClient returns a copy of the client record, or nil.
func (s *Store) GetClient(id string) *Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clients[id]
	if !ok {
		return nil
	}
	cp := *c
	return &cp
}

// UpdateClient applies fn to the stored record under the write lock.
func (s *Store) UpdateClient(id string, fn func(c *Client)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[id]
	if !ok {
		return ErrClientUnknown
	}
	fn(c)
	return nil
}

func (s *Store) DeleteClient(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, id)
	delete(s.events, id)
}

func (s *Store) ListClientIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.clients))
	for id := range s.clients {
		out = append(out, id)
	}
	return out
}

// AppendEvent records an event for clientID; events for unknown clients are
// dropped. The log is capped at maxEvents; when the cap is hit the oldest
// entries are dropped and an events_truncated marker is appended.
func (s *Store) AppendEvent(clientID, typ string, payload map[string]any) Event {
	evt := Event{ID: uuid.NewString(), Type: typ, Ts: time.Now().UTC(), Payload: payload}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[clientID]; !ok {
		return evt
	}
	s.events[clientID] = append(s.events[clientID], evt)
	if l := len(s.events[clientID]); l > maxEvents {
		// leave room for the marker so the total stays at maxEvents
		keep := maxEvents - 1
		dropped := l - keep
		s.events[clientID] = append([]Event(nil), s.events[clientID][l-keep:]...)
		warn := Event{
			ID:      uuid.NewString(),
			Type:    "events_truncated",
			Ts:      time.Now().UTC(),
			Payload: map[string]any{"client_id": clientID, "dropped": dropped, "kept": keep},
		}
		s.events[clientID] = append(s.events[clientID], warn)
	}
	return evt
}

func (s *Store) ListEvents(clientID string) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.events[clientID]
	out := make([]Event, len(src))
	copy(out, src)
	return out
}
