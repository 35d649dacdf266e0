package agentws

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	ws "nhooyr.io/websocket"

	"joinlink/internal/auth"
	"joinlink/internal/channel"
	"joinlink/internal/config"
	"joinlink/internal/store"
	"joinlink/internal/transport"
)

// EventsResolver returns the event sink for a client, or nil.
type EventsResolver func(clientID string) transport.Events

// transportLoser is implemented by sinks that can settle in-flight requests
// when their agent goes away.
type transportLoser interface {
	TransportLost(err error)
}

type Server struct {
	Cfg    config.Config
	Store  *store.Store
	Reg    *Registry
	Events EventsResolver
}

func NewServer(cfg config.Config, st *store.Store, reg *Registry, events EventsResolver) *Server {
	return &Server{Cfg: cfg, Store: st, Reg: reg, Events: events}
}

func (s *Server) HandleAgentWS(w http.ResponseWriter, r *http.Request) {
	clientID := r.URL.Query().Get("client_id")
	if clientID == "" {
		http.Error(w, "missing client_id", http.StatusBadRequest)
		return
	}
	if s.Store.GetClient(clientID) == nil {
		http.Error(w, "unknown client", http.StatusNotFound)
		return
	}
	authz := r.Header.Get("Authorization")
	if !strings.HasPrefix(authz, "Bearer ") {
		http.Error(w, "missing bearer token", http.StatusUnauthorized)
		return
	}
	token := strings.TrimPrefix(authz, "Bearer ")
	if _, err := auth.VerifyAgentToken(s.Cfg.Agent.TokenSecret, token, clientID, time.Now(), s.Cfg.Agent.TokenSkewSecs); err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	c, err := ws.Accept(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("ws accept")
		return
	}
	l := log.With().Str("client_id", clientID).Logger()

	if s.Reg.Replace(clientID, c) {
		s.Store.AppendEvent(clientID, "agent_replaced", nil)
	}
	s.setAgentSeen(clientID, true)
	s.Store.AppendEvent(clientID, "agent_connected", nil)
	l.Info().Msg("agent connected")

	ctx := r.Context()
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			break
		}
		if typ != ws.MessageText && typ != ws.MessageBinary {
			continue
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			s.Store.AppendEvent(clientID, "agent_msg_invalid", map[string]any{"error": err.Error()})
			continue
		}
		s.dispatch(clientID, msg)
	}
	_ = c.Close(ws.StatusNormalClosure, "done")
	s.Reg.Remove(clientID, c)
	s.Store.AppendEvent(clientID, "agent_disconnected", nil)
	if !s.Reg.Connected(clientID) {
		s.setAgentSeen(clientID, false)
		// pending join/leave replies will never arrive
		if lost, ok := s.Events(clientID).(transportLoser); ok {
			lost.TransportLost(ErrNoAgent)
		}
	}
	l.Info().Msg("agent disconnected")
}

func (s *Server) dispatch(clientID string, msg Message) {
	ev := s.Events(clientID)
	if ev == nil {
		return
	}
	id := channel.ID(msg.Channel)
	switch msg.Type {
	case TypeHello:
		s.Store.AppendEvent(clientID, "agent_hello", nil)
	case TypeJoined:
		ev.Confirmed(id)
	case TypeJoinFailed:
		reason := msg.Error
		if reason == "" {
			reason = "agent reported join failure"
		}
		ev.Failed(id, errors.New(reason))
	case TypeLeft:
		ev.Released(id)
	default:
		s.Store.AppendEvent(clientID, "agent_msg_unknown", map[string]any{"type": msg.Type})
	}
}

func (s *Server) setAgentSeen(clientID string, seen bool) {
	_ = s.Store.UpdateClient(clientID, func(c *store.Client) { c.AgentSeen = seen })
}
