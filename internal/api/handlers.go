package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"joinlink/internal/auth"
	"joinlink/internal/channel"
	"joinlink/internal/config"
	"joinlink/internal/gate"
	"joinlink/internal/health"
	"joinlink/internal/link"
	"joinlink/internal/session"
	"joinlink/internal/store"
	"joinlink/internal/transport"
)

type Handlers struct {
	cfg      config.Config
	store    *store.Store
	sessions *session.Registry
	gen      channel.Generator
	tr       transport.Transport

	codec    *link.Codec
	codecErr error
}

// NewHandlers validates the base domain once. A bad base domain disables
// link generation but leaves decoding and sessions working.
func NewHandlers(cfg config.Config, st *store.Store, sessions *session.Registry, gen channel.Generator, tr transport.Transport) *Handlers {
	codec, err := link.NewCodec(cfg.Link.BaseDomain)
	if err != nil {
		log.Error().Err(err).Msg("share links disabled")
	}
	return &Handlers{cfg: cfg, store: st, sessions: sessions, gen: gen, tr: tr, codec: codec, codecErr: err}
}

type stateView struct {
	ClientID  string `json:"client_id"`
	Phase     string `json:"phase"`
	Active    bool   `json:"active"`
	Channel   string `json:"channel,omitempty"`
	Link      string `json:"link,omitempty"`
	LastError string `json:"last_error,omitempty"`
	AgentSeen bool   `json:"agent_connected"`
}

type decisionView struct {
	Action  string `json:"action,omitempty"`
	Ignored bool   `json:"ignored"`
	Reason  string `json:"reason,omitempty"`
}

func (h *Handlers) view(sc *session.Context) stateView {
	st := sc.State()
	v := stateView{
		ClientID: sc.ID(),
		Phase:    string(st.Phase),
		Active:   st.IsActive(),
		Channel:  st.Channel.String(),
	}
	if st.Err != nil {
		v.LastError = st.Err.Error()
	}
	if u, err := sc.ShareLink(); err == nil {
		v.Link = u
	}
	if rec := h.store.GetClient(sc.ID()); rec != nil {
		v.AgentSeen = rec.AgentSeen
	}
	return v
}

func toDecisionView(d gate.Decision) decisionView {
	return decisionView{Action: string(d.Action), Ignored: d.Ignored, Reason: d.Reason}
}

func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (h *Handlers) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	st := health.CheckAll(h.cfg)
	code := http.StatusOK
	if !st.OK {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, st)
}

// HandleJoin is the landing endpoint share links point at.
func (h *Handlers) HandleJoin(w http.ResponseWriter, r *http.Request) {
	id, ok := link.Decode(r.URL.RequestURI())
	if !ok {
		metricLinksDecoded.WithLabelValues("absent").Inc()
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "no channel requested"})
		return
	}
	resp := map[string]any{"channel": id.String(), "valid": id.Valid()}
	if !id.Valid() {
		metricLinksDecoded.WithLabelValues("invalid").Inc()
		writeJSON(w, http.StatusOK, resp)
		return
	}
	metricLinksDecoded.WithLabelValues("ok").Inc()
	if h.codec != nil {
		resp["link"], _ = h.codec.Encode(id)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) HandleEncodeLink(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Channel string `json:"channel"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	h.writeLink(w, channel.ID(body.Channel))
}

func (h *Handlers) HandleNewChannel(w http.ResponseWriter, r *http.Request) {
	id, err := h.gen.New()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.writeLink(w, id)
}

func (h *Handlers) writeLink(w http.ResponseWriter, id channel.ID) {
	if h.codec == nil {
		metricLinksEncoded.WithLabelValues("config_error").Inc()
		http.Error(w, h.codecErr.Error(), http.StatusServiceUnavailable)
		return
	}
	u, err := h.codec.Encode(id)
	if err != nil {
		metricLinksEncoded.WithLabelValues("invalid").Inc()
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	metricLinksEncoded.WithLabelValues("ok").Inc()
	writeJSON(w, http.StatusOK, map[string]any{"channel": id.String(), "link": u})
}

func (h *Handlers) HandleCreateClient(w http.ResponseWriter, r *http.Request) {
	id := uuid.New().String()
	if err := h.store.CreateClient(&store.Client{ID: id, CreatedAt: time.Now().UTC(), Phase: string(gate.Idle)}); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	h.sessions.Put(session.New(id, session.Deps{
		Transport: h.tr,
		Generator: h.gen,
		Codec:     h.codec,
		Store:     h.store,
		Role:      transport.ParseRole(h.cfg.Transport.Role),
	}))
	metricClients.Inc()
	h.store.AppendEvent(id, "client_created", nil)

	resp := map[string]any{"client_id": id}
	if h.cfg.Agent.TokenSecret != "" {
		exp := time.Now().Add(time.Duration(h.cfg.Agent.TokenTTLMin) * time.Minute).Unix()
		tok, err := auth.IssueAgentToken(h.cfg.Agent.TokenSecret, id, exp)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		resp["agent_token"] = tok
		resp["agent_token_exp"] = exp
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleListClients returns every registered client ordered by id.
func (h *Handlers) HandleListClients(w http.ResponseWriter, r *http.Request) {
	ids := h.store.ListClientIDs()
	slices.Sort(ids)
	out := make([]stateView, 0, len(ids))
	for _, id := range ids {
		if sc := h.sessions.Get(id); sc != nil {
			out = append(out, h.view(sc))
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"clients": out})
}

func (h *Handlers) HandleGetClient(w http.ResponseWriter, r *http.Request) {
	sc := h.client(w, r)
	if sc == nil {
		return
	}
	writeJSON(w, http.StatusOK, h.view(sc))
}

func (h *Handlers) HandleDeleteClient(w http.ResponseWriter, r *http.Request) {
	sc := h.client(w, r)
	if sc == nil {
		return
	}
	sc.Exit(r.Context())
	h.sessions.Remove(sc.ID())
	h.store.DeleteClient(sc.ID())
	metricClients.Dec()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	sc := h.client(w, r)
	if sc == nil {
		return
	}
	d, err := sc.CreateSession(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"decision": toDecisionView(d), "state": h.view(sc)})
}

func (h *Handlers) HandleOpenLink(w http.ResponseWriter, r *http.Request) {
	sc := h.client(w, r)
	if sc == nil {
		return
	}
	var body struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	d, found := sc.OpenLink(r.Context(), body.URL)
	if !found {
		metricLinksDecoded.WithLabelValues("absent").Inc()
	} else {
		metricLinksDecoded.WithLabelValues("ok").Inc()
	}
	writeJSON(w, http.StatusOK, map[string]any{"found": found, "decision": toDecisionView(d), "state": h.view(sc)})
}

func (h *Handlers) HandleExit(w http.ResponseWriter, r *http.Request) {
	sc := h.client(w, r)
	if sc == nil {
		return
	}
	d := sc.Exit(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"decision": toDecisionView(d), "state": h.view(sc)})
}

func (h *Handlers) HandleShare(w http.ResponseWriter, r *http.Request) {
	sc := h.client(w, r)
	if sc == nil {
		return
	}
	u, err := sc.ShareLink()
	switch {
	case errors.Is(err, session.ErrNoChannel):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case errors.Is(err, link.ErrConfiguration):
		metricLinksEncoded.WithLabelValues("config_error").Inc()
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	metricLinksEncoded.WithLabelValues("ok").Inc()
	writeJSON(w, http.StatusOK, map[string]any{"link": u})
}

func (h *Handlers) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	sc := h.client(w, r)
	if sc == nil {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"client_id": sc.ID(),
		"events":    h.store.ListEvents(sc.ID()),
	})
}

func (h *Handlers) client(w http.ResponseWriter, r *http.Request) *session.Context {
	sc := h.sessions.Get(chi.URLParam(r, "id"))
	if sc == nil {
		http.NotFound(w, r)
	}
	return sc
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
