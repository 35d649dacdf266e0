package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// NewRouter wires the HTTP API. agentWS may be nil when agents are disabled.
func NewRouter(h *Handlers, agentWS http.HandlerFunc) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(logMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.HandleHealthz)
	r.Get("/readyz", h.HandleReadyz)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/join", h.HandleJoin)
	r.Post("/links", h.HandleEncodeLink)
	r.Post("/channels", h.HandleNewChannel)

	r.Get("/clients", h.HandleListClients)
	r.Post("/clients", h.HandleCreateClient)
	r.Route("/clients/{id}", func(r chi.Router) {
		r.Get("/", h.HandleGetClient)
		r.Delete("/", h.HandleDeleteClient)
		r.Post("/create", h.HandleCreateSession)
		r.Post("/open", h.HandleOpenLink)
		r.Post("/exit", h.HandleExit)
		r.Get("/share", h.HandleShare)
		r.Get("/events", h.HandleListEvents)
	})

	if agentWS != nil {
		r.Get("/ws/agent", agentWS)
	}
	return r
}

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}
