package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"joinlink/internal/agentws"
	"joinlink/internal/api"
	"joinlink/internal/channel"
	"joinlink/internal/config"
	healthcheck "joinlink/internal/health"
	"joinlink/internal/logx"
	"joinlink/internal/session"
	"joinlink/internal/store"
	"joinlink/internal/transport"
	"joinlink/internal/transport/loopback"
)

func main() {
	// Load .env file if present (ignored if missing)
	_ = godotenv.Load()

	cfg := config.Load()
	logx.Setup(os.Stdout, cfg.Server.LogLevel)

	st := store.New()
	sessions := session.NewRegistry()
	gen := channel.NewGenerator(cfg.Link.IDLength)

	reg := agentws.NewRegistry()
	var tr transport.Transport
	var agentHandler http.HandlerFunc
	var lb *loopback.Transport
	switch cfg.Transport.Mode {
	case "agent":
		tr = agentws.NewTransport(reg)
		agentHandler = agentws.NewServer(cfg, st, reg, sessions.Events).HandleAgentWS
	default:
		lb = loopback.New(sessions.Events, 200*time.Millisecond)
		tr = lb
	}

	h := api.NewHandlers(cfg, st, sessions, gen, tr)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.NewRouter(h, agentHandler),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// gRPC health mirrors /readyz
	gs := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	setServing(hs, cfg)
	go func() {
		l, err := net.Listen("tcp", ":"+cfg.Server.GRPCPort)
		if err != nil {
			log.Fatal().Err(err).Msg("grpc listen")
		}
		log.Info().Str("port", cfg.Server.GRPCPort).Msg("grpc health listening")
		if err := gs.Serve(l); err != nil {
			log.Error().Err(err).Msg("grpc serve")
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-sigc
		log.Info().Msg("shutdown signal received; stopping server...")
		hs.Shutdown()
		// leave active sessions before draining HTTP
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for _, sc := range sessions.All() {
			sc.Exit(ctx)
		}
		_ = srv.Shutdown(ctx)
		reg.CloseAll("server shutdown")
		gs.GracefulStop()
		if lb != nil {
			lb.Close()
		}
	}()

	log.Info().Str("addr", addr).Str("transport", cfg.Transport.Mode).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("server error")
		os.Exit(1)
	}
	<-stopped
	log.Info().Msg("server exited")
}

func setServing(hs *health.Server, cfg config.Config) {
	status := healthpb.HealthCheckResponse_SERVING
	if st := healthcheck.CheckAll(cfg); !st.OK {
		log.Warn().Msg(st.String())
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	hs.SetServingStatus("", status)
	hs.SetServingStatus("joinlink", status)
}
