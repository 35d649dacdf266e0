package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"joinlink/internal/agentws"
	"joinlink/internal/logx"
)

func main() {
	_ = godotenv.Load()

	var (
		a        agentws.Agent
		logLevel string
	)
	root := &cobra.Command{
		Use:          "agent-sim",
		Short:        "Simulated transport agent that acknowledges join and leave commands",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logx.Setup(os.Stderr, logLevel)
			if a.ClientID == "" || a.Token == "" {
				return fmt.Errorf("--client and --token are required")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			log.Info().Str("url", a.URL).Str("client_id", a.ClientID).Msg("agent connecting")
			return a.Run(ctx)
		},
	}
	root.Flags().StringVar(&a.URL, "url", "ws://localhost:8080/ws/agent", "agent websocket url")
	root.Flags().StringVar(&a.ClientID, "client", "", "client id from POST /clients")
	root.Flags().StringVar(&a.Token, "token", os.Getenv("AGENT_TOKEN"), "agent token from POST /clients")
	root.Flags().DurationVar(&a.Delay, "delay", 200*time.Millisecond, "delay before acknowledging a command")
	root.Flags().BoolVar(&a.FailJoins, "fail-joins", false, "report every join as failed")
	root.Flags().StringVar(&logLevel, "log-level", "info", "log level")

	if err := root.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
