package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"joinlink/internal/config"
	"joinlink/internal/logx"
)

func newRootCmd() *cobra.Command {
	var (
		baseDomain string
		logLevel   string
	)
	cfg := config.Load()

	root := &cobra.Command{
		Use:           "linkctl",
		Short:         "Generate, encode and decode channel share links",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logx.Setup(cmd.ErrOrStderr(), logLevel)
		},
	}
	root.PersistentFlags().StringVar(&baseDomain, "base", cfg.Link.BaseDomain, "share link base domain (LINK_BASE_DOMAIN)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level")

	base := func() string { return baseDomain }
	root.AddCommand(
		newNewCmd(base, cfg.Link.IDLength),
		newEncodeCmd(base),
		newDecodeCmd(),
		newWalkCmd(base),
	)
	return root
}

func main() {
	_ = godotenv.Load()
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
