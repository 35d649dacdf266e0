// Package logx configures the global zerolog logger for the binaries.
package logx

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup points the global logger at a console writer on w (stderr when nil)
// and applies level, falling back to info for unknown names.
func Setup(w io.Writer, level string) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	l := zerolog.New(zerolog.ConsoleWriter{Out: w}).With().Timestamp().Caller().Logger()
	log.Logger = l
	return l
}
