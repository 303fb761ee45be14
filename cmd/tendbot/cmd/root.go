package cmd

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"tendbot/config"
)

var rootCmd = &cobra.Command{
	Use:   "tendbot",
	Short: "An automated position tender for a fixed futures trade plan",
	Long: `Tendbot opens and tends a fixed roster of trade candidates on Bitget
USDT-margined futures, or on a built-in paper venue.

It provides:
  - Risk-based position sizing under a hard account risk ceiling
  - Confidence-ordered candidate selection with per-symbol exclusivity
  - Partial take-profit at halfway to target with a break-even stop
  - Time-limited positions with a warning ahead of the forced close
  - SQLite/CSV journaling and org-mode session reports
  - Prometheus metrics and a small HTTP status API`,
}

var debugFlag bool

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "force debug logging")
}

// buildLogger honors the configured level unless --debug overrides it.
func buildLogger(lc config.LogConfig) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	level := zerolog.InfoLevel
	if lc.Level != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(lc.Level)); err == nil {
			level = parsed
		}
	}
	if debugFlag {
		level = zerolog.DebugLevel
	}

	var w io.Writer = os.Stderr
	if lc.Pretty {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
