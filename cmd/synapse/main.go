package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const (
	appName = "synapse"
	version = "v1.2.0"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	if term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Signal routing and health monitoring core for trading automation",
		Version: version,
		Long: `Synapse connects otherwise-isolated trading processes through a
priority-aware signal bus with per-consumer reception filtering, a
threshold-driven capability health monitor, and a discipline engine that
turns idleness and under-utilization into override directives.`,
	}

	rootCmd.PersistentFlags().String("config", "", "Path to YAML config file (built-in defaults when empty)")
	rootCmd.PersistentFlags().String("store", "", "Override persistence backend (postgres|redis|memory)")

	rootCmd.AddCommand(newPublishCmd())
	rootCmd.AddCommand(newFetchCmd())
	rootCmd.AddCommand(newAckCmd())
	rootCmd.AddCommand(newResolveCmd())
	rootCmd.AddCommand(newSweepCmd())
	rootCmd.AddCommand(newRegisterCmd())
	rootCmd.AddCommand(newMonitorCmd())
	rootCmd.AddCommand(newDisciplineCmd())
	rootCmd.AddCommand(newMigrateCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}
