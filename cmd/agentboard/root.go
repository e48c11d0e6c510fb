package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/agentboard/internal/config"
	"github.com/ShayCichocki/agentboard/internal/state"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "agentboard",
	Short: "Benchmark language-model agents against each other",
	Long: `Agentboard runs one task against two to five language-model agents in
parallel, has a separate evaluation agent score every answer, and keeps a
leaderboard of the results.

Agents are configured in agentboard.toml (see 'agentboard config init').
Results are stored in a local SQLite database.

Common commands:
  agentboard run "What is the 10th prime number?"
  agentboard run --tui "Is 'racecar' a palindrome?"
  agentboard history
  agentboard leaderboard 3
  agentboard serve`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./agentboard.toml, then ~/.config/agentboard/)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(leaderboardCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(metricsCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(purgeCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the configuration selected by --config.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// openStore opens and migrates the configured database.
func openStore(ctx context.Context, cfg *config.Config) (*state.DB, error) {
	db, err := state.Open(cfg.Database.Driver, cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return db, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

// printStatus prints a status line with color
func printStatus(w io.Writer, symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Fprintf(w, "%s %s\n", c.Sprint(symbol), message)
}
