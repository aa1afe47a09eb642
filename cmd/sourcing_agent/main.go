// Package main provides the entry point for the talent sourcer CLI and HTTP API server.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/talent-sourcer/internal/config"
	"github.com/jonathan/talent-sourcer/internal/logging"
)

var (
	cfgFile   string
	useMemory bool

	appConfig *config.Config
	logger    *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "sourcing_agent",
	Short: "Talent Sourcer CLI and HTTP API Server",
	Long: `Talent Sourcer finds developers who post about the skills a job needs, scores them against the
job, routes them into hiring stages with thresholds it learns from recorded outcomes, and matches
promising candidates to internal teams.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to config file (default ./sourcing_agent.yaml)")
	rootCmd.PersistentFlags().BoolVar(&useMemory, "memory", false, "Use an in-memory store instead of PostgreSQL")
}

// flagKeys maps command flags onto the config keys they override.
var flagKeys = map[string]string{
	"port":          "server.port",
	"agent":         "learning.agent",
	"learning-rate": "learning.learning_rate",
}

// loadConfig reads the config file, environment and bound flags, and builds the logger shared by
// every command.
func loadConfig(cmd *cobra.Command, _ []string) error {
	v, err := config.NewViper(cfgFile)
	if err != nil {
		return err
	}
	for name, key := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("failed to bind --%s: %w", name, err)
			}
		}
	}
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.Log.JSON, cfg.Log.Debug)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	appConfig = cfg
	logger = log
	return nil
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
