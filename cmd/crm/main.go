// Command crm runs the company dashboard (web or terminal) and the batch
// tools that maintain its records.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/crm/internal/config"
	"github.com/JonMunkholm/crm/internal/logging"
	"github.com/JonMunkholm/crm/internal/metrics"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app carries what every subcommand shares once the root has run.
type app struct {
	cfg     *config.Config
	metrics *metrics.Metrics // set by serve only

	envFile    string
	sourceKind string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:          "crm",
		Short:        "Company CRM dashboard",
		Long:         "crm serves the company dashboard over HTTP or in the terminal, and imports, cleans and exports company records.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.envFile, "env-file", "", "load environment from this file instead of ./.env")
	pf.StringVar(&a.sourceKind, "source", "", "record source: rest, postgres, sqlite or memory (overrides CRM_SOURCE)")
	pf.StringVar(&a.logLevel, "log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")

	root.AddCommand(
		newServeCmd(a),
		newTUICmd(a),
		newImportCmd(a),
		newCleanupCmd(a),
		newExportCmd(a),
		newStatsCmd(a),
	)
	return root
}

// setup loads .env and the configuration, then installs the logger on
// stderr so batch commands keep stdout for their output.
func (a *app) setup(cmd *cobra.Command) error {
	if a.envFile != "" {
		if err := godotenv.Overload(a.envFile); err != nil {
			return fmt.Errorf("load env file: %w", err)
		}
	} else if err := godotenv.Overload(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if a.sourceKind != "" {
		cfg.Source.Kind = a.sourceKind
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("config validation: %w", err)
		}
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	a.cfg = cfg

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format, cmd.ErrOrStderr())
	slog.Debug("configuration loaded", "command", cmd.Name(), "config", cfg.String())
	return nil
}
