// Package cmd contains the CLI commands for sentinelctl.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/bryanwahyu/logsentinel/internal/application/audit"
	"github.com/bryanwahyu/logsentinel/internal/application/session"
	"github.com/bryanwahyu/logsentinel/internal/config"
	"github.com/bryanwahyu/logsentinel/internal/domain/ledger"
	"github.com/bryanwahyu/logsentinel/internal/infra/analysisapi"
	"github.com/bryanwahyu/logsentinel/internal/infra/db"
)

var (
	// Used for flags
	configFile string
	serviceURL string
	verbose    bool
	output     string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sentinelctl",
	Short: "LogSentinel - security log analysis from the terminal",
	Long: `sentinelctl submits security log lines to the analysis service one at a
time and shows the verdict, the criticality and the suggested actions.

Examples:
  # Analyze a single line
  sentinelctl analyze "Failed password for root from 203.0.113.45 port 22 ssh2"

  # Analyze lines from stdin
  sentinelctl generate --count 20 | sentinelctl analyze -

  # Run the built-in attack campaigns and save a report
  sentinelctl scenarios

  # Measure accuracy against labelled logs
  sentinelctl evaluate

  # Follow a log file
  sentinelctl watch /var/log/auth.log`,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (default $CONFIG_PATH or config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serviceURL, "url", "", "analysis service base URL (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "table", "output format (table, json)")
}

// loadConfig reads the config file; a missing file means defaults.
func loadConfig() (*config.Config, error) {
	path := configFile
	if path == "" {
		path = config.Path()
	}
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if serviceURL != "" {
		cfg.Analysis.BaseURL = serviceURL
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

// newLogger logs to stderr so stdout stays clean for -o json.
func newLogger(cfg *config.Config) *slog.Logger {
	if !verbose && cfg.Log.Level != "debug" {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return cfg.NewLogger(os.Stderr)
}

// openController builds one session controller, with the ledger attached
// when configured. The returned func releases the ledger.
func openController(ctx context.Context, cfg *config.Config, logger *slog.Logger, sessionID string) (*session.Controller, func(), error) {
	opts := []session.Option{
		session.WithCapacity(cfg.Analysis.HistoryCapacity),
		session.WithLegacyShape(cfg.Analysis.AcceptLegacyShape),
		session.WithLogger(logger.With("session", sessionID)),
	}

	cleanup := func() {}
	repo, err := db.OpenLedger(ctx, cfg)
	switch {
	case errors.Is(err, ledger.ErrDisabled):
	case err != nil:
		return nil, nil, fmt.Errorf("open ledger: %w", err)
	default:
		opts = append(opts, session.WithObserver(&audit.Recorder{Repo: repo, SessionID: sessionID, Logger: logger}))
		cleanup = func() { repo.Close() }
	}

	client := analysisapi.NewClient(cfg.Analysis.BaseURL, cfg.Analysis.Timeout)
	return session.NewController(client, opts...), cleanup, nil
}

func jsonOutput() bool { return output == "json" }
