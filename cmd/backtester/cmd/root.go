package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/rustyeddy/backtester/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "backtester",
	Short: "Portfolio backtester for daily-close trading strategies",
	Long: `Backtester simulates a cash and margin account over a business-day
calendar, asks a decision source what to buy, sell, short or cover each day,
and reports risk-adjusted performance.

It provides tools for:
  - Running backtests from a configuration file
  - Generating and validating configuration files
  - Downloading daily closes from Binance to CSV
  - Querying run journals and exporting Org reports`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

var (
	logLevel string
	envFiles []string
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug|info|warn|error")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env"}, ".env files to load secrets from")
}

func setup(cmd *cobra.Command, args []string) error {
	level, err := parseLevel(logLevel)
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if err := config.LoadEnv(envFiles...); err != nil {
		return fmt.Errorf("env: %w", err)
	}
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}
