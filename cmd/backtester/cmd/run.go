package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/rustyeddy/backtester/backtest"
	"github.com/rustyeddy/backtester/config"
	"github.com/rustyeddy/backtester/strategies"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a backtest from a config file",
	Long: `Run a backtest using settings from a configuration file.

The config file names the tickers and date range, where prices come from,
which decision source to ask each day and where to journal the results.

Example:
  backtester run --config backtest.yaml`,
	RunE: runRun,
}

var (
	runConfigPath string
	runID         string
	runJSON       bool
	runQuiet      bool
	runRiskFree   float64
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runConfigPath, "config", "f", "", "path to config file (YAML or JSON) (required)")
	runCmd.Flags().StringVar(&runID, "run-id", "", "run ID (default: a new ULID)")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print the full result as JSON instead of a summary")
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "do not log every simulated day")
	runCmd.Flags().Float64Var(&runRiskFree, "risk-free-rate", 0, "override backtest.risk_free_rate for this run")
	runCmd.MarkFlagRequired("config")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(runConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.ApplyEnv()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	var opts []backtest.Option
	if cmd.Flags().Changed("risk-free-rate") {
		opts = append(opts, backtest.WithRiskFreeRate(runRiskFree))
	}

	res, err := execute(ctx, cfg, opts...)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if runJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	backtest.PrintResult(out, res)
	return nil
}

// execute wires the configured collaborators into a runner and runs it.
// extra options are applied after the ones derived from cfg.
func execute(ctx context.Context, cfg *config.Config, extra ...backtest.Option) (*backtest.Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	bcfg, err := cfg.Run()
	if err != nil {
		return nil, err
	}

	prices, release, err := buildPrices(cfg)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := release(); err != nil {
			slog.Warn("PRICE_SOURCE_CLOSE_FAILED", slog.Any("error", err))
		}
	}()

	decider, err := strategies.New(cfg.Strategy.Name, cfg.StrategyParams())
	if err != nil {
		return nil, fmt.Errorf("strategy: %w", err)
	}

	var reporters backtest.MultiReporter
	if !runQuiet {
		reporters = append(reporters, backtest.LogReporter{Log: slog.Default()})
	}

	j, err := buildJournal(cfg.Journal)
	if err != nil {
		return nil, fmt.Errorf("create journal: %w", err)
	}
	if j != nil {
		defer j.Close()
		raw, _ := yaml.Marshal(cfg)
		reporters = append(reporters, &backtest.JournalReporter{
			J:       j,
			Log:     slog.Default(),
			Dataset: dataset(cfg),
			Config:  raw,
			OrgPath: cfg.Journal.OrgPath,
		})
	}

	opts := []backtest.Option{
		backtest.WithLogger(slog.Default()),
		backtest.WithReporter(reporters),
		backtest.WithFailFast(cfg.Backtest.FailFast),
		backtest.WithDecisionTimeout(cfg.DecisionTimeout()),
	}
	if runID != "" {
		opts = append(opts, backtest.WithRunID(runID))
	}
	opts = append(opts, extra...)

	runner, err := backtest.NewRunner(bcfg, prices, decider, opts...)
	if err != nil {
		return nil, err
	}
	return runner.Run(ctx)
}

func dataset(cfg *config.Config) string {
	switch cfg.Prices.Source {
	case "csv":
		return cfg.Prices.CSVPath
	case "binance":
		interval := cfg.Prices.Interval
		if interval == "" {
			interval = "1d"
		}
		return "binance:" + interval
	}
	return cfg.Prices.Source
}
