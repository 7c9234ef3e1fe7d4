package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rustyeddy/backtester/journal"
	"github.com/rustyeddy/backtester/market"
	"github.com/spf13/cobra"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query backtest journal data",
	Long: `Query and display backtest runs recorded in a SQLite journal.

Subcommands:
  list   - List recent runs
  show   - Print a run as an Org report, trades included
  days   - List the day rows of a run
  trades - List trades across runs within a date range
  trade  - Get details of a specific trade by ID

Examples:
  backtester journal list
  backtester journal show 01HZX3B4K5...
  backtester journal show 01HZX3B4K5... --out run.org
  backtester journal trades --from 2024-01-01 --to 2024-03-31
  backtester journal trade 01HZX3B4K5...`,
}

var journalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent backtest runs",
	Args:  cobra.NoArgs,
	RunE:  runJournalList,
}

var journalShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Print a run as an Org report",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalShow,
}

var journalDaysCmd = &cobra.Command{
	Use:   "days <run-id>",
	Short: "List the simulated days of a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalDays,
}

var journalTradesCmd = &cobra.Command{
	Use:   "trades",
	Short: "List trades of all runs within a date range",
	Args:  cobra.NoArgs,
	RunE:  runJournalTrades,
}

var journalTradeCmd = &cobra.Command{
	Use:   "trade <trade-id>",
	Short: "Get details of a specific trade",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalTrade,
}

var (
	journalDBPath string
	journalLimit  int
	journalOut    string
	journalFrom   string
	journalTo     string
)

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalListCmd)
	journalCmd.AddCommand(journalShowCmd)
	journalCmd.AddCommand(journalDaysCmd)
	journalCmd.AddCommand(journalTradesCmd)
	journalCmd.AddCommand(journalTradeCmd)

	journalCmd.PersistentFlags().StringVarP(&journalDBPath, "db", "d", "./backtests.db", "path to SQLite journal DB")
	journalListCmd.Flags().IntVarP(&journalLimit, "limit", "n", 20, "number of runs to list")
	journalShowCmd.Flags().StringVarP(&journalOut, "out", "o", "", "write the report to this file instead of stdout")
	journalTradesCmd.Flags().StringVar(&journalFrom, "from", "", "first trade date, YYYY-MM-DD (required)")
	journalTradesCmd.Flags().StringVar(&journalTo, "to", "", "last trade date, YYYY-MM-DD (required)")
	journalTradesCmd.MarkFlagRequired("from")
	journalTradesCmd.MarkFlagRequired("to")
}

func openJournal() (*journal.SQLite, error) {
	if _, err := os.Stat(journalDBPath); err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	j, err := journal.NewSQLite(journalDBPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return j, nil
}

func runJournalList(cmd *cobra.Command, args []string) error {
	j, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	runs, err := j.ListBacktestRuns(cmd.Context(), journalLimit)
	if err != nil {
		return fmt.Errorf("query runs: %w", err)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN ID\tSTRATEGY\tTICKERS\tPERIOD\tRETURN\tSHARPE\tMAX DD\tTRADES")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s..%s\t%.2f%%\t%.2f\t%.2f%%\t%d\n",
			r.RunID, r.Strategy, strings.Join(r.Tickers, ","),
			r.Start.Format(market.DateLayout), r.End.Format(market.DateLayout),
			r.ReturnPct, r.Sharpe, r.MaxDDPct, r.Trades)
	}
	return w.Flush()
}

func runJournalShow(cmd *cobra.Command, args []string) error {
	j, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	report, err := j.ExportBacktestOrg(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("export run: %w", err)
	}

	if journalOut != "" {
		if err := os.WriteFile(journalOut, []byte(report), 0644); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %s\n", journalOut)
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), report)
	return nil
}

func runJournalDays(cmd *cobra.Command, args []string) error {
	j, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	days, err := j.ListDaysByRunID(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("query days: %w", err)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tVALUE\tRETURN\tCASH\tMARGIN\tTRADES\tNOTE")
	for _, d := range days {
		fmt.Fprintf(w, "%s\t%.2f\t%.4f%%\t%.2f\t%.2f\t%d\t%s\n",
			d.Date.Format(market.DateLayout), d.Value, d.DailyReturn*100,
			d.Cash, d.MarginUsed, d.Trades, d.SkipReason)
	}
	return w.Flush()
}

func runJournalTrades(cmd *cobra.Command, args []string) error {
	from, err := time.Parse(market.DateLayout, journalFrom)
	if err != nil {
		return fmt.Errorf("from: %w", err)
	}
	to, err := time.Parse(market.DateLayout, journalTo)
	if err != nil {
		return fmt.Errorf("to: %w", err)
	}
	if to.Before(from) {
		return fmt.Errorf("--to %s is before --from %s", journalTo, journalFrom)
	}

	j, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	trades, err := j.ListTradesBetween(cmd.Context(), from, to.AddDate(0, 0, 1))
	if err != nil {
		return fmt.Errorf("query trades: %w", err)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tRUN ID\tTICKER\tACTION\tQTY\tPRICE\tNOTIONAL\tREALIZED")
	for _, t := range trades {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%.2f\t%.2f\t%.2f\n",
			t.Date.Format(market.DateLayout), t.RunID, t.Ticker, strings.ToUpper(t.Action),
			t.Quantity, t.Price, t.Price*float64(t.Quantity), t.RealizedPL)
	}
	return w.Flush()
}

func runJournalTrade(cmd *cobra.Command, args []string) error {
	j, err := openJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	rec, err := j.GetTrade(args[0])
	if err != nil {
		return fmt.Errorf("get trade: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), journal.FormatTradeOrg(rec))
	return nil
}
