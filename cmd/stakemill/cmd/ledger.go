package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/stakemill/stakemill/ledger"
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Query the wager audit trail",
	Long: `Query and display wager records from the SQLite ledger.

Examples:
  stakemill ledger show <key>
  stakemill ledger today
  stakemill ledger day 2025-03-01
  stakemill ledger result unconfirmed`,
}

var ledgerShowCmd = &cobra.Command{
	Use:   "show <key>",
	Short: "Show the full record for one idempotency key",
	Args:  cobra.ExactArgs(1),
	RunE:  runLedgerShow,
}

var ledgerTodayCmd = &cobra.Command{
	Use:   "today",
	Short: "List wagers placed today",
	Args:  cobra.NoArgs,
	RunE:  runLedgerToday,
}

var ledgerDayCmd = &cobra.Command{
	Use:   "day <YYYY-MM-DD>",
	Short: "List wagers placed on a specific day",
	Args:  cobra.ExactArgs(1),
	RunE:  runLedgerDay,
}

var ledgerResultCmd = &cobra.Command{
	Use:   "result <state>",
	Short: "List wagers currently in the given state",
	Long:  `States: pending, confirmed, win, loss, void, rejected, failed, unconfirmed.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runLedgerResult,
}

func init() {
	rootCmd.AddCommand(ledgerCmd)
	ledgerCmd.AddCommand(ledgerShowCmd)
	ledgerCmd.AddCommand(ledgerTodayCmd)
	ledgerCmd.AddCommand(ledgerDayCmd)
	ledgerCmd.AddCommand(ledgerResultCmd)
}

func openStore() (*ledger.SQLite, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return ledger.NewSQLite(cfg.Ledger.DBPath)
}

func runLedgerShow(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	entry, err := store.Get(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("ledger show: %w", err)
	}
	printEntry(entry)
	return nil
}

func runLedgerToday(cmd *cobra.Command, args []string) error {
	y, m, d := time.Now().UTC().Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return listRange(start, start.AddDate(0, 0, 1))
}

func runLedgerDay(cmd *cobra.Command, args []string) error {
	start, err := time.Parse("2006-01-02", args[0])
	if err != nil {
		return fmt.Errorf("bad day %q, want YYYY-MM-DD", args[0])
	}
	return listRange(start, start.AddDate(0, 0, 1))
}

func listRange(start, end time.Time) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.ListRange(context.Background(), start, end)
	if err != nil {
		return err
	}
	printEntries(entries)
	return nil
}

func runLedgerResult(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.ListByResult(context.Background(), ledger.Result(args[0]))
	if err != nil {
		return err
	}
	printEntries(entries)
	return nil
}
