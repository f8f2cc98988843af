package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/stakemill/stakemill/backtest"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Replay a historical odds stream through the decision path",
	Long: `Backtest replays a time-ordered CSV of historical odds and outcomes
through the same staking and risk code path used for live placement.

The data file may be plain .csv, .csv.xz, or a .zip archive containing
a CSV. Columns:

  time,market_id,selection,probability,odds,outcome,settle_offset

Example:
  stakemill backtest --data data/epl-2024.csv.xz --bankroll 10000`,
	RunE: runBacktest,
}

var (
	btDataPath  string
	btBankroll  string
	btDecisions bool
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().StringVarP(&btDataPath, "data", "d", "", "path to historical odds data (required)")
	backtestCmd.Flags().StringVarP(&btBankroll, "bankroll", "b", "", "starting bankroll (overrides config)")
	backtestCmd.Flags().BoolVar(&btDecisions, "decisions", false, "print every accept/reject decision")

	backtestCmd.MarkFlagRequired("data")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := buildLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	bankroll, err := cfg.InitialBankroll()
	if err != nil {
		return err
	}
	if btBankroll != "" {
		if bankroll, err = decimal.NewFromString(btBankroll); err != nil {
			return fmt.Errorf("bad bankroll %q: %w", btBankroll, err)
		}
	}

	rc, err := backtest.OpenData(btDataPath)
	if err != nil {
		return err
	}

	runner := backtest.NewRunner(backtest.Config{
		InitialBankroll: bankroll,
		Staking:         cfg.StakingParams(),
		Policy:          cfg.RiskPolicy(),
	}, log)

	res, err := runner.Run(context.Background(), backtest.NewCSVFeed(rc))
	if err != nil {
		return err
	}

	if btDecisions {
		printDecisions(res.Decisions)
		fmt.Println()
	}
	printSummary(res)
	return nil
}

func printDecisions(decisions []backtest.Decision) {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Time", "Market", "Verdict", "Reason", "Stake")
	for _, d := range decisions {
		verdict, reason := "placed", ""
		if !d.Accepted {
			verdict, reason = "rejected", string(d.Reason)
		}
		table.Append(d.At.Format("2006-01-02 15:04"), d.MarketID, verdict, reason, d.Stake.StringFixed(2))
	}
	table.Render()
}

func printSummary(res backtest.Result) {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Metric", "Value")
	table.Append("Period", fmt.Sprintf("%s .. %s",
		res.Start.Format("2006-01-02"), res.End.Format("2006-01-02")))
	table.Append("Placed", fmt.Sprintf("%d", res.Placed))
	table.Append("Wins / Losses / Voids", fmt.Sprintf("%d / %d / %d", res.Wins, res.Losses, res.Voids))
	table.Append("Skipped rows", fmt.Sprintf("%d", res.Skipped))
	table.Append("Initial bankroll", res.InitialBankroll.StringFixed(2))
	table.Append("Final bankroll", res.FinalBankroll.StringFixed(2))
	table.Append("ROI", fmt.Sprintf("%.2f%%", res.ROI*100))
	table.Append("Max drawdown", fmt.Sprintf("%.2f%%", res.MaxDrawdown*100))
	table.Append("Sharpe (per bet)", fmt.Sprintf("%.3f", res.Sharpe))
	table.Render()
}
