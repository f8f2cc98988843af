package cmd

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/stakemill/stakemill/engine"
	"github.com/stakemill/stakemill/ledger"
	"github.com/stakemill/stakemill/pkg/id"
)

var placeCmd = &cobra.Command{
	Use:   "place",
	Short: "Size, risk-check and place a single wager",
	Long: `Place runs one candidate through the full pipeline: stake sizing,
risk gate, ledger reservation and the configured sink (paper or live).

The idempotency key makes retries safe: re-running with the same --key
returns the recorded outcome without placing again.

Example:
  stakemill place --market match-421 --selection home -p 0.55 -o 2.10`,
	RunE: runPlace,
}

var (
	placeKey       string
	placeMarket    string
	placeSelection string
	placeProb      float64
	placeOdds      float64
)

func init() {
	rootCmd.AddCommand(placeCmd)

	placeCmd.Flags().StringVarP(&placeKey, "key", "k", "", "idempotency key (generated when omitted)")
	placeCmd.Flags().StringVarP(&placeMarket, "market", "m", "", "market identifier (required)")
	placeCmd.Flags().StringVarP(&placeSelection, "selection", "s", "", "selection within the market (required)")
	placeCmd.Flags().Float64VarP(&placeProb, "probability", "p", 0, "forecast win probability (required)")
	placeCmd.Flags().Float64VarP(&placeOdds, "odds", "o", 0, "decimal odds on offer (required)")

	placeCmd.MarkFlagRequired("market")
	placeCmd.MarkFlagRequired("selection")
	placeCmd.MarkFlagRequired("probability")
	placeCmd.MarkFlagRequired("odds")
}

func runPlace(cmd *cobra.Command, args []string) (err error) {
	sess, err := openSession()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sess.Close(); err == nil {
			err = cerr
		}
	}()

	key := placeKey
	if key == "" {
		key = id.New()
	}

	entry, err := sess.coord.Place(context.Background(), engine.Request{
		Key:         key,
		MarketID:    placeMarket,
		Selection:   placeSelection,
		Probability: placeProb,
		Odds:        placeOdds,
	})
	if err != nil {
		return fmt.Errorf("place: %w", err)
	}

	printEntry(entry)
	return nil
}

var settleCmd = &cobra.Command{
	Use:   "settle <key> <win|loss|void>",
	Short: "Settle a placed wager and update risk state",
	Args:  cobra.ExactArgs(2),
	RunE:  runSettle,
}

var settlePL string

func init() {
	rootCmd.AddCommand(settleCmd)
	settleCmd.Flags().StringVar(&settlePL, "pl", "", "realized profit/loss (derived from stake and odds when omitted)")
}

func runSettle(cmd *cobra.Command, args []string) (err error) {
	sess, err := openSession()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sess.Close(); err == nil {
			err = cerr
		}
	}()

	key := args[0]
	result := ledger.Result(args[1])
	ctx := context.Background()

	pl, err := settlementPL(ctx, sess, key, result)
	if err != nil {
		return err
	}

	entry, err := sess.coord.Settle(ctx, key, result, pl, timeNow())
	if err != nil {
		return fmt.Errorf("settle: %w", err)
	}

	printEntry(entry)
	snap := sess.coord.Snapshot()
	fmt.Printf("\nBankroll: %s  Day P/L: %s  Streak: %d\n",
		snap.Bankroll.StringFixed(2), snap.DayRealized.StringFixed(2), snap.ConsecutiveLosses)
	return nil
}

// settlementPL resolves the realized P/L: the explicit --pl flag wins,
// otherwise it is derived from the recorded stake and odds.
func settlementPL(ctx context.Context, sess *session, key string, result ledger.Result) (decimal.Decimal, error) {
	if settlePL != "" {
		pl, err := decimal.NewFromString(settlePL)
		if err != nil {
			return decimal.Zero, fmt.Errorf("bad --pl %q: %w", settlePL, err)
		}
		return pl, nil
	}

	entry, err := sess.store.Get(ctx, key)
	if err != nil {
		return decimal.Zero, fmt.Errorf("settle %q: %w", key, err)
	}
	switch result {
	case ledger.ResultWin:
		return entry.Stake.Mul(decimal.NewFromFloat(entry.Odds - 1)), nil
	case ledger.ResultLoss:
		return entry.Stake.Neg(), nil
	default:
		return decimal.Zero, nil
	}
}
