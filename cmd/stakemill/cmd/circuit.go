package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var circuitCmd = &cobra.Command{
	Use:   "circuit",
	Short: "Inspect or reset the risk circuit breaker",
}

var circuitStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current risk state and circuit latch",
	Args:  cobra.NoArgs,
	RunE:  runCircuitStatus,
}

var circuitResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Re-close a tripped circuit",
	Long: `Reset re-closes the circuit breaker and clears the loss streak.

The circuit latches for a reason; resetting it is a deliberate human
decision and requires --confirm.`,
	Args: cobra.NoArgs,
	RunE: runCircuitReset,
}

var circuitConfirm bool

func init() {
	rootCmd.AddCommand(circuitCmd)
	circuitCmd.AddCommand(circuitStatusCmd)
	circuitCmd.AddCommand(circuitResetCmd)

	circuitResetCmd.Flags().BoolVar(&circuitConfirm, "confirm", false, "confirm the reset")
}

func runCircuitStatus(cmd *cobra.Command, args []string) (err error) {
	sess, err := openSession()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sess.Close(); err == nil {
			err = cerr
		}
	}()

	snap := sess.coord.Snapshot()
	fmt.Printf("Bankroll:           %s\n", snap.Bankroll.StringFixed(2))
	fmt.Printf("Peak bankroll:      %s\n", snap.PeakBankroll.StringFixed(2))
	fmt.Printf("Day P/L:            %s\n", snap.DayRealized.StringFixed(2))
	fmt.Printf("Consecutive losses: %d\n", snap.ConsecutiveLosses)
	fmt.Printf("Open bets:          %d\n", snap.OpenBets)
	if snap.CircuitOpen {
		fmt.Printf("Circuit:            OPEN (%s at %s)\n",
			snap.TripReason, snap.TrippedAt.Format(time.RFC3339))
	} else {
		fmt.Printf("Circuit:            closed\n")
	}
	return nil
}

func runCircuitReset(cmd *cobra.Command, args []string) (err error) {
	sess, err := openSession()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sess.Close(); err == nil {
			err = cerr
		}
	}()

	snap := sess.coord.Snapshot()
	if !snap.CircuitOpen {
		fmt.Println("circuit is already closed")
		return nil
	}

	if err := sess.coord.ResetCircuit(circuitConfirm); err != nil {
		return err
	}
	fmt.Printf("circuit re-closed (was: %s)\n", snap.TripReason)
	return nil
}
