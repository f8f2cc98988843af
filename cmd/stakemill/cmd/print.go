package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/stakemill/stakemill/ledger"
)

func timeNow() time.Time { return time.Now() }

// printEntry renders one ledger entry as a field/value table.
func printEntry(e ledger.Entry) {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Field", "Value")
	table.Append("Key", e.Key)
	table.Append("Audit ID", e.AuditID)
	table.Append("Market", fmt.Sprintf("%s / %s", e.MarketID, e.Selection))
	table.Append("Stake", e.Stake.StringFixed(2))
	table.Append("Odds", fmt.Sprintf("%.3f", e.Odds))
	table.Append("Probability", fmt.Sprintf("%.3f", e.Probability))
	table.Append("Edge", fmt.Sprintf("%.4f", e.Edge))
	table.Append("Result", string(e.Result))
	if e.Reason != "" {
		table.Append("Reason", e.Reason)
	}
	if e.ConfirmationID != "" {
		table.Append("Confirmation", e.ConfirmationID)
	}
	if e.Settled() {
		table.Append("P/L", e.PL.StringFixed(2))
		table.Append("Settled at", e.SettledAt.Format(time.RFC3339))
	}
	table.Append("Dry run", fmt.Sprintf("%v", e.DryRun))
	table.Append("Placed at", e.PlacedAt.Format(time.RFC3339))
	table.Render()
}

// printEntries renders a ledger listing.
func printEntries(entries []ledger.Entry) {
	if len(entries) == 0 {
		fmt.Println("no entries")
		return
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Placed", "Key", "Market", "Selection", "Stake", "Odds", "Result", "P/L")
	for _, e := range entries {
		pl := ""
		if e.Settled() {
			pl = e.PL.StringFixed(2)
		}
		table.Append(
			e.PlacedAt.Format("2006-01-02 15:04"),
			e.Key,
			e.MarketID,
			e.Selection,
			e.Stake.StringFixed(2),
			fmt.Sprintf("%.3f", e.Odds),
			string(e.Result),
			pl,
		)
	}
	table.Render()
}
