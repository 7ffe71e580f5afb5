package cli

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"
)

const defaultHistoryLimit = 20

// History prints ledger totals and the latest log entries, newest first.
func (a *App) History(ctx context.Context, args []string) error {
	limit := defaultHistoryLimit
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return fmt.Errorf("%w: history [n], n must be a positive number", errUsage)
		}
		limit = n
	}

	st := a.history.Stats()
	fmt.Fprintf(a.out, "Items: %d   Identities: %d   Claims: %d\n", st.Items, st.Identities, st.Claims)

	entries := a.history.RecentLog(limit)
	if len(entries) == 0 {
		fmt.Fprintln(a.out, "No claims recorded yet.")
		return nil
	}
	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tIDENTITY\tITEM\tSTATUS")
	for _, e := range entries {
		name := e.ItemName
		if name == "" {
			name = e.ItemID
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.At.Local().Format("2006-01-02 15:04"), e.Identity, name, e.Status)
	}
	return tw.Flush()
}
