package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/promoclaim/internal/claim"
	"github.com/fatih/color"
)

// Claim runs a pass over all active accounts, or over the given emails.
func (a *App) Claim(ctx context.Context, args []string) error {
	var (
		s   *claim.Summary
		err error
	)
	if len(args) == 0 {
		s, err = a.runner.RunAll(ctx)
	} else {
		s, err = a.runner.Run(ctx, args...)
	}
	if s != nil {
		RenderSummary(a.out, s)
	}
	return err
}

// Auto runs one pass over every active account and prints the summary.
// Per-account failures are part of the summary, not an error.
func (a *App) Auto(ctx context.Context) error {
	a.log.Info(ctx, "automatic claim pass started")
	s, err := a.runner.RunAll(ctx)
	if s != nil {
		RenderSummary(a.out, s)
	}
	return err
}

// RenderSummary prints one block per account followed by the pass totals.
func RenderSummary(w io.Writer, s *claim.Summary) {
	cyan := color.New(color.FgCyan)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed)

	fmt.Fprintln(w)
	cyan.Fprintln(w, "  Claim summary")
	cyan.Fprintln(w, "  -------------")
	if len(s.Results) == 0 {
		fmt.Fprintln(w, "  No accounts were processed.")
	}

	for _, r := range s.Results {
		label := r.ConfiguredEmail
		if r.ResolvedIdentity != "" && r.ResolvedIdentity != r.ConfiguredEmail {
			label += " (" + r.ResolvedIdentity + ")"
		}
		switch r.Status {
		case claim.StatusSuccess:
			green.Fprintf(w, "  ✓ %s", label)
		case claim.StatusLoginFailed:
			yellow.Fprintf(w, "  ! %s", label)
		default:
			red.Fprintf(w, "  ✗ %s", label)
		}
		fmt.Fprintf(w, "  [%s, %s]\n", r.Status, r.Duration().Round(time.Second))

		if len(r.Claimed) > 0 {
			green.Fprintf(w, "      claimed: ")
			fmt.Fprintln(w, strings.Join(r.Claimed, ", "))
		}
		if len(r.AlreadyOwned) > 0 {
			fmt.Fprintf(w, "      already owned: %s\n", strings.Join(r.AlreadyOwned, ", "))
		}
		for _, e := range r.Errors {
			red.Fprintf(w, "      error: ")
			fmt.Fprintln(w, e)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Accounts: %d   Claimed: ", len(s.Results))
	green.Fprintf(w, "%d", s.TotalClaimed)
	fmt.Fprint(w, "   Errors: ")
	if s.TotalErrors > 0 {
		red.Fprintf(w, "%d", s.TotalErrors)
	} else {
		fmt.Fprint(w, "0")
	}
	fmt.Fprintf(w, "   Skipped: %d\n", s.Skipped)
	if len(s.Duplicates) > 0 {
		yellow.Fprintf(w, "  Duplicate sessions dropped: %s\n", strings.Join(s.Duplicates, ", "))
	}
	fmt.Fprintln(w)
}

// ProgressSink prints claim events as they happen. It is safe for
// concurrent use.
type ProgressSink struct {
	mu  sync.Mutex
	out io.Writer
}

func NewProgressSink(w io.Writer) *ProgressSink {
	return &ProgressSink{out: w}
}

func (p *ProgressSink) Emit(_ context.Context, ev claim.Event) {
	var line string
	switch ev.Kind {
	case claim.EventAccountStarted:
		line = color.CyanString("→ %s: starting", ev.Account)
	case claim.EventLoginSucceeded:
		line = fmt.Sprintf("  %s: signed in as %s", ev.Account, ev.Identity)
	case claim.EventLoginFailed:
		line = color.YellowString("  %s: sign-in failed: %s", ev.Account, ev.Detail)
	case claim.EventItemClaimed:
		line = color.GreenString("  %s: claimed %s", ev.Account, ev.Item)
	case claim.EventItemFailed:
		line = color.RedString("  %s: %s failed: %s", ev.Account, ev.Item, ev.Detail)
	case claim.EventSessionExpiring:
		line = color.YellowString("  %s: stored session expires soon (%s)", ev.Account, ev.Detail)
	case claim.EventDuplicateDropped:
		line = color.YellowString("  %s: same identity as an earlier account (%s)", ev.Account, ev.Identity)
	case claim.EventAccountFinished:
		line = fmt.Sprintf("← %s: %s", ev.Account, ev.Detail)
	default:
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, line)
}
