package claim

import (
	"time"

	"github.com/dmitrijs2005/promoclaim/internal/driver"
)

type Status string

const (
	StatusSuccess     Status = "success"
	StatusLoginFailed Status = "login_failed"
	StatusError       Status = "error"
)

// RunResult is what one account's pass produced. Claimed and AlreadyOwned
// hold item names; ClaimedIDs holds the normalized ids of Claimed.
type RunResult struct {
	ConfiguredEmail  string
	ResolvedIdentity string
	Status           Status
	Discovered       []driver.Item
	Claimed          []string
	ClaimedIDs       []string
	AlreadyOwned     []string
	Errors           []string
	StartedAt        time.Time
	FinishedAt       time.Time
}

// Key is the identity results are deduplicated by.
func (r *RunResult) Key() string {
	if r.ResolvedIdentity != "" {
		return r.ResolvedIdentity
	}
	return r.ConfiguredEmail
}

func (r *RunResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

type Summary struct {
	Results      []*RunResult
	TotalClaimed int
	TotalErrors  int
	// Duplicates lists configured emails whose session resolved to an
	// identity already reported by an earlier account.
	Duplicates []string
	// Skipped counts accounts that were not run: not active, not selected,
	// or not started before cancellation.
	Skipped int
}
