package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/promoclaim/internal/accounts"
	"github.com/dmitrijs2005/promoclaim/internal/claim"
	"github.com/dmitrijs2005/promoclaim/internal/ledger"
	"github.com/dmitrijs2005/promoclaim/internal/logging"
)

// Accounts is the roster surface the console edits; *accounts.Store
// implements it.
type Accounts interface {
	Add(ctx context.Context, email, secret string, status accounts.Status) error
	Remove(ctx context.Context, email string) error
	Get(email string) (accounts.Account, error)
	List() ([]accounts.Account, error)
	Enable(ctx context.Context, email string) error
	Disable(ctx context.Context, email string) error
}

// Runner runs claim passes; *claim.Orchestrator implements it.
type Runner interface {
	RunAll(ctx context.Context) (*claim.Summary, error)
	Run(ctx context.Context, emails ...string) (*claim.Summary, error)
}

type History interface {
	RecentLog(limit int) []ledger.LogEntry
	Stats() ledger.Stats
}

type Sessions interface {
	ExpiryDays(identity string) int
}

// EnrollFunc opens a browser for an interactive sign-in and returns the
// identity the storefront reported.
type EnrollFunc func(ctx context.Context) (string, error)

type Deps struct {
	Accounts Accounts
	Runner   Runner
	History  History
	Sessions Sessions
	Enroll   EnrollFunc
	Log      logging.Logger
}

type App struct {
	accounts Accounts
	runner   Runner
	history  History
	sessions Sessions
	enroll   EnrollFunc
	log      logging.Logger

	reader *bufio.Reader
	out    io.Writer
}

func NewApp(d Deps) *App {
	log := d.Log
	if log == nil {
		log = logging.Nop()
	}
	return &App{
		accounts: d.Accounts,
		runner:   d.Runner,
		history:  d.History,
		sessions: d.Sessions,
		enroll:   d.Enroll,
		log:      log,
		reader:   bufio.NewReader(os.Stdin),
		out:      os.Stdout,
	}
}

// Root runs the interactive console until the user exits or stdin closes.
func (a *App) Root(ctx context.Context) {
	printlnFn("promoclaim console (type 'help' for commands)")
	runREPL(ctx, a, a.getStatus, a.reader)
}

func (a *App) getStatus() string {
	list, err := a.accounts.List()
	if err != nil {
		return "(roster unavailable)"
	}
	active := 0
	for _, acct := range list {
		if acct.Status == accounts.StatusActive {
			active++
		}
	}
	return fmt.Sprintf("(%d/%d active)", active, len(list))
}
