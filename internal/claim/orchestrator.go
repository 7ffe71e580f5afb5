// Package claim runs claim passes over the account roster: one session per
// active account, at most MaxConcurrency at a time, with results folded
// back into the credential store and deduplicated by resolved identity.
package claim

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/promoclaim/internal/accounts"
	"github.com/dmitrijs2005/promoclaim/internal/common"
	"github.com/dmitrijs2005/promoclaim/internal/driver"
	"github.com/dmitrijs2005/promoclaim/internal/ledger"
	"github.com/dmitrijs2005/promoclaim/internal/logging"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxConcurrency caps simultaneously open browser sessions.
const DefaultMaxConcurrency = 3

type AccountStore interface {
	List() ([]accounts.Account, error)
	Decrypt(email string) (string, error)
	UpdateStatus(ctx context.Context, email string, status accounts.Status, claimed []string) error
	SetIdentity(ctx context.Context, email, identity string) error
}

type Ledger interface {
	IsClaimed(itemID, identity string) bool
	RecordClaim(ctx context.Context, itemID, name, identity string, meta ledger.Meta) error
}

// Session is one account's storefront session; *driver.Driver implements it.
type Session interface {
	Start(ctx context.Context) error
	Login(ctx context.Context, secret string) error
	ResolvedIdentity() string
	Discover(ctx context.Context) ([]driver.Item, error)
	Owned(ctx context.Context) ([]driver.Item, error)
	Claim(ctx context.Context, item driver.Item) driver.ClaimOutcome
	Close() error
}

// DriverFactory opens a session for acct. The orchestrator always closes it.
type DriverFactory func(acct accounts.Account) (Session, error)

type ExpiryChecker interface {
	ExpiryDays(identity string) int
}

type Options struct {
	MaxConcurrency int
	ItemPause      time.Duration
	// ExpiryWarnDays triggers a session_expiring event when the stored
	// session has at most this many whole days left. Zero disables it.
	ExpiryWarnDays int
	Sessions       ExpiryChecker
	Events         EventSink
}

type Orchestrator struct {
	store   AccountStore
	ledger  Ledger
	factory DriverFactory
	log     logging.Logger
	opts    Options
	now     func() time.Time
}

func New(store AccountStore, l Ledger, factory DriverFactory, log logging.Logger, opts Options) *Orchestrator {
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = DefaultMaxConcurrency
	}
	if opts.Events == nil {
		opts.Events = nopSink{}
	}
	return &Orchestrator{
		store:   store,
		ledger:  l,
		factory: factory,
		log:     log.With("component", "orchestrator"),
		opts:    opts,
		now:     time.Now,
	}
}

// RunAll processes every active account.
func (o *Orchestrator) RunAll(ctx context.Context) (*Summary, error) {
	return o.run(ctx, nil)
}

// Run processes the named active accounts only.
func (o *Orchestrator) Run(ctx context.Context, emails ...string) (*Summary, error) {
	want := make(map[string]struct{}, len(emails))
	for _, e := range emails {
		want[accounts.NormalizeEmail(e)] = struct{}{}
	}
	return o.run(ctx, want)
}

func (o *Orchestrator) run(ctx context.Context, want map[string]struct{}) (*Summary, error) {
	list, err := o.store.List()
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	selected := make([]accounts.Account, 0, len(list))
	for _, a := range list {
		if a.Status != accounts.StatusActive {
			continue
		}
		if want != nil {
			if _, ok := want[a.Email]; !ok {
				continue
			}
		}
		selected = append(selected, a)
	}

	o.log.Info(ctx, "claim pass started", "accounts", len(selected),
		"skipped", len(list)-len(selected), "max_concurrency", o.opts.MaxConcurrency)

	results := make([]*RunResult, len(selected))
	var g errgroup.Group
	g.SetLimit(o.opts.MaxConcurrency)
	for i, acct := range selected {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			results[i] = o.RunAccount(ctx, acct)
			return nil
		})
	}
	_ = g.Wait()

	sum := &Summary{Skipped: len(list) - len(selected)}
	seen := make(map[string]struct{}, len(results))
	var storeErrs []error

	for _, r := range results {
		if r == nil {
			sum.Skipped++
			continue
		}
		// Duplicates are folded too: each configured account records its
		// own outcome even when its result is dropped from the summary.
		if err := o.fold(ctx, r); err != nil {
			storeErrs = append(storeErrs, err)
		}

		key := strings.ToLower(r.Key())
		if _, dup := seen[key]; dup {
			sum.Duplicates = append(sum.Duplicates, r.ConfiguredEmail)
			o.opts.Events.Emit(ctx, Event{Kind: EventDuplicateDropped, Account: r.ConfiguredEmail,
				Identity: r.ResolvedIdentity, At: o.now()})
			continue
		}
		seen[key] = struct{}{}

		sum.Results = append(sum.Results, r)
		sum.TotalClaimed += len(r.Claimed)
		sum.TotalErrors += len(r.Errors)
	}

	o.log.Info(ctx, "claim pass finished", "results", len(sum.Results),
		"claimed", sum.TotalClaimed, "errors", sum.TotalErrors, "duplicates", len(sum.Duplicates))
	return sum, errors.Join(storeErrs...)
}

// fold writes a result's outcome back to the credential store.
func (o *Orchestrator) fold(ctx context.Context, r *RunResult) error {
	switch r.Status {
	case StatusSuccess:
		claimed := r.ClaimedIDs
		if claimed == nil {
			claimed = []string{}
		}
		if err := o.store.UpdateStatus(ctx, r.ConfiguredEmail, accounts.StatusActive, claimed); err != nil {
			return err
		}
		if r.ResolvedIdentity != "" {
			return o.store.SetIdentity(ctx, r.ConfiguredEmail, r.ResolvedIdentity)
		}
		return nil
	case StatusLoginFailed:
		return o.store.UpdateStatus(ctx, r.ConfiguredEmail, accounts.StatusLoginFailed, nil)
	default:
		return o.store.UpdateStatus(ctx, r.ConfiguredEmail, accounts.StatusError, nil)
	}
}

// RunAccount performs one account's pass. It never panics and never returns
// nil; failures are reported in the result.
func (o *Orchestrator) RunAccount(ctx context.Context, acct accounts.Account) (r *RunResult) {
	r = &RunResult{
		ConfiguredEmail:  acct.Email,
		ResolvedIdentity: acct.Identity(),
		Status:           StatusError,
		Errors:           []string{},
		StartedAt:        o.now(),
	}
	log := o.log.With("account", acct.Email)
	emit := func(kind EventKind, item, detail string) {
		o.opts.Events.Emit(ctx, Event{Kind: kind, Account: acct.Email, Identity: r.ResolvedIdentity,
			Item: item, Detail: detail, At: o.now()})
	}

	emit(EventAccountStarted, "", "")
	defer func() {
		if p := recover(); p != nil {
			r.Status = StatusError
			r.Errors = append(r.Errors, fmt.Sprintf("%v: panic: %v", common.ErrAutomationFault, p))
			log.Error(ctx, "account worker panicked", "panic", p)
		}
		r.FinishedAt = o.now()
		emit(EventAccountFinished, "", string(r.Status))
	}()

	secret, err := o.store.Decrypt(acct.Email)
	if err != nil {
		r.Errors = append(r.Errors, err.Error())
		log.Error(ctx, "secret unavailable", "error", err)
		return r
	}

	sess, err := o.factory(acct)
	if err != nil {
		r.Errors = append(r.Errors, fmt.Sprintf("open session: %v", err))
		log.Error(ctx, "session not opened", "error", err)
		return r
	}
	defer func() {
		if err := sess.Close(); err != nil {
			log.Warn(ctx, "session close", "error", err)
		}
	}()

	// Steps already started finish even if the pass is cancelled; the item
	// loop below is where cancellation is observed.
	work := context.WithoutCancel(ctx)

	if err := sess.Start(work); err != nil {
		r.Errors = append(r.Errors, fmt.Sprintf("start session: %v", err))
		return r
	}

	// Login re-saves the bundle, so its age is only meaningful before it.
	o.checkExpiry(ctx, acct.Identity(), emit)

	if err := sess.Login(work, secret); err != nil {
		if errors.Is(err, common.ErrLoginFailed) {
			r.Status = StatusLoginFailed
		}
		r.Errors = append(r.Errors, err.Error())
		emit(EventLoginFailed, "", err.Error())
		return r
	}
	r.ResolvedIdentity = sess.ResolvedIdentity()
	emit(EventLoginSucceeded, "", "")

	items, err := sess.Discover(work)
	if err != nil {
		r.Errors = append(r.Errors, err.Error())
		return r
	}
	r.Discovered = items
	if len(items) == 0 {
		r.Status = StatusSuccess
		r.Errors = append(r.Errors, "item list empty")
		return r
	}

	owned := map[string]struct{}{}
	if list, err := sess.Owned(work); err != nil {
		log.Warn(ctx, "owned items unavailable", "error", err)
	} else {
		for _, it := range list {
			owned[ledger.NormalizeItemID(it.URL, it.Name)] = struct{}{}
		}
	}

	for i, item := range items {
		if ctx.Err() != nil {
			r.Errors = append(r.Errors, fmt.Sprintf("pass cancelled before %s", item.Name))
			break
		}
		o.claimItem(work, r, sess, item, owned, emit)

		if i < len(items)-1 && o.opts.ItemPause > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(o.opts.ItemPause):
			}
		}
	}

	r.Status = StatusSuccess
	return r
}

func (o *Orchestrator) claimItem(ctx context.Context, r *RunResult, sess Session, item driver.Item,
	owned map[string]struct{}, emit func(EventKind, string, string)) {

	identity := r.ResolvedIdentity
	id := ledger.NormalizeItemID(item.URL, item.Name)
	if id == "" {
		r.Errors = append(r.Errors, "item without url or name")
		return
	}

	if o.ledger.IsClaimed(id, identity) {
		r.AlreadyOwned = append(r.AlreadyOwned, item.Name)
		emit(EventItemSkipped, item.Name, "recorded in ledger")
		return
	}
	if _, ok := owned[id]; ok {
		r.AlreadyOwned = append(r.AlreadyOwned, item.Name)
		o.record(ctx, r, id, item, identity, ledger.Meta{Image: item.Image, Verification: ledger.VerificationAlreadyOwned})
		emit(EventItemSkipped, item.Name, "owned on storefront")
		return
	}
	if item.URL == "" {
		r.Errors = append(r.Errors, fmt.Sprintf("%s: no item url", item.Name))
		emit(EventItemFailed, item.Name, "no item url")
		return
	}

	out := sess.Claim(ctx, item)
	switch out.Status {
	case driver.ClaimClaimed:
		r.Claimed = append(r.Claimed, item.Name)
		r.ClaimedIDs = append(r.ClaimedIDs, id)
		o.record(ctx, r, id, item, identity, ledger.Meta{Price: out.Price, Image: item.Image,
			Verification: ledger.VerificationConfirmed})
		emit(EventItemClaimed, item.Name, out.Price)
	case driver.ClaimAlreadyOwned:
		r.AlreadyOwned = append(r.AlreadyOwned, item.Name)
		o.record(ctx, r, id, item, identity, ledger.Meta{Image: item.Image, Verification: ledger.VerificationAlreadyOwned})
		emit(EventItemSkipped, item.Name, "owned on storefront")
	default:
		msg := string(out.Status)
		if out.Err != nil {
			msg = out.Err.Error()
		}
		r.Errors = append(r.Errors, msg)
		emit(EventItemFailed, item.Name, msg)
	}
}

func (o *Orchestrator) record(ctx context.Context, r *RunResult, id string, item driver.Item, identity string, meta ledger.Meta) {
	if err := o.ledger.RecordClaim(ctx, id, item.Name, identity, meta); err != nil {
		r.Errors = append(r.Errors, fmt.Sprintf("ledger: %v", err))
		o.log.Error(ctx, "ledger write failed", "item", id, "error", err)
	}
}

func (o *Orchestrator) checkExpiry(ctx context.Context, identity string, emit func(EventKind, string, string)) {
	if o.opts.Sessions == nil || o.opts.ExpiryWarnDays <= 0 {
		return
	}
	days := o.opts.Sessions.ExpiryDays(identity)
	if days >= 0 && days <= o.opts.ExpiryWarnDays {
		emit(EventSessionExpiring, "", fmt.Sprintf("%d days left", days))
	}
}
