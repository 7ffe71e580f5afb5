// Package driver runs one storefront session for one account: sign in
// (stored cookies first, then a supervised manual login), discover offers
// and claim them one at a time behind a strict zero-price gate.
//
// A Driver is used by a single goroutine; State may be read from others.
// Callers must defer Close, which is idempotent.
package driver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/promoclaim/internal/common"
	"github.com/dmitrijs2005/promoclaim/internal/logging"
	"github.com/dmitrijs2005/promoclaim/internal/vault"
	"github.com/sethvargo/go-retry"
)

type Driver struct {
	site     Site
	sessions Sessions
	policy   Policy
	log      logging.Logger

	email    string
	identity string
	resolved string
	secret   string

	mu        sync.Mutex
	state     State
	closeOnce sync.Once
	closeErr  error
}

// New builds a driver for the account configured as email whose sessions
// are stored under identity (pass "" to use the email).
func New(site Site, sessions Sessions, email, identity string, policy Policy, log logging.Logger) *Driver {
	if identity == "" {
		identity = email
	}
	return &Driver{
		site:     site,
		sessions: sessions,
		policy:   policy.withDefaults(),
		log:      log.With("account", email),
		email:    email,
		identity: identity,
		state:    StateUninitialized,
	}
}

func (d *Driver) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *Driver) setState(s State) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != StateClosed {
		d.state = s
	}
}

func (d *Driver) expect(allowed ...State) error {
	cur := d.State()
	for _, s := range allowed {
		if cur == s {
			return nil
		}
	}
	return fmt.Errorf("%w: driver is %s", common.ErrInvalidState, cur)
}

// ResolvedIdentity is the identity sessions and claims are keyed by after a
// successful login; before that it is the configured identity.
func (d *Driver) ResolvedIdentity() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.resolved != "" {
		return d.resolved
	}
	return d.identity
}

func (d *Driver) setResolved(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resolved = id
}

// Start opens the browser session.
func (d *Driver) Start(ctx context.Context) error {
	if err := d.expect(StateUninitialized); err != nil {
		return err
	}
	if err := d.step(ctx, d.site.Open); err != nil {
		return err
	}
	d.setState(StateReady)
	return nil
}

// Close releases the browser. It is safe to call more than once and from
// any state; the driver always ends Closed.
func (d *Driver) Close() error {
	d.closeOnce.Do(func() {
		d.closeErr = d.guard(d.site.Close)
		d.mu.Lock()
		d.state = StateClosed
		d.mu.Unlock()
	})
	return d.closeErr
}

// guard runs fn, turning a panic into ErrAutomationFault.
func (d *Driver) guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", common.ErrAutomationFault, r)
		}
	}()
	return fn()
}

// step runs one site call under the step timeout and panic guard.
func (d *Driver) step(ctx context.Context, fn func(context.Context) error) error {
	return d.guard(func() error {
		sctx, cancel := context.WithTimeout(ctx, d.policy.StepTimeout)
		defer cancel()
		return fn(sctx)
	})
}

// probe is step for boolean checks; errors count as false.
func (d *Driver) probe(ctx context.Context, fn func(context.Context) (bool, error)) bool {
	var ok bool
	err := d.step(ctx, func(ctx context.Context) error {
		var err error
		ok, err = fn(ctx)
		return err
	})
	if err != nil {
		d.log.Debug(ctx, "probe failed", "error", err)
		return false
	}
	return ok
}

// poll calls fn on the backoff schedule until it returns nil. timeout is a
// hard ceiling: site calls still running when it expires are cancelled.
// A non-nil return from fn means "not yet".
func (d *Driver) poll(ctx context.Context, timeout time.Duration, b retry.Backoff, fn func(context.Context) error) error {
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var pending error
	err := retry.Do(pctx, b, func(ctx context.Context) error {
		if pending = fn(ctx); pending != nil {
			return retry.RetryableError(pending)
		}
		return nil
	})
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil && pending != nil {
		return fmt.Errorf("%w (gave up after %s)", pending, timeout)
	}
	return err
}

// usableIdentity reports whether s looks like a real, unmasked address.
func usableIdentity(s string) bool {
	s = strings.TrimSpace(s)
	at := strings.Index(s, "@")
	return at > 0 && strings.Contains(s[at:], ".") && !strings.Contains(s, "*")
}

func (d *Driver) peekIdentity(ctx context.Context) string {
	var id string
	_ = d.step(ctx, func(ctx context.Context) error {
		var err error
		id, err = d.site.PeekLoginIdentity(ctx)
		return err
	})
	id = strings.ToLower(strings.TrimSpace(id))
	if usableIdentity(id) {
		return id
	}
	return ""
}

// saveSession captures the current cookies under identity.
func (d *Driver) saveSession(ctx context.Context, identity string) error {
	_ = d.step(ctx, d.site.OpenAccountPage)

	var cookies []vault.Cookie
	err := d.step(ctx, func(ctx context.Context) error {
		var err error
		cookies, err = d.site.ReadCookies(ctx)
		return err
	})
	if err != nil {
		return err
	}
	if len(cookies) == 0 {
		return errors.New("no cookies captured")
	}
	return d.sessions.Save(ctx, identity, cookies)
}
