package driver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/promoclaim/internal/common"
	"github.com/sethvargo/go-retry"
)

var errNotSignedIn = errors.New("not signed in yet")

// Login signs the driver in: stored cookies first, then a manual login that
// pre-fills secret when it is non-empty. On success the session cookies are
// saved under the resolved identity.
func (d *Driver) Login(ctx context.Context, secret string) error {
	if err := d.expect(StateReady, StateLoginFailed); err != nil {
		return err
	}
	d.secret = secret
	d.setState(StateAuthenticating)

	if d.loginWithCookies(ctx, d.identity) {
		d.setResolved(d.identity)
		d.persistSession(ctx, d.identity)
		d.setState(StateAuthenticated)
		d.log.Info(ctx, "session restored", "identity", d.identity)
		return nil
	}

	peeked, err := d.loginManual(ctx, d.policy.LoginTimeout)
	if err != nil {
		d.setState(StateLoginFailed)
		d.log.Warn(ctx, "login failed", "error", err)
		return fmt.Errorf("%w: %s: %v", common.ErrLoginFailed, d.email, err)
	}

	resolved := d.identity
	if peeked != "" {
		resolved = peeked
	}
	d.setResolved(resolved)
	d.persistSession(ctx, resolved)
	d.setState(StateAuthenticated)
	d.log.Info(ctx, "manual login succeeded", "identity", resolved)
	return nil
}

func (d *Driver) persistSession(ctx context.Context, identity string) {
	if err := d.saveSession(ctx, identity); err != nil {
		d.log.Warn(ctx, "session not saved", "identity", identity, "error", err)
	}
}

// loginWithCookies tries the stored bundle for identity. A bundle that no
// longer signs in is deleted.
func (d *Driver) loginWithCookies(ctx context.Context, identity string) bool {
	if !d.sessions.Exists(identity) {
		return false
	}
	cookies := d.sessions.Load(ctx, identity)
	if len(cookies) == 0 {
		return false
	}

	err := d.step(ctx, d.site.EstablishContext)
	if err == nil {
		err = d.step(ctx, func(ctx context.Context) error { return d.site.InjectCookies(ctx, cookies) })
	}
	if err == nil {
		err = d.step(ctx, d.site.OpenAccountPage)
	}
	if err == nil && d.probe(ctx, d.site.VerifyAuthenticated) {
		return true
	}

	d.log.Info(ctx, "stored session rejected", "identity", identity, "error", err)
	if derr := d.sessions.Delete(identity); derr != nil {
		d.log.Warn(ctx, "delete rejected session", "identity", identity, "error", derr)
	}
	return false
}

// loginManual opens the login page and waits up to timeout for a signed-in
// state, returning any unmasked identity seen in the login form.
func (d *Driver) loginManual(ctx context.Context, timeout time.Duration) (string, error) {
	if err := d.step(ctx, d.site.OpenLoginPage); err != nil {
		return "", err
	}
	if d.secret != "" {
		if err := d.step(ctx, func(ctx context.Context) error {
			return d.site.FillLogin(ctx, d.email, d.secret)
		}); err != nil {
			d.log.Debug(ctx, "login form not pre-filled", "error", err)
		}
	}

	d.log.Info(ctx, "waiting for manual login", "timeout", timeout)

	var peeked string
	err := d.poll(ctx, timeout, retry.NewConstant(d.policy.LoginPoll), func(ctx context.Context) error {
		if peeked == "" {
			peeked = d.peekIdentity(ctx)
		}
		if d.probe(ctx, d.site.VerifyAuthenticated) || d.probe(ctx, d.site.InAuthenticatedArea) {
			return nil
		}
		return errNotSignedIn
	})
	return peeked, err
}

// relogin restores a lost session once: cookies, then manual login.
func (d *Driver) relogin(ctx context.Context) bool {
	id := d.ResolvedIdentity()
	if d.loginWithCookies(ctx, id) {
		return true
	}
	if _, err := d.loginManual(ctx, d.policy.LoginTimeout); err != nil {
		return false
	}
	d.persistSession(ctx, id)
	return true
}
