package driver

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/promoclaim/internal/common"
	"github.com/dmitrijs2005/promoclaim/internal/vault"
)

// Enroll supervises a first-time login for an account whose identity is not
// known yet. Cookies are captured under a placeholder key and moved to the
// identity read from the login form or the account page, which is returned.
func (d *Driver) Enroll(ctx context.Context) (string, error) {
	if err := d.expect(StateReady); err != nil {
		return "", err
	}
	d.setState(StateAuthenticating)

	peeked, err := d.loginManual(ctx, d.policy.EnrollTimeout)
	if err != nil {
		d.setState(StateLoginFailed)
		return "", fmt.Errorf("%w: enrollment: %v", common.ErrLoginFailed, err)
	}

	identity := peeked
	if identity == "" {
		_ = d.step(ctx, d.site.OpenAccountPage)
		identity = d.peekIdentity(ctx)
	}
	if identity == "" {
		d.setState(StateLoginFailed)
		return "", fmt.Errorf("%w: signed in but identity could not be read", common.ErrLoginFailed)
	}

	placeholder := vault.NewPlaceholderKey()
	if err := d.saveSession(ctx, placeholder); err != nil {
		d.setState(StateLoginFailed)
		return "", fmt.Errorf("save enrolled session: %w", err)
	}
	moved, err := d.sessions.Remap(ctx, placeholder, identity)
	if err != nil {
		d.setState(StateLoginFailed)
		return "", err
	}
	if !moved {
		d.setState(StateLoginFailed)
		return "", errors.New("enrolled session vanished before it could be stored")
	}

	d.setResolved(identity)
	d.setState(StateAuthenticated)
	d.log.Info(ctx, "account enrolled", "identity", identity)
	return identity, nil
}
