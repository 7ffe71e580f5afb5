package driver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/promoclaim/internal/common"
	"github.com/dmitrijs2005/promoclaim/internal/logging"
	"github.com/dmitrijs2005/promoclaim/internal/vault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastPolicy = Policy{
	LoginPoll:        time.Millisecond,
	LoginTimeout:     40 * time.Millisecond,
	EnrollTimeout:    40 * time.Millisecond,
	CheckoutAttempts: 5,
	CheckoutPoll:     time.Millisecond,
	ReclickEvery:     5,
	ConfirmPoll:      time.Millisecond,
	ConfirmTimeout:   20 * time.Millisecond,
	StepTimeout:      time.Second,
}

var sessionCookies = []vault.Cookie{{Name: "sid", Value: "1", Domain: ".store.example"}}

func newTestVault(t *testing.T) *vault.Vault {
	t.Helper()
	v, err := vault.New(t.TempDir(), 0, logging.Nop())
	require.NoError(t, err)
	return v
}

func startedDriver(t *testing.T, site *fakeSite, v *vault.Vault, email string) *Driver {
	t.Helper()
	d := New(site, v, email, "", fastPolicy, logging.Nop())
	require.NoError(t, d.Start(context.Background()))
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestDriver_StartAndCloseIdempotent(t *testing.T) {
	site := &fakeSite{}
	d := New(site, newTestVault(t), "me@example.com", "", fastPolicy, logging.Nop())
	assert.Equal(t, StateUninitialized, d.State())

	require.NoError(t, d.Start(context.Background()))
	assert.Equal(t, StateReady, d.State())

	require.NoError(t, d.Close())
	require.NoError(t, d.Close())
	assert.Equal(t, StateClosed, d.State())
	assert.Equal(t, 1, site.closed)

	require.ErrorIs(t, d.Start(context.Background()), common.ErrInvalidState)
}

func TestDriver_StartFailureStillCloses(t *testing.T) {
	site := &fakeSite{openErr: errors.New("no browser")}
	d := New(site, newTestVault(t), "me@example.com", "", fastPolicy, logging.Nop())

	require.Error(t, d.Start(context.Background()))
	require.NoError(t, d.Close())
	assert.Equal(t, StateClosed, d.State())
}

func TestDriver_LoginWithStoredCookies(t *testing.T) {
	ctx := context.Background()
	v := newTestVault(t)
	require.NoError(t, v.Save(ctx, "me@example.com", sessionCookies))

	site := &fakeSite{acceptCookies: true, cookies: sessionCookies}
	d := startedDriver(t, site, v, "me@example.com")

	require.NoError(t, d.Login(ctx, "pw"))
	assert.Equal(t, StateAuthenticated, d.State())
	assert.Equal(t, "me@example.com", d.ResolvedIdentity())
	assert.Zero(t, site.called("login_page"), "cookie path must not open the login page")
	assert.True(t, v.Exists("me@example.com"))
}

func TestDriver_RejectedCookiesFallBackToManual(t *testing.T) {
	ctx := context.Background()
	v := newTestVault(t)
	require.NoError(t, v.Save(ctx, "alias@example.com", sessionCookies))

	site := &fakeSite{manualAfter: 2, peek: "Real.Owner@Example.com", cookies: sessionCookies}
	d := startedDriver(t, site, v, "alias@example.com")

	require.NoError(t, d.Login(ctx, "secret"))
	assert.Equal(t, "real.owner@example.com", d.ResolvedIdentity())
	assert.False(t, v.Exists("alias@example.com"), "rejected bundle deleted")
	assert.True(t, v.Exists("real.owner@example.com"), "session saved under resolved identity")
	assert.Equal(t, []string{"alias@example.com:secret"}, site.filled)
}

func TestDriver_MaskedPeekKeepsConfiguredIdentity(t *testing.T) {
	ctx := context.Background()
	v := newTestVault(t)
	site := &fakeSite{manualAfter: 1, peek: "re***@example.com", cookies: sessionCookies}
	d := startedDriver(t, site, v, "me@example.com")

	require.NoError(t, d.Login(ctx, ""))
	assert.Equal(t, "me@example.com", d.ResolvedIdentity())
	assert.Empty(t, site.filled, "no secret, no pre-fill")
}

func TestDriver_LoginFails(t *testing.T) {
	ctx := context.Background()
	site := &fakeSite{}
	d := startedDriver(t, site, newTestVault(t), "me@example.com")

	err := d.Login(ctx, "pw")
	require.ErrorIs(t, err, common.ErrLoginFailed)
	assert.Equal(t, StateLoginFailed, d.State())

	out := d.Claim(ctx, Item{Name: "X"})
	assert.Equal(t, ClaimFailed, out.Status)
	require.ErrorIs(t, out.Err, common.ErrInvalidState)
}

func TestDriver_LoginTimeoutCutsOffHangingCheck(t *testing.T) {
	site := &fakeSite{hangVerify: true}
	d := startedDriver(t, site, newTestVault(t), "me@example.com")
	d.policy.LoginTimeout = 50 * time.Millisecond
	d.policy.StepTimeout = 2 * time.Second

	start := time.Now()
	err := d.Login(context.Background(), "")
	elapsed := time.Since(start)

	require.ErrorIs(t, err, common.ErrLoginFailed)
	assert.Less(t, elapsed, time.Second, "login wait outlived its timeout")
	assert.Equal(t, StateLoginFailed, d.State())
}

func TestDriver_ClaimBeforeLogin(t *testing.T) {
	d := startedDriver(t, &fakeSite{}, newTestVault(t), "me@example.com")
	_, err := d.Discover(context.Background())
	require.ErrorIs(t, err, common.ErrInvalidState)
}

func TestDriver_DiscoverAndOwned(t *testing.T) {
	ctx := context.Background()
	site := &fakeSite{manualAfter: 1, cookies: sessionCookies,
		items: []Item{{Name: "A", URL: "https://s.example/p/a"}},
		owned: []Item{{Name: "B"}}}
	d := startedDriver(t, site, newTestVault(t), "me@example.com")
	require.NoError(t, d.Login(ctx, ""))

	items, err := d.Discover(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, StateAuthenticated, d.State())

	owned, err := d.Owned(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Item{{Name: "B"}}, owned)
}
