// Package app wires configuration, persistence, the browser-backed session
// driver and the console into one runnable program.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/dmitrijs2005/promoclaim/internal/accounts"
	"github.com/dmitrijs2005/promoclaim/internal/browser"
	"github.com/dmitrijs2005/promoclaim/internal/claim"
	"github.com/dmitrijs2005/promoclaim/internal/cli"
	"github.com/dmitrijs2005/promoclaim/internal/config"
	"github.com/dmitrijs2005/promoclaim/internal/cryptox"
	"github.com/dmitrijs2005/promoclaim/internal/driver"
	"github.com/dmitrijs2005/promoclaim/internal/filex"
	"github.com/dmitrijs2005/promoclaim/internal/ledger"
	"github.com/dmitrijs2005/promoclaim/internal/logging"
	"github.com/dmitrijs2005/promoclaim/internal/site"
	"github.com/dmitrijs2005/promoclaim/internal/vault"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	profile *site.Profile

	vault        *vault.Vault
	accounts     *accounts.Store
	ledger       *ledger.Ledger
	orchestrator *claim.Orchestrator
	console      *cli.App
}

// NewApp opens every store under the configured data directory. Any failure
// here is a startup failure.
func NewApp(ctx context.Context, c *config.Config, logOut io.Writer) (*App, error) {
	logger := logging.New(logOut, c.LogLevel, c.LogFormat)

	key, err := loadKey(c)
	if err != nil {
		return nil, fmt.Errorf("key init error: %w", err)
	}

	profile, err := site.LoadProfile(c.SiteProfile)
	if err != nil {
		return nil, err
	}

	v, err := vault.New(c.SessionsDir(), c.SessionTTL, logger)
	if err != nil {
		return nil, fmt.Errorf("session vault init error: %w", err)
	}
	store, err := accounts.NewStore(ctx, c.AccountsFile(), key, v, c.NotificationDomains, logger)
	if err != nil {
		return nil, fmt.Errorf("account store init error: %w", err)
	}
	l, err := ledger.Open(ctx, c.LedgerFile(), c.RecentLogCapacity, logger)
	if err != nil {
		return nil, fmt.Errorf("claim ledger init error: %w", err)
	}

	a := &App{config: c, logger: logger, profile: profile, vault: v, accounts: store, ledger: l}

	a.orchestrator = claim.New(store, l, a.newSession, logger, claim.Options{
		MaxConcurrency: c.MaxConcurrency,
		ItemPause:      c.ItemPause,
		ExpiryWarnDays: c.ExpiryWarnDays,
		Sessions:       v,
		Events:         fanout{claim.LogSink{Log: logger}, cli.NewProgressSink(os.Stdout)},
	})
	a.console = cli.NewApp(cli.Deps{
		Accounts: store,
		Runner:   a.orchestrator,
		History:  l,
		Sessions: v,
		Enroll:   a.enroll,
		Log:      logger,
	})
	return a, nil
}

// loadKey derives the store key from the passphrase when one is configured,
// otherwise it uses (and creates on first run) the key file.
func loadKey(c *config.Config) ([]byte, error) {
	if c.Passphrase != "" {
		return cryptox.KeyFromPassphrase([]byte(c.Passphrase), c.SaltFile())
	}
	return cryptox.LoadOrCreateKey(c.KeyFile())
}

func (a *App) policy() driver.Policy {
	c := a.config
	p := driver.DefaultPolicy()
	p.LoginPoll = c.LoginPoll
	p.LoginTimeout = c.LoginTimeout
	p.EnrollTimeout = c.EnrollTimeout
	p.CheckoutAttempts = c.CheckoutAttempts
	p.CheckoutPoll = c.CheckoutPoll
	p.ReclickEvery = c.ReclickEvery
	p.ConfirmTimeout = c.ConfirmTimeout
	p.StepTimeout = c.StepTimeout
	return p
}

func (a *App) profileDir(key string) string {
	return filepath.Join(a.config.ProfilesDir(), filex.SafeName(key))
}

func (a *App) newBrowser(profileKey string) *browser.Browser {
	return browser.New(browser.Options{
		Headless:      a.config.Headless,
		UserDataDir:   a.profileDir(profileKey),
		ExecPath:      a.config.BrowserPath,
		ScreenshotDir: a.config.ScreenshotsDir(),
	}, a.logger.With("profile", profileKey))
}

// newSession gives every identity its own browser profile directory so
// concurrent sessions never share browser state.
func (a *App) newSession(acct accounts.Account) (claim.Session, error) {
	identity := acct.Identity()
	st := site.New(a.newBrowser(identity), a.profile, a.logger)
	return driver.New(st, a.vault, acct.Email, identity, a.policy(), a.logger), nil
}

// enroll runs a supervised first login in a fresh profile, then keeps that
// profile for the identity it revealed.
func (a *App) enroll(ctx context.Context) (string, error) {
	tmpKey := vault.NewPlaceholderKey()
	st := site.New(a.newBrowser(tmpKey), a.profile, a.logger)
	d := driver.New(st, a.vault, "", tmpKey, a.policy(), a.logger)

	if err := d.Start(ctx); err != nil {
		_ = d.Close()
		return "", err
	}
	identity, err := d.Enroll(ctx)
	if cerr := d.Close(); cerr != nil {
		a.logger.Warn(ctx, "browser close failed", "error", cerr)
	}

	tmpDir := a.profileDir(tmpKey)
	if err != nil {
		_ = os.RemoveAll(tmpDir)
		return "", err
	}
	if rerr := os.Rename(tmpDir, a.profileDir(identity)); rerr != nil {
		a.logger.Debug(ctx, "enrollment profile not kept", "error", rerr)
		_ = os.RemoveAll(tmpDir)
	}
	return identity, nil
}

func (a *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigs
		a.logger.Info(context.Background(), "interrupt received, finishing current steps")
		cancelFunc()
	}()
}

// Run starts the console, or a single claim pass with -auto. An interrupt
// stops new work; steps already running finish first.
func (a *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()
	a.initSignalHandler(cancelFunc)

	a.logger.Info(ctx, "starting", "data_dir", a.config.DataDir, "site", a.profile.Name,
		"max_concurrency", a.config.MaxConcurrency)

	if a.config.Auto {
		err := a.console.Auto(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	a.console.Root(ctx)
	return nil
}

// fanout delivers every event to each sink in order.
type fanout []claim.EventSink

func (f fanout) Emit(ctx context.Context, ev claim.Event) {
	for _, s := range f {
		s.Emit(ctx, ev)
	}
}
