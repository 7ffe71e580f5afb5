package driver

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/promoclaim/internal/vault"
)

// fakeSite scripts the storefront. Zero values describe a site that never
// signs in and offers nothing.
type fakeSite struct {
	mu    sync.Mutex
	calls []string

	openErr error

	acceptCookies bool
	authenticated bool
	onLoginPage   bool
	manualAfter   int
	loginPolls    int
	peek          string
	cookies       []vault.Cookie
	injected      int
	filled        []string

	items []Item
	owned []Item

	loseSessionOnItem bool
	acq               Acquisition
	panicOnClassify   bool
	checkoutAfter     int
	checkoutPolls     int
	triggers          int
	needsReauth       bool
	reloads           int
	price             string
	priceErr          error
	confirmed         int
	succeeded         bool
	hangVerify        bool
	hangSuccess       bool
	shots             []string
	closed            int
}

func (f *fakeSite) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
}

func (f *fakeSite) called(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (f *fakeSite) Open(ctx context.Context) error {
	f.record("open")
	return f.openErr
}

func (f *fakeSite) Close() error {
	f.record("close")
	f.closed++
	return nil
}

func (f *fakeSite) EstablishContext(ctx context.Context) error {
	f.record("establish")
	return nil
}

func (f *fakeSite) InjectCookies(ctx context.Context, cookies []vault.Cookie) error {
	f.record("inject")
	f.injected++
	f.authenticated = f.acceptCookies
	return nil
}

func (f *fakeSite) ReadCookies(ctx context.Context) ([]vault.Cookie, error) {
	f.record("read_cookies")
	return f.cookies, nil
}

func (f *fakeSite) OpenAccountPage(ctx context.Context) error {
	f.record("account_page")
	return nil
}

func (f *fakeSite) OpenLoginPage(ctx context.Context) error {
	f.record("login_page")
	f.onLoginPage = true
	return nil
}

func (f *fakeSite) FillLogin(ctx context.Context, email, secret string) error {
	f.record("fill")
	f.filled = append(f.filled, email+":"+secret)
	return nil
}

func (f *fakeSite) PeekLoginIdentity(ctx context.Context) (string, error) {
	f.record("peek")
	return f.peek, nil
}

func (f *fakeSite) VerifyAuthenticated(ctx context.Context) (bool, error) {
	f.record("verify")
	if f.hangVerify {
		<-ctx.Done()
		return false, ctx.Err()
	}
	if f.onLoginPage && f.manualAfter > 0 {
		f.loginPolls++
		if f.loginPolls >= f.manualAfter {
			f.authenticated = true
			f.onLoginPage = false
		}
	}
	return f.authenticated, nil
}

func (f *fakeSite) InAuthenticatedArea(ctx context.Context) (bool, error) {
	f.record("in_area")
	return false, nil
}

func (f *fakeSite) DiscoverItems(ctx context.Context) ([]Item, error) {
	f.record("discover")
	return f.items, nil
}

func (f *fakeSite) OwnedItems(ctx context.Context) ([]Item, error) {
	f.record("owned")
	return f.owned, nil
}

func (f *fakeSite) OpenItem(ctx context.Context, item Item) error {
	f.record("open_item")
	if f.loseSessionOnItem {
		f.loseSessionOnItem = false
		f.authenticated = false
	}
	return nil
}

func (f *fakeSite) ClassifyAcquisition(ctx context.Context) (Acquisition, error) {
	f.record("classify")
	if f.panicOnClassify {
		panic("selector engine exploded")
	}
	return f.acq, nil
}

func (f *fakeSite) ClearInterstitial(ctx context.Context) error {
	f.record("clear")
	return nil
}

func (f *fakeSite) TriggerAcquisition(ctx context.Context) error {
	f.record("trigger")
	f.triggers++
	return nil
}

func (f *fakeSite) CheckoutReady(ctx context.Context) (bool, error) {
	f.record("checkout_ready")
	f.checkoutPolls++
	return f.checkoutAfter > 0 && f.checkoutPolls >= f.checkoutAfter, nil
}

func (f *fakeSite) CheckoutNeedsReauth(ctx context.Context) (bool, error) {
	f.record("needs_reauth")
	return f.needsReauth, nil
}

func (f *fakeSite) Reload(ctx context.Context) error {
	f.record("reload")
	f.reloads++
	f.needsReauth = false
	return nil
}

func (f *fakeSite) CheckoutPrice(ctx context.Context) (string, error) {
	f.record("price")
	return f.price, f.priceErr
}

func (f *fakeSite) ConfirmOrder(ctx context.Context) error {
	f.record("confirm")
	f.confirmed++
	return nil
}

func (f *fakeSite) ClaimSucceeded(ctx context.Context) (bool, error) {
	f.record("succeeded")
	if f.hangSuccess {
		<-ctx.Done()
		return false, ctx.Err()
	}
	return f.succeeded, nil
}

func (f *fakeSite) Screenshot(ctx context.Context, name string) (string, error) {
	f.record("screenshot")
	f.shots = append(f.shots, name)
	return "/tmp/" + name + ".png", nil
}
