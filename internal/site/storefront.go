// Package site implements the driver's storefront surface on top of a
// browser page, with every URL, selector and label taken from a Profile.
package site

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/dmitrijs2005/promoclaim/internal/browser"
	"github.com/dmitrijs2005/promoclaim/internal/driver"
	"github.com/dmitrijs2005/promoclaim/internal/logging"
	"github.com/dmitrijs2005/promoclaim/internal/vault"
)

// Page is the browser surface a Storefront needs. *browser.Browser
// implements it.
type Page interface {
	Start(ctx context.Context) error
	Close() error
	Navigate(ctx context.Context, url string) error
	Location(ctx context.Context) (string, error)
	Exists(ctx context.Context, selector string) (bool, error)
	Text(ctx context.Context, selector string) (string, error)
	Value(ctx context.Context, selector string) (string, error)
	Links(ctx context.Context, selector string) ([]browser.Link, error)
	Click(ctx context.Context, selector string) error
	Type(ctx context.Context, selector, value string) error
	Cookies(ctx context.Context) ([]vault.Cookie, error)
	SetCookies(ctx context.Context, cookies []vault.Cookie) error
	Reload(ctx context.Context) error
	Screenshot(ctx context.Context, name string) (string, error)
}

var _ driver.Site = (*Storefront)(nil)

type Storefront struct {
	page    Page
	profile *Profile
	log     logging.Logger
}

func New(page Page, profile *Profile, log logging.Logger) *Storefront {
	return &Storefront{page: page, profile: profile, log: log}
}

func (s *Storefront) Open(ctx context.Context) error { return s.page.Start(ctx) }

func (s *Storefront) Close() error { return s.page.Close() }

// settle gives client-side rendering time to finish after a navigation.
func (s *Storefront) settle(ctx context.Context) error {
	d := s.profile.Settle.Duration
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (s *Storefront) open(ctx context.Context, u string) error {
	if err := s.page.Navigate(ctx, u); err != nil {
		return err
	}
	return s.settle(ctx)
}

// anyExists reports whether any selector matches. Selector errors are
// skipped; the first one is returned only when nothing matched.
func (s *Storefront) anyExists(ctx context.Context, selectors []string) (bool, error) {
	var firstErr error
	for _, sel := range selectors {
		ok, err := s.page.Exists(ctx, sel)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if ok {
			return true, nil
		}
	}
	return false, firstErr
}

// firstMatch returns the first selector that currently matches, or "".
func (s *Storefront) firstMatch(ctx context.Context, selectors []string) (string, error) {
	var firstErr error
	for _, sel := range selectors {
		ok, err := s.page.Exists(ctx, sel)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if ok {
			return sel, nil
		}
	}
	return "", firstErr
}

func (s *Storefront) clickFirst(ctx context.Context, what string, selectors []string) error {
	sel, err := s.firstMatch(ctx, selectors)
	if err != nil {
		return err
	}
	if sel == "" {
		return fmt.Errorf("%w: %s", browser.ErrNoMatch, what)
	}
	return s.page.Click(ctx, sel)
}

func (s *Storefront) location(ctx context.Context) (string, error) {
	loc, err := s.page.Location(ctx)
	return strings.ToLower(loc), err
}

func (s *Storefront) EstablishContext(ctx context.Context) error {
	u := s.profile.HomeURL
	if u == "" {
		u = s.profile.BaseURL
	}
	return s.open(ctx, u)
}

// InjectCookies sets cookies on the storefront domain; cookies saved
// without a domain get the profile's cookie domain.
func (s *Storefront) InjectCookies(ctx context.Context, cookies []vault.Cookie) error {
	out := make([]vault.Cookie, 0, len(cookies))
	for _, c := range cookies {
		if c.Domain == "" {
			c.Domain = s.profile.CookieDomain
		}
		out = append(out, c)
	}
	return s.page.SetCookies(ctx, out)
}

// ReadCookies returns the browser cookies that belong to the storefront.
func (s *Storefront) ReadCookies(ctx context.Context) ([]vault.Cookie, error) {
	all, err := s.page.Cookies(ctx)
	if err != nil {
		return nil, err
	}
	return filterDomain(all, s.profile.CookieDomain), nil
}

func filterDomain(cookies []vault.Cookie, domain string) []vault.Cookie {
	domain = strings.TrimPrefix(strings.ToLower(domain), ".")
	if domain == "" {
		return cookies
	}
	out := make([]vault.Cookie, 0, len(cookies))
	for _, c := range cookies {
		d := strings.TrimPrefix(strings.ToLower(c.Domain), ".")
		if d == domain || strings.HasSuffix(d, "."+domain) {
			out = append(out, c)
		}
	}
	return out
}

func (s *Storefront) OpenAccountPage(ctx context.Context) error {
	return s.open(ctx, s.profile.AccountURL)
}

func (s *Storefront) OpenLoginPage(ctx context.Context) error {
	return s.open(ctx, s.profile.LoginURL)
}

// FillLogin types the credentials into the login form and submits it. A
// form without a password field (two-step login) is submitted after the
// email alone.
func (s *Storefront) FillLogin(ctx context.Context, email, secret string) error {
	emailSel, err := s.firstMatch(ctx, s.profile.Selectors.LoginEmail)
	if err != nil {
		return err
	}
	if emailSel == "" {
		return fmt.Errorf("%w: login email field", browser.ErrNoMatch)
	}
	if err := s.page.Type(ctx, emailSel, email); err != nil {
		return err
	}

	if pwSel, _ := s.firstMatch(ctx, s.profile.Selectors.LoginPassword); pwSel != "" {
		if err := s.page.Type(ctx, pwSel, secret); err != nil {
			return err
		}
	}
	return s.clickFirst(ctx, "login submit", s.profile.Selectors.LoginSubmit)
}

// PeekLoginIdentity returns the first address-like value visible in a login
// or account identity field.
func (s *Storefront) PeekLoginIdentity(ctx context.Context) (string, error) {
	sels := append(append([]string{}, s.profile.Selectors.LoginEmail...), s.profile.Selectors.AccountIdentity...)
	for _, sel := range sels {
		v, err := s.page.Value(ctx, sel)
		if err != nil {
			continue
		}
		if v = strings.TrimSpace(v); strings.Contains(v, "@") {
			return v, nil
		}
	}
	return "", nil
}

// VerifyAuthenticated looks for a signed-in marker and no sign-in prompt,
// away from the login page.
func (s *Storefront) VerifyAuthenticated(ctx context.Context) (bool, error) {
	loc, err := s.location(ctx)
	if err != nil {
		return false, err
	}
	if s.onLoginPage(loc) {
		return false, nil
	}
	in, err := s.anyExists(ctx, s.profile.Selectors.SignedIn)
	if err != nil || !in {
		return false, err
	}
	out, _ := s.anyExists(ctx, s.profile.Selectors.SignedOut)
	return !out, nil
}

func (s *Storefront) onLoginPage(loc string) bool {
	m := s.profile.LoginURLMarker
	return m != "" && strings.Contains(loc, strings.ToLower(m))
}

func (s *Storefront) InAuthenticatedArea(ctx context.Context) (bool, error) {
	loc, err := s.location(ctx)
	if err != nil {
		return false, err
	}
	return !s.onLoginPage(loc) && containsAny(loc, s.profile.AuthenticatedURLs), nil
}

func (s *Storefront) DiscoverItems(ctx context.Context) ([]driver.Item, error) {
	if err := s.open(ctx, s.profile.OffersURL); err != nil {
		return nil, err
	}
	return s.collect(ctx, s.profile.Selectors.OfferCards)
}

// OwnedItems lists the library page. Profiles without one report nothing.
func (s *Storefront) OwnedItems(ctx context.Context) ([]driver.Item, error) {
	if s.profile.LibraryURL == "" || len(s.profile.Selectors.OwnedItems) == 0 {
		return nil, nil
	}
	if err := s.open(ctx, s.profile.LibraryURL); err != nil {
		return nil, err
	}
	return s.collect(ctx, s.profile.Selectors.OwnedItems)
}

// collect turns matched cards into items, one per distinct item URL.
func (s *Storefront) collect(ctx context.Context, selectors []string) ([]driver.Item, error) {
	var (
		items    []driver.Item
		seen     = map[string]bool{}
		firstErr error
	)
	for _, sel := range selectors {
		links, err := s.page.Links(ctx, sel)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		for _, l := range links {
			if l.Href == "" {
				continue
			}
			u := s.profile.absolute(l.Href)
			if seen[u] || !s.profile.isItemURL(u) {
				continue
			}
			seen[u] = true
			items = append(items, driver.Item{
				Name:  itemName(l.Label, u, s.profile.TitleStrip),
				URL:   u,
				Image: l.Image,
			})
		}
	}
	if len(items) == 0 && firstErr != nil {
		return nil, firstErr
	}
	s.log.Debug(ctx, "items collected", "count", len(items))
	return items, nil
}

// itemName picks the first card line that is not a badge, falling back to
// the last URL path segment.
func itemName(label, rawURL string, strip []string) string {
	for _, line := range strings.Split(label, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || isBadge(line, strip) {
			continue
		}
		return line
	}
	if u, err := url.Parse(rawURL); err == nil {
		if seg := path.Base(strings.TrimRight(u.Path, "/")); seg != "." && seg != "/" {
			return seg
		}
	}
	return rawURL
}

func isBadge(line string, strip []string) bool {
	for _, b := range strip {
		if strings.EqualFold(line, b) || strings.HasPrefix(strings.ToLower(line), strings.ToLower(b)+" - ") {
			return true
		}
	}
	return false
}

func (s *Storefront) OpenItem(ctx context.Context, item driver.Item) error {
	if item.URL == "" {
		return errors.New("item has no url")
	}
	return s.open(ctx, item.URL)
}

// ClassifyAcquisition reads the acquisition control's label.
func (s *Storefront) ClassifyAcquisition(ctx context.Context) (driver.Acquisition, error) {
	sel, err := s.firstMatch(ctx, s.profile.Selectors.AcquireButton)
	if err != nil || sel == "" {
		return driver.AcquisitionUnknown, err
	}
	label, err := s.page.Text(ctx, sel)
	if err != nil {
		return driver.AcquisitionUnknown, err
	}
	return classify(label, s.profile.OwnedTexts, s.profile.ClaimableTexts), nil
}

func classify(label string, owned, claimable []string) driver.Acquisition {
	label = strings.TrimSpace(label)
	switch {
	case label == "":
		return driver.AcquisitionUnknown
	case containsAny(label, owned):
		return driver.AcquisitionOwned
	case containsAny(label, claimable):
		return driver.AcquisitionClaimable
	default:
		return driver.AcquisitionUnknown
	}
}

// ClearInterstitial dismisses an age gate or overlay when one is showing.
func (s *Storefront) ClearInterstitial(ctx context.Context) error {
	shown, err := s.anyExists(ctx, s.profile.Selectors.Interstitial)
	if err != nil || !shown {
		return err
	}
	s.log.Debug(ctx, "dismissing interstitial")
	return s.clickFirst(ctx, "interstitial confirm", s.profile.Selectors.InterstitialConfirm)
}

func (s *Storefront) TriggerAcquisition(ctx context.Context) error {
	return s.clickFirst(ctx, "acquire button", s.profile.Selectors.AcquireButton)
}

func (s *Storefront) CheckoutReady(ctx context.Context) (bool, error) {
	loc, err := s.location(ctx)
	if err == nil && containsAny(loc, s.profile.CheckoutURLs) {
		return true, nil
	}
	return s.anyExists(ctx, s.profile.Selectors.Checkout)
}

func (s *Storefront) CheckoutNeedsReauth(ctx context.Context) (bool, error) {
	loc, err := s.location(ctx)
	if err == nil && s.onLoginPage(loc) {
		return true, nil
	}
	return s.anyExists(ctx, s.profile.Selectors.Reauth)
}

func (s *Storefront) Reload(ctx context.Context) error {
	if err := s.page.Reload(ctx); err != nil {
		return err
	}
	return s.settle(ctx)
}

// CheckoutPrice returns the first non-empty total shown.
func (s *Storefront) CheckoutPrice(ctx context.Context) (string, error) {
	for _, sel := range s.profile.Selectors.Price {
		t, err := s.page.Text(ctx, sel)
		if err != nil {
			continue
		}
		if t = strings.TrimSpace(t); t != "" {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: checkout price", browser.ErrNoMatch)
}

// ConfirmOrder ticks an agreement box when present and places the order.
func (s *Storefront) ConfirmOrder(ctx context.Context) error {
	if sel, _ := s.firstMatch(ctx, s.profile.Selectors.Agree); sel != "" {
		if err := s.page.Click(ctx, sel); err != nil {
			s.log.Debug(ctx, "agreement box not ticked", "error", err)
		}
	}
	return s.clickFirst(ctx, "confirm button", s.profile.Selectors.Confirm)
}

func (s *Storefront) ClaimSucceeded(ctx context.Context) (bool, error) {
	return s.anyExists(ctx, s.profile.Selectors.Success)
}

func (s *Storefront) Screenshot(ctx context.Context, name string) (string, error) {
	return s.page.Screenshot(ctx, name)
}
