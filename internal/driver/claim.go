package driver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/promoclaim/internal/common"
	"github.com/dmitrijs2005/promoclaim/internal/filex"
	"github.com/sethvargo/go-retry"
)

type ClaimStatus string

const (
	ClaimClaimed      ClaimStatus = "claimed"
	ClaimAlreadyOwned ClaimStatus = "already_owned"
	ClaimFailed       ClaimStatus = "failed"
	ClaimUnverified   ClaimStatus = "unverified"
)

// ClaimOutcome is the result of one Claim. Err is set for failed and
// unverified outcomes.
type ClaimOutcome struct {
	Status     ClaimStatus
	Price      string
	Screenshot string
	Err        error
}

func (o ClaimOutcome) Success() bool {
	return o.Status == ClaimClaimed || o.Status == ClaimAlreadyOwned
}

var (
	errCheckoutPending = errors.New("checkout not reached")
	errNoSuccessMarker = errors.New("no success marker")
)

// Discover lists the offers currently promoted by the storefront.
func (d *Driver) Discover(ctx context.Context) ([]Item, error) {
	if !d.State().signedIn() {
		return nil, fmt.Errorf("%w: driver is %s", common.ErrInvalidState, d.State())
	}
	d.setState(StateDiscovering)
	defer d.setState(StateAuthenticated)

	var items []Item
	err := d.step(ctx, func(ctx context.Context) error {
		var err error
		items, err = d.site.DiscoverItems(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("discover: %w", err)
	}
	d.log.Info(ctx, "offers discovered", "count", len(items))
	return items, nil
}

// Owned lists items the storefront already shows as held by the identity.
// Sites without such a view return an empty list.
func (d *Driver) Owned(ctx context.Context) ([]Item, error) {
	if !d.State().signedIn() {
		return nil, fmt.Errorf("%w: driver is %s", common.ErrInvalidState, d.State())
	}
	var items []Item
	err := d.step(ctx, func(ctx context.Context) error {
		var err error
		items, err = d.site.OwnedItems(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("owned items: %w", err)
	}
	return items, nil
}

// Claim acquires one item. Only a checkout whose total is unambiguously zero
// is confirmed, and only a visible success marker counts as claimed.
func (d *Driver) Claim(ctx context.Context, item Item) (out ClaimOutcome) {
	if !d.State().signedIn() {
		return ClaimOutcome{Status: ClaimFailed,
			Err: fmt.Errorf("%w: driver is %s", common.ErrInvalidState, d.State())}
	}
	d.setState(StateClaiming)
	log := d.log.With("item", item.Name)

	defer func() {
		if r := recover(); r != nil {
			out = ClaimOutcome{Status: ClaimFailed, Err: fmt.Errorf("%w: panic: %v", common.ErrAutomationFault, r)}
		}
		switch out.Status {
		case ClaimFailed:
			d.setState(StateClaimFailed)
		case ClaimUnverified:
			d.setState(StateClaimUnverified)
		default:
			d.setState(StateAuthenticated)
		}
	}()

	out = d.claim(ctx, item)
	switch out.Status {
	case ClaimClaimed, ClaimAlreadyOwned:
		log.Info(ctx, "claim finished", "status", out.Status)
	default:
		log.Warn(ctx, "claim finished", "status", out.Status, "error", out.Err, "screenshot", out.Screenshot)
	}
	return out
}

func (d *Driver) failed(ctx context.Context, item Item, shot string, err error) ClaimOutcome {
	out := ClaimOutcome{Status: ClaimFailed, Err: fmt.Errorf("%w: %s: %w", common.ErrClaimFailed, item.Name, err)}
	if shot != "" {
		out.Screenshot = d.screenshot(ctx, shot, item)
	}
	return out
}

func (d *Driver) screenshot(ctx context.Context, prefix string, item Item) string {
	var path string
	_ = d.step(ctx, func(ctx context.Context) error {
		var err error
		path, err = d.site.Screenshot(ctx, prefix+"_"+filex.SafeName(item.Name))
		return err
	})
	return path
}

func (d *Driver) claim(ctx context.Context, item Item) ClaimOutcome {
	open := func() error {
		return d.step(ctx, func(ctx context.Context) error { return d.site.OpenItem(ctx, item) })
	}

	if err := open(); err != nil {
		return d.failed(ctx, item, "open_failed", err)
	}
	if !d.probe(ctx, d.site.VerifyAuthenticated) {
		d.log.Info(ctx, "session lost on item page, signing in again")
		if !d.relogin(ctx) {
			return d.failed(ctx, item, "", errors.New("session could not be restored"))
		}
		if err := open(); err != nil {
			return d.failed(ctx, item, "open_failed", err)
		}
	}

	var acq Acquisition
	err := d.step(ctx, func(ctx context.Context) error {
		var err error
		acq, err = d.site.ClassifyAcquisition(ctx)
		return err
	})
	if err != nil {
		return d.failed(ctx, item, "classify_failed", err)
	}
	switch acq {
	case AcquisitionOwned:
		return ClaimOutcome{Status: ClaimAlreadyOwned}
	case AcquisitionClaimable:
	default:
		return d.failed(ctx, item, "no_acquisition", errors.New("acquisition control not recognized"))
	}

	_ = d.step(ctx, d.site.ClearInterstitial)
	if err := d.step(ctx, d.site.TriggerAcquisition); err != nil {
		return d.failed(ctx, item, "trigger_failed", err)
	}
	if err := d.waitCheckout(ctx); err != nil {
		return d.failed(ctx, item, "checkout_unreached", err)
	}

	if d.probe(ctx, d.site.CheckoutNeedsReauth) {
		d.log.Info(ctx, "checkout asks for sign-in, re-injecting session")
		if cookies := d.sessions.Load(ctx, d.ResolvedIdentity()); len(cookies) > 0 {
			_ = d.step(ctx, func(ctx context.Context) error { return d.site.InjectCookies(ctx, cookies) })
			_ = d.step(ctx, d.site.Reload)
		}
	}

	var price string
	err = d.step(ctx, func(ctx context.Context) error {
		var err error
		price, err = d.site.CheckoutPrice(ctx)
		return err
	})
	price = strings.TrimSpace(price)
	if err != nil {
		return d.failed(ctx, item, "price_unread", err)
	}
	if !IsZeroPrice(price) {
		out := d.failed(ctx, item, "price_error", fmt.Errorf("checkout total %q is not free", price))
		out.Price = price
		return out
	}

	if err := d.step(ctx, d.site.ConfirmOrder); err != nil {
		out := d.failed(ctx, item, "confirm_failed", err)
		out.Price = price
		return out
	}

	if err := d.waitSuccess(ctx); err != nil {
		return ClaimOutcome{
			Status:     ClaimUnverified,
			Price:      price,
			Screenshot: d.screenshot(ctx, "unverified", item),
			Err:        fmt.Errorf("%w: %s: %v", common.ErrClaimUnverified, item.Name, err),
		}
	}
	return ClaimOutcome{Status: ClaimClaimed, Price: price}
}

// waitCheckout polls for the checkout, clearing interstitials between polls
// and triggering the acquisition control again every ReclickEvery attempts.
func (d *Driver) waitCheckout(ctx context.Context) error {
	attempt := 0
	b := retry.WithMaxRetries(uint64(d.policy.CheckoutAttempts-1), retry.NewConstant(d.policy.CheckoutPoll))
	return d.poll(ctx, d.policy.checkoutCeiling(), b, func(ctx context.Context) error {
		defer func() { attempt++ }()

		if d.probe(ctx, d.site.CheckoutReady) {
			return nil
		}
		_ = d.step(ctx, d.site.ClearInterstitial)
		if attempt > 0 && attempt%d.policy.ReclickEvery == 0 {
			d.log.Debug(ctx, "triggering acquisition again", "attempt", attempt)
			_ = d.step(ctx, d.site.TriggerAcquisition)
		}
		return errCheckoutPending
	})
}

func (d *Driver) waitSuccess(ctx context.Context) error {
	return d.poll(ctx, d.policy.ConfirmTimeout, retry.NewConstant(d.policy.ConfirmPoll), func(ctx context.Context) error {
		if d.probe(ctx, d.site.ClaimSucceeded) {
			return nil
		}
		return errNoSuccessMarker
	})
}
