package driver

import (
	"context"

	"github.com/dmitrijs2005/promoclaim/internal/vault"
)

// Item is one promotional offer found on the storefront.
type Item struct {
	Name  string
	URL   string
	Image string
}

// Acquisition is what the item page offers the signed-in identity.
type Acquisition int

const (
	AcquisitionUnknown Acquisition = iota
	AcquisitionOwned
	AcquisitionClaimable
)

func (a Acquisition) String() string {
	switch a {
	case AcquisitionOwned:
		return "owned"
	case AcquisitionClaimable:
		return "claimable"
	default:
		return "unknown"
	}
}

// Site is the browser-side capability surface the driver steers. All
// storefront specifics (URLs, selectors, texts) live behind it.
type Site interface {
	Open(ctx context.Context) error
	Close() error

	// EstablishContext loads a page on the storefront domain so cookies can
	// be injected for it.
	EstablishContext(ctx context.Context) error
	InjectCookies(ctx context.Context, cookies []vault.Cookie) error
	ReadCookies(ctx context.Context) ([]vault.Cookie, error)

	OpenAccountPage(ctx context.Context) error
	OpenLoginPage(ctx context.Context) error
	FillLogin(ctx context.Context, email, secret string) error
	// PeekLoginIdentity returns the address currently visible in an email
	// field, or "" when there is none.
	PeekLoginIdentity(ctx context.Context) (string, error)
	VerifyAuthenticated(ctx context.Context) (bool, error)
	// InAuthenticatedArea reports whether the current location is one only
	// signed-in users reach.
	InAuthenticatedArea(ctx context.Context) (bool, error)

	DiscoverItems(ctx context.Context) ([]Item, error)
	OwnedItems(ctx context.Context) ([]Item, error)

	OpenItem(ctx context.Context, item Item) error
	ClassifyAcquisition(ctx context.Context) (Acquisition, error)
	ClearInterstitial(ctx context.Context) error
	TriggerAcquisition(ctx context.Context) error
	CheckoutReady(ctx context.Context) (bool, error)
	CheckoutNeedsReauth(ctx context.Context) (bool, error)
	Reload(ctx context.Context) error
	// CheckoutPrice returns the raw total shown at checkout.
	CheckoutPrice(ctx context.Context) (string, error)
	ConfirmOrder(ctx context.Context) error
	ClaimSucceeded(ctx context.Context) (bool, error)
	// Screenshot captures the page and returns where it was written.
	Screenshot(ctx context.Context, name string) (string, error)
}

// Sessions is the subset of the session vault the driver needs.
type Sessions interface {
	Exists(identity string) bool
	Load(ctx context.Context, identity string) []vault.Cookie
	Save(ctx context.Context, identity string, cookies []vault.Cookie) error
	Delete(identity string) error
	Remap(ctx context.Context, oldKey, newKey string) (bool, error)
}
