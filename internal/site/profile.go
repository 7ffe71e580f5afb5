package site

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/dmitrijs2005/promoclaim/internal/common"
	"github.com/dmitrijs2005/promoclaim/internal/timex"
)

//go:embed profiles/default.json
var defaultProfile []byte

// Profile describes one storefront as data: where its pages live and how to
// recognise the elements the claim flow needs. Every selector list is tried
// in order and the first match wins.
type Profile struct {
	Name         string `json:"name"`
	BaseURL      string `json:"base_url"`
	CookieDomain string `json:"cookie_domain"`

	HomeURL    string `json:"home_url"`
	LoginURL   string `json:"login_url"`
	AccountURL string `json:"account_url"`
	OffersURL  string `json:"offers_url"`
	LibraryURL string `json:"library_url"`

	// Location substrings only a signed-in user reaches.
	AuthenticatedURLs []string `json:"authenticated_urls"`
	LoginURLMarker    string   `json:"login_url_marker"`
	CheckoutURLs      []string `json:"checkout_urls"`
	ItemURLPatterns   []string `json:"item_url_patterns"`

	// Card lines dropped when deriving an item name, e.g. "Free Now".
	TitleStrip     []string `json:"title_strip"`
	OwnedTexts     []string `json:"owned_texts"`
	ClaimableTexts []string `json:"claimable_texts"`

	Settle timex.Duration `json:"settle"`

	Selectors Selectors `json:"selectors"`
}

type Selectors struct {
	SignedIn        []string `json:"signed_in"`
	SignedOut       []string `json:"signed_out"`
	AccountIdentity []string `json:"account_identity"`

	LoginEmail    []string `json:"login_email"`
	LoginPassword []string `json:"login_password"`
	LoginSubmit   []string `json:"login_submit"`

	OfferCards []string `json:"offer_cards"`
	OwnedItems []string `json:"owned_items"`

	AcquireButton       []string `json:"acquire_button"`
	Interstitial        []string `json:"interstitial"`
	InterstitialConfirm []string `json:"interstitial_confirm"`

	Checkout []string `json:"checkout"`
	Reauth   []string `json:"reauth"`
	Price    []string `json:"price"`
	Agree    []string `json:"agree"`
	Confirm  []string `json:"confirm"`
	Success  []string `json:"success"`
}

// DefaultProfile returns the built-in storefront profile.
func DefaultProfile() (*Profile, error) {
	return parseProfile(defaultProfile)
}

// LoadProfile reads a profile from path, or returns the built-in one when
// path is empty.
func LoadProfile(path string) (*Profile, error) {
	if path == "" {
		return DefaultProfile()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read site profile: %v", common.ErrConfiguration, err)
	}
	return parseProfile(data)
}

func parseProfile(data []byte) (*Profile, error) {
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: parse site profile: %v", common.ErrConfiguration, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks the fields the claim flow cannot work without.
func (p *Profile) Validate() error {
	var missing []string
	base, err := url.Parse(p.BaseURL)
	if p.BaseURL == "" || err != nil || base.Host == "" {
		missing = append(missing, "base_url")
	}
	for _, f := range []struct {
		name string
		set  bool
	}{
		{"login_url", p.LoginURL != ""},
		{"account_url", p.AccountURL != ""},
		{"offers_url", p.OffersURL != ""},
		{"selectors.offer_cards", len(p.Selectors.OfferCards) > 0},
		{"selectors.acquire_button", len(p.Selectors.AcquireButton) > 0},
		{"selectors.success", len(p.Selectors.Success) > 0},
	} {
		if !f.set {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: site profile %q missing %s", common.ErrConfiguration, p.Name, strings.Join(missing, ", "))
	}
	return nil
}

// absolute resolves href against the profile base URL.
func (p *Profile) absolute(href string) string {
	base, err := url.Parse(p.BaseURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

func (p *Profile) isItemURL(u string) bool {
	if len(p.ItemURLPatterns) == 0 {
		return true
	}
	return containsAny(u, p.ItemURLPatterns)
}

// containsAny reports whether s contains any of subs, ignoring case.
func containsAny(s string, subs []string) bool {
	s = strings.ToLower(s)
	for _, sub := range subs {
		if sub != "" && strings.Contains(s, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}
