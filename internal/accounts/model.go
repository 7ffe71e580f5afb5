package accounts

import (
	"slices"
	"strings"
	"time"
)

type Status string

const (
	StatusPending     Status = "pending"
	StatusActive      Status = "active"
	StatusDisabled    Status = "disabled"
	StatusLoginFailed Status = "login_failed"
	StatusError       Status = "error"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusDisabled, StatusLoginFailed, StatusError:
		return true
	}
	return false
}

// Account is one configured storefront login. Secret holds the sealed
// password and is never logged.
type Account struct {
	Email          string    `json:"email"`
	Secret         string    `json:"secret"`
	Status         Status    `json:"status"`
	IdentityKey    string    `json:"identity_key,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
	ClaimedItems   []string  `json:"claimed_items"`
}

// Identity is the key sessions and claims are stored under: the identity
// learned after login when it differs from the configured email.
func (a Account) Identity() string {
	if a.IdentityKey != "" {
		return a.IdentityKey
	}
	return a.Email
}

// addClaimed unions ids into the claimed set, ignoring empty ids.
func (a *Account) addClaimed(ids []string) {
	for _, id := range ids {
		if id != "" && !slices.Contains(a.ClaimedItems, id) {
			a.ClaimedItems = append(a.ClaimedItems, id)
		}
	}
}

func (a Account) clone() Account {
	a.ClaimedItems = slices.Clone(a.ClaimedItems)
	if a.ClaimedItems == nil {
		a.ClaimedItems = []string{}
	}
	return a
}

// NormalizeEmail lower-cases and trims an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidEmail reports whether email can identify an account. Masked
// addresses (containing '*'), addresses at any of the notification domains
// and addresses with fewer than 3 characters before '@' are rejected.
func ValidEmail(email string, notificationDomains []string) bool {
	e := NormalizeEmail(email)
	if strings.Contains(e, "*") {
		return false
	}
	local, domain, ok := strings.Cut(e, "@")
	if !ok || len(local) < 3 || domain == "" {
		return false
	}
	for _, d := range notificationDomains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" && (domain == d || strings.HasSuffix(domain, "."+d)) {
			return false
		}
	}
	return true
}
