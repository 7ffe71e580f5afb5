// Package vault persists browser cookie bundles per storefront identity.
//
// Each identity owns one file, <dir>/<SafeName(identity)>_session.json,
// holding the cookies and an expiry stamp. Bundles past their expiry are
// treated as absent and removed on the next Load.
package vault

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/promoclaim/internal/filex"
	"github.com/dmitrijs2005/promoclaim/internal/logging"
	"github.com/google/uuid"
)

// DefaultTTL is how long a saved bundle stays usable.
const DefaultTTL = 30 * 24 * time.Hour

// PlaceholderPrefix marks keys minted before the real identity is known.
const PlaceholderPrefix = "pending_"

type Cookie struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain"`
	Path   string `json:"path,omitempty"`
	Secure bool   `json:"secure,omitempty"`
}

type Bundle struct {
	Email     string    `json:"email"`
	Cookies   []Cookie  `json:"cookies"`
	SavedAt   time.Time `json:"saved_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Vault struct {
	mu  sync.Mutex
	dir string
	ttl time.Duration
	log logging.Logger
	now func() time.Time
}

// New returns a vault rooted at dir. A non-positive ttl selects DefaultTTL.
func New(dir string, ttl time.Duration, log logging.Logger) (*Vault, error) {
	if _, err := filex.EnsureDir(dir); err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Vault{dir: dir, ttl: ttl, log: log.With("component", "vault"), now: time.Now}, nil
}

// NewPlaceholderKey mints a key for a session whose identity is not yet known.
func NewPlaceholderKey() string {
	return PlaceholderPrefix + uuid.NewString()
}

func IsPlaceholder(key string) bool {
	return strings.HasPrefix(key, PlaceholderPrefix)
}

func (v *Vault) path(identity string) string {
	return filepath.Join(v.dir, filex.SafeName(identity)+"_session.json")
}

// Save stores cookies for identity, replacing any earlier bundle. Cookies
// are deduplicated by (name, domain); the last occurrence wins.
func (v *Vault) Save(ctx context.Context, identity string, cookies []Cookie) error {
	now := v.now().UTC()
	b := Bundle{
		Email:     identity,
		Cookies:   dedupe(cookies),
		SavedAt:   now,
		ExpiresAt: now.Add(v.ttl),
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.write(identity, b); err != nil {
		return err
	}
	v.log.Info(ctx, "session saved", "identity", identity, "cookies", len(b.Cookies))
	return nil
}

func (v *Vault) write(identity string, b Bundle) error {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return err
	}
	if err := filex.WriteFileAtomic(v.path(identity), data, 0o600); err != nil {
		return fmt.Errorf("save session %s: %w", identity, err)
	}
	return nil
}

func (v *Vault) read(identity string) (*Bundle, error) {
	data, err := os.ReadFile(v.path(identity))
	if err != nil {
		return nil, err
	}
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (v *Vault) matches(identity string, b *Bundle) bool {
	return IsPlaceholder(identity) || strings.EqualFold(b.Email, identity)
}

// Load returns the cookies saved for identity, or nil when there is no
// usable bundle. An expired bundle is deleted.
func (v *Vault) Load(ctx context.Context, identity string) []Cookie {
	v.mu.Lock()
	defer v.mu.Unlock()

	b, err := v.read(identity)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			v.log.Warn(ctx, "session unreadable", "identity", identity, "error", err)
		}
		return nil
	}
	if !v.now().Before(b.ExpiresAt) {
		v.log.Info(ctx, "session expired", "identity", identity)
		_ = os.Remove(v.path(identity))
		return nil
	}
	if !v.matches(identity, b) {
		v.log.Warn(ctx, "session identity mismatch", "identity", identity, "stored", b.Email)
		return nil
	}
	return b.Cookies
}

// Exists reports whether an unexpired bundle for identity is stored.
func (v *Vault) Exists(identity string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	b, err := v.read(identity)
	if err != nil {
		return false
	}
	return v.now().Before(b.ExpiresAt) && v.matches(identity, b)
}

// Remap moves the bundle saved under oldKey to newKey, rewriting the stored
// identity and overwriting any bundle already at newKey. It reports false
// when oldKey has nothing to move.
func (v *Vault) Remap(ctx context.Context, oldKey, newKey string) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	b, err := v.read(oldKey)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("remap session %s: %w", oldKey, err)
	}

	b.Email = newKey
	if err := v.write(newKey, *b); err != nil {
		return false, err
	}
	if v.path(oldKey) != v.path(newKey) {
		if err := os.Remove(v.path(oldKey)); err != nil && !errors.Is(err, os.ErrNotExist) {
			v.log.Warn(ctx, "remove remapped session", "identity", oldKey, "error", err)
		}
	}
	v.log.Info(ctx, "session remapped", "from", oldKey, "to", newKey)
	return true, nil
}

// Delete removes the bundle for identity. Missing bundles are not an error.
func (v *Vault) Delete(identity string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := os.Remove(v.path(identity)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete session %s: %w", identity, err)
	}
	return nil
}

// ExpiryDays returns the whole days left before the bundle for identity
// expires, or -1 when it is absent, unreadable or already expired.
func (v *Vault) ExpiryDays(identity string) int {
	v.mu.Lock()
	defer v.mu.Unlock()

	b, err := v.read(identity)
	if err != nil {
		return -1
	}
	left := b.ExpiresAt.Sub(v.now())
	if left <= 0 {
		return -1
	}
	return int(left / (24 * time.Hour))
}

func dedupe(cookies []Cookie) []Cookie {
	type key struct{ name, domain string }
	pos := make(map[key]int, len(cookies))
	out := make([]Cookie, 0, len(cookies))
	for _, c := range cookies {
		k := key{c.Name, c.Domain}
		if i, ok := pos[k]; ok {
			out[i] = c
			continue
		}
		pos[k] = len(out)
		out = append(out, c)
	}
	return out
}
