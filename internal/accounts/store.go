// Package accounts is the credential store: a JSON array of account records
// whose passwords are sealed with cryptox.
package accounts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/dmitrijs2005/promoclaim/internal/common"
	"github.com/dmitrijs2005/promoclaim/internal/cryptox"
	"github.com/dmitrijs2005/promoclaim/internal/filex"
	"github.com/dmitrijs2005/promoclaim/internal/logging"
)

// SessionDeleter drops persisted sessions for an identity.
type SessionDeleter interface {
	Delete(identity string) error
}

type Store struct {
	mu       sync.RWMutex
	path     string
	key      []byte
	sessions SessionDeleter
	domains  []string
	log      logging.Logger
	now      func() time.Time

	accounts []Account
}

// NewStore loads the store at path. A missing file yields an empty store.
// An unreadable or corrupt file is copied aside to <path>.bak, logged as a
// configuration error and replaced by an empty store. Records whose email
// fails ValidEmail are purged and the file rewritten.
func NewStore(ctx context.Context, path string, key []byte, sessions SessionDeleter,
	notificationDomains []string, log logging.Logger) (*Store, error) {

	s := &Store{
		path:     path,
		key:      key,
		sessions: sessions,
		domains:  notificationDomains,
		log:      log.With("component", "accounts"),
		now:      time.Now,
		accounts: []Account{},
	}

	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load(ctx context.Context) error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		s.log.Error(ctx, "accounts file unreadable, starting empty",
			"path", s.path, "error", fmt.Errorf("%w: %v", common.ErrConfiguration, err))
		return nil
	}

	var list []Account
	if err := json.Unmarshal(data, &list); err != nil {
		bak, cerr := filex.CopyAside(s.path, ".bak")
		s.log.Error(ctx, "accounts file corrupt, starting empty",
			"path", s.path, "backup", bak, "backup_error", cerr,
			"error", fmt.Errorf("%w: %v", common.ErrConfiguration, err))
		return nil
	}

	// The first record per normalized email wins; later ones only
	// contribute their claimed items.
	kept := make([]Account, 0, len(list))
	seen := make(map[string]int, len(list))
	for _, a := range list {
		if !ValidEmail(a.Email, s.domains) {
			continue
		}
		a.Email = NormalizeEmail(a.Email)
		if i, dup := seen[a.Email]; dup {
			kept[i].addClaimed(a.ClaimedItems)
			continue
		}
		if !a.Status.Valid() {
			a.Status = StatusPending
		}
		seen[a.Email] = len(kept)
		kept = append(kept, a.clone())
	}
	s.accounts = kept

	if purged := len(list) - len(kept); purged > 0 {
		s.log.Warn(ctx, "purged invalid or duplicate accounts", "count", purged)
		return s.persist()
	}
	return nil
}

// persist writes the whole array. Callers hold the write lock.
func (s *Store) persist() error {
	for i := range s.accounts {
		slices.Sort(s.accounts[i].ClaimedItems)
	}
	data, err := json.MarshalIndent(s.accounts, "", "  ")
	if err != nil {
		return err
	}
	if err := filex.WriteFileAtomic(s.path, data, 0o600); err != nil {
		return fmt.Errorf("save accounts: %w", err)
	}
	return nil
}

func (s *Store) indexOf(email string) int {
	email = NormalizeEmail(email)
	for i := range s.accounts {
		if s.accounts[i].Email == email {
			return i
		}
	}
	return -1
}

// Add inserts an account or, when the email already exists, replaces its
// secret and status. An empty secret marks a cookie-only account.
func (s *Store) Add(ctx context.Context, email, secret string, status Status) error {
	email = NormalizeEmail(email)
	if !ValidEmail(email, s.domains) {
		return fmt.Errorf("%w: %q", common.ErrInvalidEmail, email)
	}
	if !status.Valid() {
		return fmt.Errorf("unknown status %q", status)
	}

	sealed, err := cryptox.Seal([]byte(secret), s.key)
	if err != nil {
		return fmt.Errorf("seal secret: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	if i := s.indexOf(email); i >= 0 {
		s.accounts[i].Secret = sealed
		s.accounts[i].Status = status
		s.accounts[i].LastActivityAt = now
		s.log.Info(ctx, "account updated", "email", email, "status", status)
		return s.persist()
	}

	s.accounts = append(s.accounts, Account{
		Email:          email,
		Secret:         sealed,
		Status:         status,
		CreatedAt:      now,
		LastActivityAt: now,
		ClaimedItems:   []string{},
	})
	s.log.Info(ctx, "account added", "email", email, "status", status)
	return s.persist()
}

// Remove deletes the account and its stored sessions. Removing an unknown
// email is not an error.
func (s *Store) Remove(ctx context.Context, email string) error {
	email = NormalizeEmail(email)

	s.mu.Lock()
	i := s.indexOf(email)
	if i < 0 {
		s.mu.Unlock()
		return nil
	}
	removed := s.accounts[i]
	s.accounts = slices.Delete(s.accounts, i, i+1)
	err := s.persist()
	s.mu.Unlock()
	if err != nil {
		return err
	}

	if s.sessions != nil {
		for _, id := range []string{removed.Email, removed.IdentityKey} {
			if id == "" {
				continue
			}
			if derr := s.sessions.Delete(id); derr != nil {
				s.log.Warn(ctx, "delete session failed", "identity", id, "error", derr)
			}
		}
	}
	s.log.Info(ctx, "account removed", "email", email)
	return nil
}

func (s *Store) Get(email string) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexOf(email)
	if i < 0 {
		return Account{}, fmt.Errorf("account %s: %w", NormalizeEmail(email), common.ErrNotFound)
	}
	return s.accounts[i].clone(), nil
}

// List returns copies of all accounts in insertion order.
func (s *Store) List() ([]Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Account, len(s.accounts))
	for i, a := range s.accounts {
		out[i] = a.clone()
	}
	return out, nil
}

// Decrypt returns the plaintext secret for email.
func (s *Store) Decrypt(email string) (string, error) {
	a, err := s.Get(email)
	if err != nil {
		return "", err
	}
	plain, err := cryptox.Open(a.Secret, s.key)
	if err != nil {
		return "", fmt.Errorf("account %s: %w", a.Email, err)
	}
	defer common.WipeByteArray(plain)
	return string(plain), nil
}

// UpdateStatus sets the status, stamps LastActivityAt and unions claimed into
// the account's claimed set. A nil claimed leaves the set untouched.
func (s *Store) UpdateStatus(ctx context.Context, email string, status Status, claimed []string) error {
	if !status.Valid() {
		return fmt.Errorf("unknown status %q", status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(email)
	if i < 0 {
		return fmt.Errorf("account %s: %w", NormalizeEmail(email), common.ErrNotFound)
	}

	a := &s.accounts[i]
	a.Status = status
	a.LastActivityAt = s.now().UTC()
	a.addClaimed(claimed)
	s.log.Debug(ctx, "account status updated", "email", a.Email, "status", status, "claimed", len(a.ClaimedItems))
	return s.persist()
}

// SetIdentity records the identity the storefront reported after login.
// An identity equal to the email clears the override.
func (s *Store) SetIdentity(ctx context.Context, email, identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(email)
	if i < 0 {
		return fmt.Errorf("account %s: %w", NormalizeEmail(email), common.ErrNotFound)
	}

	identity = NormalizeEmail(identity)
	if identity == s.accounts[i].Email {
		identity = ""
	}
	if s.accounts[i].IdentityKey == identity {
		return nil
	}
	s.accounts[i].IdentityKey = identity
	s.log.Info(ctx, "account identity updated", "email", s.accounts[i].Email, "identity", identity)
	return s.persist()
}

// Enable re-activates an account, including one left in login_failed or
// error by a previous run.
func (s *Store) Enable(ctx context.Context, email string) error {
	return s.setStatus(ctx, email, StatusActive)
}

func (s *Store) Disable(ctx context.Context, email string) error {
	return s.setStatus(ctx, email, StatusDisabled)
}

func (s *Store) setStatus(ctx context.Context, email string, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(email)
	if i < 0 {
		return fmt.Errorf("account %s: %w", NormalizeEmail(email), common.ErrNotFound)
	}
	s.accounts[i].Status = status
	s.log.Info(ctx, "account status set", "email", s.accounts[i].Email, "status", status)
	return s.persist()
}
