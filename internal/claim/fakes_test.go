package claim

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/promoclaim/internal/accounts"
	"github.com/dmitrijs2005/promoclaim/internal/common"
	"github.com/dmitrijs2005/promoclaim/internal/cryptox"
	"github.com/dmitrijs2005/promoclaim/internal/driver"
	"github.com/dmitrijs2005/promoclaim/internal/ledger"
	"github.com/dmitrijs2005/promoclaim/internal/logging"
	"github.com/stretchr/testify/require"
)

// tracker counts sessions that exist and are not closed yet.
type tracker struct {
	mu      sync.Mutex
	live    int
	max     int
	created []string
}

func (t *tracker) open(email string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.live++
	if t.live > t.max {
		t.max = t.live
	}
	t.created = append(t.created, email)
}

func (t *tracker) close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.live--
}

type script struct {
	resolved string
	loginErr error
	startErr error
	items    []driver.Item
	owned    []driver.Item
	outcomes map[string]driver.ClaimOutcome
	delay    time.Duration
	onClaim  func(item driver.Item)
	onLogin  func()
}

type fakeSession struct {
	script
	email   string
	tracker *tracker

	mu      sync.Mutex
	claimed []string
	closed  bool
}

func (s *fakeSession) Start(ctx context.Context) error { return s.startErr }

func (s *fakeSession) Login(ctx context.Context, secret string) error {
	if s.onLogin != nil {
		s.onLogin()
	}
	return s.loginErr
}

func (s *fakeSession) ResolvedIdentity() string {
	if s.resolved != "" {
		return s.resolved
	}
	return s.email
}

func (s *fakeSession) Discover(ctx context.Context) ([]driver.Item, error) {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	return s.items, nil
}

func (s *fakeSession) Owned(ctx context.Context) ([]driver.Item, error) { return s.owned, nil }

func (s *fakeSession) Claim(ctx context.Context, item driver.Item) driver.ClaimOutcome {
	s.mu.Lock()
	s.claimed = append(s.claimed, item.Name)
	s.mu.Unlock()
	if s.onClaim != nil {
		s.onClaim(item)
	}
	if out, ok := s.outcomes[item.Name]; ok {
		return out
	}
	return driver.ClaimOutcome{Status: driver.ClaimClaimed, Price: "0.00"}
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		s.tracker.close()
	}
	return nil
}

type harness struct {
	store    *accounts.Store
	ledger   *ledger.Ledger
	tracker  *tracker
	scripts  map[string]script
	mu       sync.Mutex
	sessions map[string]*fakeSession
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	key := common.GenerateRandByteArray(cryptox.KeySize)
	store, err := accounts.NewStore(ctx, filepath.Join(dir, "accounts.json"), key, nil, nil, logging.Nop())
	require.NoError(t, err)
	l, err := ledger.Open(ctx, filepath.Join(dir, "claimed_history.json"), 0, logging.Nop())
	require.NoError(t, err)

	return &harness{
		store:    store,
		ledger:   l,
		tracker:  &tracker{},
		scripts:  map[string]script{},
		sessions: map[string]*fakeSession{},
	}
}

func (h *harness) add(t *testing.T, email string, status accounts.Status, sc script) {
	t.Helper()
	require.NoError(t, h.store.Add(context.Background(), email, "pw-"+email, status))
	h.scripts[email] = sc
}

func (h *harness) factory(acct accounts.Account) (Session, error) {
	sc, ok := h.scripts[acct.Email]
	if !ok {
		return nil, fmt.Errorf("no script for %s", acct.Email)
	}
	h.tracker.open(acct.Email)
	s := &fakeSession{script: sc, email: acct.Email, tracker: h.tracker}
	h.mu.Lock()
	h.sessions[acct.Email] = s
	h.mu.Unlock()
	return s, nil
}

func (h *harness) orchestrator(opts Options) *Orchestrator {
	return New(h.store, h.ledger, h.factory, logging.Nop(), opts)
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (e *eventLog) Emit(ctx context.Context, ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
}

func (e *eventLog) kinds(account string) []EventKind {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []EventKind
	for _, ev := range e.events {
		if ev.Account == account {
			out = append(out, ev.Kind)
		}
	}
	return out
}

// failingStore wraps a real store and fails selected operations.
type failingStore struct {
	*accounts.Store
	decryptFail map[string]bool
	listErr     error
}

func (f *failingStore) Decrypt(email string) (string, error) {
	if f.decryptFail[email] {
		return "", fmt.Errorf("account %s: %w", email, common.ErrDecryption)
	}
	return f.Store.Decrypt(email)
}

func (f *failingStore) List() ([]accounts.Account, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.Store.List()
}

var errBoom = errors.New("boom")

type fixedExpiry int

func (d fixedExpiry) ExpiryDays(string) int { return int(d) }

// savedBundle reports the days left on one stored session; refresh models
// a login saving fresh cookies.
type savedBundle struct {
	mu   sync.Mutex
	days int
}

func (b *savedBundle) ExpiryDays(string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.days
}

func (b *savedBundle) refresh() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.days = 30
}
