// Package ledger records which promotional items each identity has claimed,
// so a later run never attempts the same (identity, item) twice.
package ledger

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
	"github.com/dmitrijs2005/promoclaim/internal/filex"
	"github.com/dmitrijs2005/promoclaim/internal/logging"
)

// DefaultLogCapacity bounds the recent log.
const DefaultLogCapacity = 1000

const (
	VerificationConfirmed    = "confirmed"
	VerificationAlreadyOwned = "already_owned"
)

type Meta struct {
	Price        string
	Image        string
	Verification string
}

type Item struct {
	Name      string    `json:"name"`
	Price     string    `json:"price,omitempty"`
	Image     string    `json:"image,omitempty"`
	FirstSeen time.Time `json:"first_seen"`
}

type LogEntry struct {
	ItemID   string    `json:"item_id"`
	ItemName string    `json:"item_name"`
	Identity string    `json:"identity"`
	Status   string    `json:"status"`
	At       time.Time `json:"at"`
}

type Stats struct {
	Items      int
	Identities int
	Claims     int
}

type document struct {
	GlobalClaims  map[string]Item     `json:"global_claims"`
	AccountClaims map[string][]string `json:"account_claims"`
	RecentLogs    []LogEntry          `json:"recent_logs"`
}

type legacyDocument struct {
	Claims []struct {
		GameID       string `json:"game_id"`
		GameName     string `json:"game_name"`
		AccountEmail string `json:"account_email"`
		ClaimedAt    string `json:"claimed_at"`
	} `json:"claims"`
}

type Ledger struct {
	mu       sync.RWMutex
	path     string
	capacity int
	log      logging.Logger
	now      func() time.Time

	doc document
}

// Open loads the ledger at path. A missing file yields an empty ledger; a
// corrupt one is copied aside to <path>.bak and replaced by an empty ledger.
// A legacy {"claims": [...]} file is imported.
func Open(ctx context.Context, path string, capacity int, log logging.Logger) (*Ledger, error) {
	if capacity <= 0 {
		capacity = DefaultLogCapacity
	}
	l := &Ledger{
		path:     path,
		capacity: capacity,
		log:      log.With("component", "ledger"),
		now:      time.Now,
		doc:      emptyDocument(),
	}
	if err := l.load(ctx); err != nil {
		return nil, err
	}
	return l, nil
}

func emptyDocument() document {
	return document{
		GlobalClaims:  map[string]Item{},
		AccountClaims: map[string][]string{},
		RecentLogs:    []LogEntry{},
	}
}

func (l *Ledger) load(ctx context.Context) error {
	data, err := os.ReadFile(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: read ledger: %v", common.ErrConfiguration, err)
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		bak, cerr := filex.CopyAside(l.path, ".bak")
		l.log.Error(ctx, "ledger corrupt, starting empty", "path", l.path, "backup", bak,
			"backup_error", cerr, "error", fmt.Errorf("%w: %v", common.ErrConfiguration, err))
		return nil
	}

	if _, modern := probe["global_claims"]; !modern {
		if _, legacy := probe["claims"]; legacy {
			return l.importLegacy(ctx, data)
		}
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		bak, cerr := filex.CopyAside(l.path, ".bak")
		l.log.Error(ctx, "ledger corrupt, starting empty", "path", l.path, "backup", bak,
			"backup_error", cerr, "error", fmt.Errorf("%w: %v", common.ErrConfiguration, err))
		return nil
	}
	if doc.GlobalClaims == nil {
		doc.GlobalClaims = map[string]Item{}
	}
	if doc.AccountClaims == nil {
		doc.AccountClaims = map[string][]string{}
	}
	if doc.RecentLogs == nil {
		doc.RecentLogs = []LogEntry{}
	}
	l.doc = doc
	return nil
}

func (l *Ledger) importLegacy(ctx context.Context, data []byte) error {
	var old legacyDocument
	if err := json.Unmarshal(data, &old); err != nil {
		return fmt.Errorf("%w: legacy ledger: %v", common.ErrConfiguration, err)
	}

	for _, c := range old.Claims {
		if c.GameID == "" || c.AccountEmail == "" {
			continue
		}
		at, err := time.Parse(time.RFC3339Nano, c.ClaimedAt)
		if err != nil {
			at = l.now().UTC()
		}
		l.apply(c.GameID, c.GameName, c.AccountEmail, Meta{Verification: VerificationConfirmed}, at)
	}
	// Legacy entries were appended oldest first.
	slices.SortStableFunc(l.doc.RecentLogs, func(a, b LogEntry) int { return b.At.Compare(a.At) })

	l.log.Info(ctx, "imported legacy ledger", "claims", len(old.Claims))
	return l.persist()
}

func (l *Ledger) persist() error {
	data, err := json.MarshalIndent(l.doc, "", "  ")
	if err != nil {
		return err
	}
	if err := filex.WriteFileAtomic(l.path, data, 0o600); err != nil {
		return fmt.Errorf("save ledger: %w", err)
	}
	return nil
}

func (l *Ledger) IsClaimed(itemID, identity string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Contains(l.doc.AccountClaims[identity], itemID)
}

// RecordClaim marks itemID as held by identity. Membership is idempotent but
// every call prepends one recent-log entry.
func (l *Ledger) RecordClaim(ctx context.Context, itemID, name, identity string, meta Meta) error {
	if itemID == "" || identity == "" {
		return fmt.Errorf("record claim: empty item id or identity")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.apply(itemID, name, identity, meta, l.now().UTC())
	if err := l.persist(); err != nil {
		return err
	}
	l.log.Info(ctx, "claim recorded", "item", itemID, "identity", identity, "verification", meta.Verification)
	return nil
}

func (l *Ledger) apply(itemID, name, identity string, meta Meta, at time.Time) {
	if _, ok := l.doc.GlobalClaims[itemID]; !ok {
		l.doc.GlobalClaims[itemID] = Item{Name: name, Price: meta.Price, Image: meta.Image, FirstSeen: at}
	}
	if !slices.Contains(l.doc.AccountClaims[identity], itemID) {
		l.doc.AccountClaims[identity] = append(l.doc.AccountClaims[identity], itemID)
	}

	status := meta.Verification
	if status == "" {
		status = VerificationConfirmed
	}
	entry := LogEntry{ItemID: itemID, ItemName: name, Identity: identity, Status: status, At: at}
	l.doc.RecentLogs = slices.Insert(l.doc.RecentLogs, 0, entry)
	if len(l.doc.RecentLogs) > l.capacity {
		l.doc.RecentLogs = l.doc.RecentLogs[:l.capacity]
	}
}

// ClaimsForIdentity returns the set of item ids held by identity.
func (l *Ledger) ClaimsForIdentity(identity string) map[string]struct{} {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ids := l.doc.AccountClaims[identity]
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}

// RecentLog returns up to limit entries, newest first. limit <= 0 means all.
func (l *Ledger) RecentLog(limit int) []LogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	n := len(l.doc.RecentLogs)
	if limit > 0 && limit < n {
		n = limit
	}
	return slices.Clone(l.doc.RecentLogs[:n])
}

func (l *Ledger) Item(itemID string) (Item, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	it, ok := l.doc.GlobalClaims[itemID]
	return it, ok
}

func (l *Ledger) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	st := Stats{Items: len(l.doc.GlobalClaims), Identities: len(l.doc.AccountClaims)}
	for _, ids := range l.doc.AccountClaims {
		st.Claims += len(ids)
	}
	return st
}
