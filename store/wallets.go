// ABOUTME: WalletStore owns the persisted wallet collection and the active selection.
// ABOUTME: The whole collection is one JSON document under a single KV key.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oktaviaorg/subnavis/vault"
)

// WalletsKey is the KV key holding the wallet collection.
const WalletsKey = "tao_wallets"

// ErrNoWallet is returned when an index does not name a wallet.
var ErrNoWallet = errors.New("no such wallet")

type walletsDoc struct {
	Wallets     []WalletRecord `json:"wallets"`
	ActiveIndex int            `json:"activeIndex"`
}

// WalletStore is the ordered collection of wallet records.
type WalletStore struct {
	kv      KV
	network vault.Network
	onEmpty func(context.Context) error
	now     func() time.Time

	mu     sync.Mutex
	loaded bool
	doc    walletsDoc
}

// Option configures a WalletStore.
type Option func(*WalletStore)

// WithNetwork sets the network addresses are validated against.
func WithNetwork(n vault.Network) Option {
	return func(s *WalletStore) { s.network = n }
}

// WithEmptyHook registers fn to run after the last wallet is deleted.
func WithEmptyHook(fn func(context.Context) error) Option {
	return func(s *WalletStore) { s.onEmpty = fn }
}

// NewWalletStore returns a store over kv. Nothing is read until first use.
func NewWalletStore(kv KV, opts ...Option) *WalletStore {
	s := &WalletStore{kv: kv, network: vault.Bittensor, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load (re)reads the collection from storage.
func (s *WalletStore) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = false
	return s.ensureLocked(ctx)
}

func (s *WalletStore) ensureLocked(ctx context.Context) error {
	if s.loaded {
		return nil
	}
	raw, err := s.kv.Get(ctx, WalletsKey)
	if errors.Is(err, ErrNotFound) {
		s.doc = walletsDoc{}
		s.loaded = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("load wallets: %w", err)
	}
	var doc walletsDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("decode wallets: %w", err)
	}
	if doc.ActiveIndex < 0 || doc.ActiveIndex >= len(doc.Wallets) {
		doc.ActiveIndex = 0
	}
	s.doc = doc
	s.loaded = true
	return nil
}

func (s *WalletStore) saveLocked(ctx context.Context, doc walletsDoc) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode wallets: %w", err)
	}
	if err := s.kv.Put(ctx, WalletsKey, raw); err != nil {
		return fmt.Errorf("save wallets: %w", err)
	}
	s.doc = doc
	return nil
}

// Create validates rec, appends it, and makes it active. ID and Created are
// filled in when unset. The stored record and its index are returned.
func (s *WalletStore) Create(ctx context.Context, rec WalletRecord) (WalletRecord, int, error) {
	rec.Name = strings.TrimSpace(rec.Name)
	rec.Address = strings.TrimSpace(rec.Address)
	if err := rec.Validate(s.network); err != nil {
		return WalletRecord{}, -1, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLocked(ctx); err != nil {
		return WalletRecord{}, -1, err
	}
	if rec.ID == "" {
		rec.ID = newRecordID()
	}
	if rec.Created == 0 {
		rec.Created = s.now().UnixMilli()
	}

	next := s.cloneLocked()
	next.Wallets = append(next.Wallets, rec)
	next.ActiveIndex = len(next.Wallets) - 1
	if err := s.saveLocked(ctx, next); err != nil {
		return WalletRecord{}, -1, err
	}
	return rec, next.ActiveIndex, nil
}

// Select makes index the active wallet.
func (s *WalletStore) Select(ctx context.Context, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(ctx, index); err != nil {
		return err
	}
	next := s.cloneLocked()
	next.ActiveIndex = index
	return s.saveLocked(ctx, next)
}

// Delete removes the wallet at index and returns it. The active selection
// follows the previously active wallet, or clamps into range. Deleting the last
// wallet runs the empty hook after the removal is persisted.
func (s *WalletStore) Delete(ctx context.Context, index int) (WalletRecord, error) {
	s.mu.Lock()
	if err := s.checkLocked(ctx, index); err != nil {
		s.mu.Unlock()
		return WalletRecord{}, err
	}
	next := s.cloneLocked()
	removed := next.Wallets[index]
	next.Wallets = append(next.Wallets[:index], next.Wallets[index+1:]...)
	switch {
	case len(next.Wallets) == 0:
		next.ActiveIndex = 0
	case index < next.ActiveIndex:
		next.ActiveIndex--
	case next.ActiveIndex >= len(next.Wallets):
		next.ActiveIndex = len(next.Wallets) - 1
	}
	if err := s.saveLocked(ctx, next); err != nil {
		s.mu.Unlock()
		return WalletRecord{}, err
	}
	empty := len(next.Wallets) == 0
	hook := s.onEmpty
	s.mu.Unlock()

	if empty && hook != nil {
		if err := hook(ctx); err != nil {
			return removed, fmt.Errorf("last wallet deleted: %w", err)
		}
	}
	return removed, nil
}

// Rename changes only the name of the wallet at index.
func (s *WalletStore) Rename(ctx context.Context, index int, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return &vault.ValidationError{Field: "name", Msg: "must not be empty"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(ctx, index); err != nil {
		return err
	}
	next := s.cloneLocked()
	next.Wallets[index].Name = name
	return s.saveLocked(ctx, next)
}

// List returns a copy of every record in order.
func (s *WalletStore) List(ctx context.Context) ([]WalletRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLocked(ctx); err != nil {
		return nil, err
	}
	return s.cloneLocked().Wallets, nil
}

// Len returns the number of wallets.
func (s *WalletStore) Len(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLocked(ctx); err != nil {
		return 0, err
	}
	return len(s.doc.Wallets), nil
}

// Get returns the record at index.
func (s *WalletStore) Get(ctx context.Context, index int) (WalletRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked(ctx, index); err != nil {
		return WalletRecord{}, err
	}
	return cloneRecord(s.doc.Wallets[index]), nil
}

// Active returns the active record and its index.
func (s *WalletStore) Active(ctx context.Context) (WalletRecord, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLocked(ctx); err != nil {
		return WalletRecord{}, -1, err
	}
	if len(s.doc.Wallets) == 0 {
		return WalletRecord{}, -1, ErrNoWallet
	}
	i := s.doc.ActiveIndex
	return cloneRecord(s.doc.Wallets[i]), i, nil
}

func (s *WalletStore) checkLocked(ctx context.Context, index int) error {
	if err := s.ensureLocked(ctx); err != nil {
		return err
	}
	if index < 0 || index >= len(s.doc.Wallets) {
		return fmt.Errorf("%w at index %d", ErrNoWallet, index)
	}
	return nil
}

func (s *WalletStore) cloneLocked() walletsDoc {
	out := walletsDoc{ActiveIndex: s.doc.ActiveIndex, Wallets: make([]WalletRecord, len(s.doc.Wallets))}
	for i, r := range s.doc.Wallets {
		out.Wallets[i] = cloneRecord(r)
	}
	return out
}

func cloneRecord(r WalletRecord) WalletRecord {
	if r.Security != nil {
		sec := *r.Security
		r.Security = &sec
	}
	return r
}
