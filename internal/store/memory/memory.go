// Package memory provides an in-memory Store used by tests and local dry
// runs. It mirrors the semantics of the real gateways, including
// ErrNotFound lookups, and can be told to fail to exercise the importer's
// error paths.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/solufin/extrato/internal/store"
)

// Store is a map-backed store.Store. Safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	accounts map[string]*store.Account         // keyed by ownerID/provider
	txns     map[string]*store.Transaction     // keyed by ownerID/dedupHash
	mappings map[string]*store.MerchantMapping // keyed by ownerID/merchantKey
	events   []*store.Event

	// FailInsertFor makes InsertTransaction reject rows whose description
	// matches, simulating a per-row persistence error.
	FailInsertFor string

	// Unavailable makes every call fail with store.ErrUnavailable,
	// simulating an unreachable gateway.
	Unavailable bool

	// MappingReads counts GetMerchantMapping calls, for cache assertions.
	MappingReads int
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		accounts: make(map[string]*store.Account),
		txns:     make(map[string]*store.Transaction),
		mappings: make(map[string]*store.MerchantMapping),
	}
}

func (s *Store) check() error {
	if s.Unavailable {
		return fmt.Errorf("memory store: %w", store.ErrUnavailable)
	}
	return nil
}

// FindAccount implements store.Store.
func (s *Store) FindAccount(ctx context.Context, ownerID, provider string) (*store.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return nil, err
	}
	acc, ok := s.accounts[ownerID+"/"+provider]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *acc
	return &cp, nil
}

// CreateAccount implements store.Store.
func (s *Store) CreateAccount(ctx context.Context, account *store.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	cp := *account
	s.accounts[account.OwnerID+"/"+account.Provider] = &cp
	return nil
}

// UpdateAccountSync implements store.Store.
func (s *Store) UpdateAccountSync(ctx context.Context, accountID string, balance float64, syncedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	for _, acc := range s.accounts {
		if acc.ID == accountID {
			acc.Balance = balance
			acc.LastSyncedAt = syncedAt
			return nil
		}
	}
	return store.ErrNotFound
}

// TransactionExists implements store.Store.
func (s *Store) TransactionExists(ctx context.Context, ownerID, dedupHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return false, err
	}
	_, ok := s.txns[ownerID+"/"+dedupHash]
	return ok, nil
}

// InsertTransaction implements store.Store.
func (s *Store) InsertTransaction(ctx context.Context, txn *store.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	if err := txn.Validate(); err != nil {
		return fmt.Errorf("invalid transaction: %w", err)
	}
	if s.FailInsertFor != "" && txn.Description == s.FailInsertFor {
		return fmt.Errorf("insert rejected for %q", txn.Description)
	}
	cp := *txn
	s.txns[txn.OwnerID+"/"+txn.DedupHash] = &cp
	return nil
}

// GetTransaction implements store.Store.
func (s *Store) GetTransaction(ctx context.Context, ownerID, id string) (*store.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return nil, err
	}
	for _, t := range s.txns {
		if t.OwnerID == ownerID && t.ID == id {
			cp := *t
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

// UpdateTransactionCategory implements store.Store.
func (s *Store) UpdateTransactionCategory(ctx context.Context, ownerID, id, category, subcategory string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	for _, t := range s.txns {
		if t.OwnerID == ownerID && t.ID == id {
			t.Category = category
			t.Subcategory = subcategory
			t.NeedsReview = false
			return nil
		}
	}
	return store.ErrNotFound
}

// GetMerchantMapping implements store.Store.
func (s *Store) GetMerchantMapping(ctx context.Context, ownerID, merchantKey string) (*store.MerchantMapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.MappingReads++
	if err := s.check(); err != nil {
		return nil, err
	}
	m, ok := s.mappings[ownerID+"/"+merchantKey]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

// UpsertMerchantMapping implements store.Store.
func (s *Store) UpsertMerchantMapping(ctx context.Context, mapping *store.MerchantMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	cp := *mapping
	s.mappings[mapping.OwnerID+"/"+mapping.MerchantKey] = &cp
	return nil
}

// LogEvent implements store.Store.
func (s *Store) LogEvent(ctx context.Context, event *store.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	cp := *event
	s.events = append(s.events, &cp)
	return nil
}

// Transactions returns a snapshot of all stored transactions.
func (s *Store) Transactions() []*store.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*store.Transaction, 0, len(s.txns))
	for _, t := range s.txns {
		cp := *t
		out = append(out, &cp)
	}
	return out
}

// Events returns a snapshot of the audit log.
func (s *Store) Events() []*store.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*store.Event, len(s.events))
	for i, e := range s.events {
		cp := *e
		out[i] = &cp
	}
	return out
}

var _ store.Store = (*Store)(nil)
