// Package sqlite provides the SQLite-backed Store used by the CLI import
// mode. Schema creation is idempotent, and the dedup hash carries a unique
// index per owner so the database enforces the idempotency key even under
// concurrent imports.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	_ "modernc.org/sqlite"

	"github.com/solufin/extrato/internal/store"
)

//go:embed schema.sql
var schema string

// Store wraps a database handle with the gateway operations.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at the given path and applies the
// schema.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("execute schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// FindAccount implements store.Store.
func (s *Store) FindAccount(ctx context.Context, ownerID, provider string) (*store.Account, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, provider, balance, last_synced_at, created_at
		 FROM accounts WHERE owner_id = ? AND provider = ?`, ownerID, provider)

	var acc store.Account
	var lastSynced, created string
	err := row.Scan(&acc.ID, &acc.OwnerID, &acc.Provider, &acc.Balance, &lastSynced, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query account: %w", err)
	}
	acc.LastSyncedAt = parseTime(lastSynced)
	acc.CreatedAt = parseTime(created)
	return &acc, nil
}

// CreateAccount implements store.Store.
func (s *Store) CreateAccount(ctx context.Context, account *store.Account) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (id, owner_id, provider, balance, last_synced_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		account.ID, account.OwnerID, account.Provider, account.Balance,
		formatTime(account.LastSyncedAt), formatTime(account.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// UpdateAccountSync implements store.Store.
func (s *Store) UpdateAccountSync(ctx context.Context, accountID string, balance float64, syncedAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET balance = ?, last_synced_at = ? WHERE id = ?`,
		balance, formatTime(syncedAt), accountID)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// TransactionExists implements store.Store.
func (s *Store) TransactionExists(ctx context.Context, ownerID, dedupHash string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM transactions WHERE owner_id = ? AND dedup_hash = ?`,
		ownerID, dedupHash).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query transaction by hash: %w", err)
	}
	return true, nil
}

// InsertTransaction implements store.Store.
func (s *Store) InsertTransaction(ctx context.Context, txn *store.Transaction) error {
	if err := txn.Validate(); err != nil {
		return fmt.Errorf("invalid transaction: %w", err)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transactions
		 (id, owner_id, account_id, date, amount, direction, currency, description,
		  merchant, category, subcategory, dedup_hash, source, needs_review, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		txn.ID, txn.OwnerID, txn.AccountID, txn.Date, txn.Amount, txn.Direction,
		txn.Currency, txn.Description, txn.Merchant, txn.Category, txn.Subcategory,
		txn.DedupHash, txn.Source, txn.NeedsReview, formatTime(txn.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// GetTransaction implements store.Store.
func (s *Store) GetTransaction(ctx context.Context, ownerID, id string) (*store.Transaction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, account_id, date, amount, direction, currency, description,
		        merchant, category, subcategory, dedup_hash, source, needs_review, created_at
		 FROM transactions WHERE owner_id = ? AND id = ?`, ownerID, id)

	var t store.Transaction
	var created string
	err := row.Scan(&t.ID, &t.OwnerID, &t.AccountID, &t.Date, &t.Amount, &t.Direction,
		&t.Currency, &t.Description, &t.Merchant, &t.Category, &t.Subcategory,
		&t.DedupHash, &t.Source, &t.NeedsReview, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query transaction: %w", err)
	}
	t.CreatedAt = parseTime(created)
	return &t, nil
}

// UpdateTransactionCategory implements store.Store.
func (s *Store) UpdateTransactionCategory(ctx context.Context, ownerID, id, category, subcategory string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE transactions SET category = ?, subcategory = ?, needs_review = 0
		 WHERE owner_id = ? AND id = ?`, category, subcategory, ownerID, id)
	if err != nil {
		return fmt.Errorf("update transaction category: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// GetMerchantMapping implements store.Store.
func (s *Store) GetMerchantMapping(ctx context.Context, ownerID, merchantKey string) (*store.MerchantMapping, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT owner_id, merchant_key, category, subcategory, updated_at
		 FROM merchant_mappings WHERE owner_id = ? AND merchant_key = ?`,
		ownerID, merchantKey)

	var m store.MerchantMapping
	var updated string
	err := row.Scan(&m.OwnerID, &m.MerchantKey, &m.Category, &m.Subcategory, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query merchant mapping: %w", err)
	}
	m.UpdatedAt = parseTime(updated)
	return &m, nil
}

// UpsertMerchantMapping implements store.Store.
func (s *Store) UpsertMerchantMapping(ctx context.Context, mapping *store.MerchantMapping) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO merchant_mappings (owner_id, merchant_key, category, subcategory, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(owner_id, merchant_key) DO UPDATE SET
		   category = excluded.category,
		   subcategory = excluded.subcategory,
		   updated_at = excluded.updated_at`,
		mapping.OwnerID, mapping.MerchantKey, mapping.Category, mapping.Subcategory,
		formatTime(mapping.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upsert merchant mapping: %w", err)
	}
	return nil
}

// LogEvent implements store.Store.
func (s *Store) LogEvent(ctx context.Context, event *store.Event) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO events (id, owner_id, type, payload, created_at) VALUES (?, ?, ?, ?, ?)`,
		event.ID, event.OwnerID, event.Type, string(payload), formatTime(event.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

var _ store.Store = (*Store)(nil)
