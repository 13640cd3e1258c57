// Package store defines the keyed persistence gateway the import pipeline
// runs against: accounts, transactions, learned merchant mappings, and the
// audit event log. Implementations live in the firestore, sqlite, and
// memory subpackages.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by point lookups when the entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrUnavailable marks an infrastructure failure: the gateway itself is
// unreachable. The importer aborts the whole run on it, as opposed to a
// per-row insert rejection, which is counted and skipped.
var ErrUnavailable = errors.New("store unavailable")

// Account is the balance-carrying container for one owner's transactions
// from one import source provider (e.g. "csv_import", "ofx_import").
type Account struct {
	ID           string    `firestore:"id" json:"id"`
	OwnerID      string    `firestore:"ownerId" json:"owner_id"`
	Provider     string    `firestore:"provider" json:"provider"`
	Balance      float64   `firestore:"balance" json:"balance"`
	LastSyncedAt time.Time `firestore:"lastSyncedAt" json:"last_synced_at"`
	CreatedAt    time.Time `firestore:"createdAt" json:"created_at"`
}

// Transaction is a persisted statement row. Amount is the non-negative
// magnitude; Direction carries the sign. DedupHash is the idempotency key:
// one owner never stores two transactions with the same hash.
type Transaction struct {
	ID          string    `firestore:"id" json:"id"`
	OwnerID     string    `firestore:"ownerId" json:"owner_id"`
	AccountID   string    `firestore:"accountId" json:"account_id"`
	Date        string    `firestore:"date" json:"date"` // ISO YYYY-MM-DD
	Amount      float64   `firestore:"amount" json:"amount"`
	Direction   string    `firestore:"direction" json:"direction"`
	Currency    string    `firestore:"currency" json:"currency"`
	Description string    `firestore:"description" json:"description"`
	Merchant    string    `firestore:"merchant,omitempty" json:"merchant,omitempty"`
	Category    string    `firestore:"category" json:"category"`
	Subcategory string    `firestore:"subcategory,omitempty" json:"subcategory,omitempty"`
	DedupHash   string    `firestore:"dedupHash" json:"dedup_hash"`
	Source      string    `firestore:"source" json:"source"` // Provider tag of the import source.
	NeedsReview bool      `firestore:"needsReview" json:"needs_review"`
	CreatedAt   time.Time `firestore:"createdAt" json:"created_at"`
}

// Validate checks the invariants every implementation enforces on insert.
func (t *Transaction) Validate() error {
	switch {
	case t.ID == "":
		return errors.New("transaction ID is required")
	case t.OwnerID == "":
		return errors.New("owner ID is required")
	case t.AccountID == "":
		return errors.New("account ID is required")
	case t.Amount < 0:
		return errors.New("amount must be a non-negative magnitude")
	case t.DedupHash == "":
		return errors.New("dedup hash is required")
	case t.Direction != "credit" && t.Direction != "debit":
		return errors.New("direction must be credit or debit")
	}
	if _, err := time.Parse("2006-01-02", t.Date); err != nil {
		return errors.New("date must be YYYY-MM-DD")
	}
	return nil
}

// MerchantMapping is a learned (owner, merchant) → category override,
// created when a user manually recategorizes a transaction. Never deleted
// automatically.
type MerchantMapping struct {
	OwnerID     string    `firestore:"ownerId" json:"owner_id"`
	MerchantKey string    `firestore:"merchantKey" json:"merchant_key"`
	Category    string    `firestore:"category" json:"category"`
	Subcategory string    `firestore:"subcategory,omitempty" json:"subcategory,omitempty"`
	UpdatedAt   time.Time `firestore:"updatedAt" json:"updated_at"`
}

// Event is one audit log record, emitted once per import run.
type Event struct {
	ID        string         `firestore:"id" json:"id"`
	OwnerID   string         `firestore:"ownerId" json:"owner_id"`
	Type      string         `firestore:"type" json:"type"`
	Payload   map[string]any `firestore:"payload" json:"payload"`
	CreatedAt time.Time      `firestore:"createdAt" json:"created_at"`
}

// Store is the persistence gateway consumed by the importer and handlers.
type Store interface {
	// FindAccount returns the owner's account for the given provider tag,
	// or ErrNotFound.
	FindAccount(ctx context.Context, ownerID, provider string) (*Account, error)

	// CreateAccount persists a new account.
	CreateAccount(ctx context.Context, account *Account) error

	// UpdateAccountSync sets the account's balance and last-sync timestamp
	// in a single write.
	UpdateAccountSync(ctx context.Context, accountID string, balance float64, syncedAt time.Time) error

	// TransactionExists reports whether the owner already has a
	// transaction with this dedup hash.
	TransactionExists(ctx context.Context, ownerID, dedupHash string) (bool, error)

	// InsertTransaction persists one row. A validation rejection is a
	// plain error (row-level); infrastructure failures wrap ErrUnavailable.
	InsertTransaction(ctx context.Context, txn *Transaction) error

	// GetTransaction returns one transaction by document id, scoped to
	// the owner, or ErrNotFound.
	GetTransaction(ctx context.Context, ownerID, id string) (*Transaction, error)

	// UpdateTransactionCategory recategorizes one transaction and clears
	// its review flag.
	UpdateTransactionCategory(ctx context.Context, ownerID, id, category, subcategory string) error

	// GetMerchantMapping returns the learned override for the merchant
	// key, or ErrNotFound.
	GetMerchantMapping(ctx context.Context, ownerID, merchantKey string) (*MerchantMapping, error)

	// UpsertMerchantMapping creates or replaces a learned override.
	UpsertMerchantMapping(ctx context.Context, mapping *MerchantMapping) error

	// LogEvent appends an audit event.
	LogEvent(ctx context.Context, event *Event) error
}
