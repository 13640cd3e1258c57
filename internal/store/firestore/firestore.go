// Package firestore provides the Cloud Firestore-backed Store used by the
// HTTP service, plus the Firebase Auth client consumed by the auth
// middleware.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/solufin/extrato/internal/store"
)

const (
	accountsCollection = "import-accounts"
	txnsCollection     = "import-transactions"
	mappingsCollection = "merchant-mappings"
	eventsCollection   = "import-events"
)

// Store wraps a Firestore client with the gateway operations.
type Store struct {
	fs        *firestore.Client
	Auth      *auth.Client
	projectID string
}

// New creates a Firestore-backed store using Application Default
// Credentials.
func New(ctx context.Context, projectID string) (*Store, error) {
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}

	fs, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	authClient, err := app.Auth(ctx)
	if err != nil {
		fs.Close()
		return nil, fmt.Errorf("failed to create Auth client: %w", err)
	}

	return &Store{fs: fs, Auth: authClient, projectID: projectID}, nil
}

// Close closes the Firestore client.
func (s *Store) Close() error {
	return s.fs.Close()
}

// classify maps connectivity failures to store.ErrUnavailable so the
// importer can tell an unreachable gateway apart from a rejected row.
func classify(op string, err error) error {
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded:
		return fmt.Errorf("%s: %v: %w", op, err, store.ErrUnavailable)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// FindAccount implements store.Store.
func (s *Store) FindAccount(ctx context.Context, ownerID, provider string) (*store.Account, error) {
	iter := s.fs.Collection(accountsCollection).
		Where("ownerId", "==", ownerID).
		Where("provider", "==", provider).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, classify("find account", err)
	}

	var acc store.Account
	if err := doc.DataTo(&acc); err != nil {
		return nil, fmt.Errorf("failed to parse account: %w", err)
	}
	return &acc, nil
}

// CreateAccount implements store.Store.
func (s *Store) CreateAccount(ctx context.Context, account *store.Account) error {
	_, err := s.fs.Collection(accountsCollection).Doc(account.ID).Set(ctx, account)
	if err != nil {
		return classify("create account", err)
	}
	return nil
}

// UpdateAccountSync implements store.Store.
func (s *Store) UpdateAccountSync(ctx context.Context, accountID string, balance float64, syncedAt time.Time) error {
	_, err := s.fs.Collection(accountsCollection).Doc(accountID).Update(ctx, []firestore.Update{
		{Path: "balance", Value: balance},
		{Path: "lastSyncedAt", Value: syncedAt},
	})
	if err != nil {
		return classify("update account", err)
	}
	return nil
}

// TransactionExists implements store.Store.
func (s *Store) TransactionExists(ctx context.Context, ownerID, dedupHash string) (bool, error) {
	iter := s.fs.Collection(txnsCollection).
		Where("ownerId", "==", ownerID).
		Where("dedupHash", "==", dedupHash).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	_, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return false, nil
	}
	if err != nil {
		return false, classify("check transaction existence", err)
	}
	return true, nil
}

// InsertTransaction implements store.Store.
func (s *Store) InsertTransaction(ctx context.Context, txn *store.Transaction) error {
	if err := txn.Validate(); err != nil {
		return fmt.Errorf("invalid transaction: %w", err)
	}
	_, err := s.fs.Collection(txnsCollection).Doc(txn.ID).Set(ctx, txn)
	if err != nil {
		return classify("insert transaction", err)
	}
	return nil
}

// GetTransaction implements store.Store.
func (s *Store) GetTransaction(ctx context.Context, ownerID, id string) (*store.Transaction, error) {
	doc, err := s.fs.Collection(txnsCollection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, classify("get transaction", err)
	}

	var txn store.Transaction
	if err := doc.DataTo(&txn); err != nil {
		return nil, fmt.Errorf("failed to parse transaction: %w", err)
	}
	// Document ids are unguessable, but ownership is still checked.
	if txn.OwnerID != ownerID {
		return nil, store.ErrNotFound
	}
	return &txn, nil
}

// UpdateTransactionCategory implements store.Store.
func (s *Store) UpdateTransactionCategory(ctx context.Context, ownerID, id, category, subcategory string) error {
	if _, err := s.GetTransaction(ctx, ownerID, id); err != nil {
		return err
	}
	_, err := s.fs.Collection(txnsCollection).Doc(id).Update(ctx, []firestore.Update{
		{Path: "category", Value: category},
		{Path: "subcategory", Value: subcategory},
		{Path: "needsReview", Value: false},
	})
	if err != nil {
		return classify("update transaction category", err)
	}
	return nil
}

// GetMerchantMapping implements store.Store.
func (s *Store) GetMerchantMapping(ctx context.Context, ownerID, merchantKey string) (*store.MerchantMapping, error) {
	doc, err := s.fs.Collection(mappingsCollection).Doc(ownerID + "-" + merchantKey).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, classify("get merchant mapping", err)
	}

	var m store.MerchantMapping
	if err := doc.DataTo(&m); err != nil {
		return nil, fmt.Errorf("failed to parse merchant mapping: %w", err)
	}
	return &m, nil
}

// UpsertMerchantMapping implements store.Store.
func (s *Store) UpsertMerchantMapping(ctx context.Context, mapping *store.MerchantMapping) error {
	docID := mapping.OwnerID + "-" + mapping.MerchantKey
	_, err := s.fs.Collection(mappingsCollection).Doc(docID).Set(ctx, mapping)
	if err != nil {
		return classify("upsert merchant mapping", err)
	}
	return nil
}

// LogEvent implements store.Store.
func (s *Store) LogEvent(ctx context.Context, event *store.Event) error {
	_, err := s.fs.Collection(eventsCollection).Doc(event.ID).Set(ctx, event)
	if err != nil {
		return classify("log event", err)
	}
	return nil
}

var _ store.Store = (*Store)(nil)
