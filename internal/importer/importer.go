// Package importer orchestrates a statement import run: parser
// selection, field normalization, deduplication, categorization, and
// persistence through the store gateway.
package importer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/solufin/extrato/internal/dedup"
	"github.com/solufin/extrato/internal/domain"
	"github.com/solufin/extrato/internal/normalize"
	"github.com/solufin/extrato/internal/parser"
	"github.com/solufin/extrato/internal/registry"
	"github.com/solufin/extrato/internal/rules"
	"github.com/solufin/extrato/internal/store"
)

// DefaultMaxRows is the per-file row cap. Files above the cap are
// rejected before anything is persisted.
const DefaultMaxRows = 10000

// CapacityError is returned when a statement exceeds the row cap.
// Nothing from the file is persisted.
type CapacityError struct {
	Rows  int
	Limit int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("statement has %d rows, exceeding the limit of %d", e.Rows, e.Limit)
}

// Options tune a single importer instance.
type Options struct {
	// MaxRows overrides DefaultMaxRows when positive.
	MaxRows int
	// DryRun parses and categorizes but never touches the store.
	DryRun bool
}

// Importer runs statement imports for one store backend.
type Importer struct {
	store       store.Store
	registry    *registry.Registry
	categorizer *rules.Categorizer
	log         zerolog.Logger
	maxRows     int
	dryRun      bool
	now         func() time.Time
}

// New creates an importer. The categorizer is expected to read learned
// merchant mappings from the same store.
func New(st store.Store, reg *registry.Registry, cat *rules.Categorizer, log zerolog.Logger, opts Options) *Importer {
	maxRows := opts.MaxRows
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	return &Importer{
		store:       st,
		registry:    reg,
		categorizer: cat,
		log:         log,
		maxRows:     maxRows,
		dryRun:      opts.DryRun,
		now:         time.Now,
	}
}

// Run imports one statement file for an owner. Parse failures and the
// row cap abort the whole run with nothing persisted; individual bad
// rows are counted in the summary and skipped. A store that reports
// ErrUnavailable aborts the run mid-flight.
func (imp *Importer) Run(ctx context.Context, ownerID string, content []byte, filename, declaredType string) (*domain.ImportSummary, error) {
	p, err := imp.registry.Select(filename, declaredType, content)
	if err != nil {
		return nil, err
	}

	records, err := p.Parse(ctx, bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		// A recognized format with no rows is structurally unusable;
		// abort before any account or event write.
		return nil, parser.NewFormatError(p.Name(), "statement contains no transaction rows")
	}
	if len(records) > imp.maxRows {
		return nil, &CapacityError{Rows: len(records), Limit: imp.maxRows}
	}

	summary := domain.NewImportSummary()
	summary.TotalRows = len(records)

	providerTag := p.Name() + "_import"
	var account *store.Account
	if !imp.dryRun {
		account, err = imp.ensureAccount(ctx, ownerID, providerTag)
		if err != nil {
			return nil, err
		}
	}

	// Hashes already handled in this run, so a file that repeats a row
	// internally counts it as a duplicate instead of inserting it twice.
	seen := make(map[string]struct{}, len(records))
	var balanceDelta float64

	for _, rec := range records {
		txn, err := imp.normalizeRecord(rec)
		if err != nil {
			summary.RecordError("line %d: %v", rec.Line, err)
			continue
		}

		hash := imp.fingerprint(ownerID, providerTag, txn)
		if _, dup := seen[hash]; dup {
			summary.Duplicates++
			continue
		}
		seen[hash] = struct{}{}

		if !imp.dryRun {
			exists, err := imp.store.TransactionExists(ctx, ownerID, hash)
			if err != nil {
				if errors.Is(err, store.ErrUnavailable) {
					return nil, fmt.Errorf("import aborted: %w", err)
				}
				summary.RecordError("line %d: duplicate check failed: %v", rec.Line, err)
				continue
			}
			if exists {
				summary.Duplicates++
				continue
			}
		}

		assignment := imp.categorizer.Categorize(ctx, ownerID, txn.Description, txn.Merchant, txn.Direction)
		if assignment.Unclassified() {
			summary.Unclassified++
		} else {
			summary.Categorized++
		}

		if imp.dryRun {
			summary.Inserted++
			continue
		}

		record := &store.Transaction{
			ID:          uuid.NewString(),
			OwnerID:     ownerID,
			AccountID:   account.ID,
			Date:        txn.Date,
			Amount:      txn.Amount,
			Direction:   string(txn.Direction),
			Currency:    string(txn.Currency),
			Description: txn.Description,
			Merchant:    txn.Merchant,
			Category:    assignment.Category,
			Subcategory: assignment.Subcategory,
			DedupHash:   hash,
			Source:      providerTag,
			NeedsReview: assignment.Unclassified(),
			CreatedAt:   imp.now(),
		}
		if err := imp.store.InsertTransaction(ctx, record); err != nil {
			if errors.Is(err, store.ErrUnavailable) {
				return nil, fmt.Errorf("import aborted: %w", err)
			}
			summary.RecordError("line %d: insert rejected: %v", rec.Line, err)
			continue
		}

		summary.Inserted++
		balanceDelta += txn.SignedAmount()
	}

	if !imp.dryRun {
		// The sync timestamp moves even on an all-duplicate rerun; the
		// balance delta is zero in that case.
		syncedAt := imp.now()
		if err := imp.store.UpdateAccountSync(ctx, account.ID, account.Balance+balanceDelta, syncedAt); err != nil {
			return nil, fmt.Errorf("failed to update account: %w", err)
		}
		if err := imp.logImportEvent(ctx, ownerID, filename, p.Name(), summary); err != nil {
			imp.log.Warn().Err(err).Msg("failed to record import event")
		}
	}

	imp.log.Info().
		Str("owner", ownerID).
		Str("file", filename).
		Str("parser", p.Name()).
		Int("total", summary.TotalRows).
		Int("inserted", summary.Inserted).
		Int("duplicates", summary.Duplicates).
		Int("failed", summary.FailedRows).
		Bool("dry_run", imp.dryRun).
		Msg("import completed")

	return summary, nil
}

// RunFile imports a statement from disk. Parser selection sniffs the
// file header; declaredType is not used on this path.
func (imp *Importer) RunFile(ctx context.Context, ownerID, path string, content []byte) (*domain.ImportSummary, error) {
	return imp.Run(ctx, ownerID, content, path, "")
}

// ensureAccount finds or lazily creates the owner's account for this
// provider.
func (imp *Importer) ensureAccount(ctx context.Context, ownerID, providerTag string) (*store.Account, error) {
	account, err := imp.store.FindAccount(ctx, ownerID, providerTag)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}

	account = &store.Account{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Provider:  providerTag,
		Balance:   0,
		CreatedAt: imp.now(),
	}
	if err := imp.store.CreateAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	imp.log.Info().Str("owner", ownerID).Str("provider", providerTag).Msg("created account")
	return account, nil
}

// normalizeRecord turns a raw parser record into a validated
// transaction, or explains which field is unusable.
func (imp *Importer) normalizeRecord(rec parser.RawRecord) (*domain.NormalizedTransaction, error) {
	date, ok := normalize.Date(rec.Date)
	if !ok {
		return nil, fmt.Errorf("unparseable date %q", rec.Date)
	}
	amount, sign, ok := normalize.Amount(rec.Amount)
	if !ok {
		return nil, fmt.Errorf("unparseable amount %q", rec.Amount)
	}

	direction := normalize.Direction(rec.DirectionHint, sign)
	currency := normalize.Currency(rec.CurrencyHint)

	txn, err := domain.NewNormalizedTransaction(date, amount, direction, currency, rec.Description)
	if err != nil {
		return nil, err
	}
	txn.Merchant = rec.Counterpart
	txn.NaturalID = rec.NaturalID
	return txn, nil
}

// fingerprint prefers the source-provided natural id (OFX FITID) over
// the content hash so that a later edit of the description does not
// resurrect an already-imported transaction.
func (imp *Importer) fingerprint(ownerID, providerTag string, txn *domain.NormalizedTransaction) string {
	if txn.NaturalID != "" {
		return dedup.NaturalFingerprint(ownerID, providerTag, txn.NaturalID)
	}
	return dedup.Fingerprint(ownerID, txn.Date, txn.Amount, txn.Description)
}

func (imp *Importer) logImportEvent(ctx context.Context, ownerID, filename, parserName string, summary *domain.ImportSummary) error {
	event := &store.Event{
		ID:      uuid.NewString(),
		OwnerID: ownerID,
		Type:    "statement_imported",
		Payload: map[string]any{
			"filename":     filename,
			"parser":       parserName,
			"total_rows":   summary.TotalRows,
			"inserted":     summary.Inserted,
			"duplicates":   summary.Duplicates,
			"failed_rows":  summary.FailedRows,
			"unclassified": summary.Unclassified,
		},
		CreatedAt: imp.now(),
	}
	return imp.store.LogEvent(ctx, event)
}
