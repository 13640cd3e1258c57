// Package domain defines the core types shared by the import pipeline:
// transaction direction, currency, the category taxonomy, and the
// normalized transaction and summary shapes.
package domain

import (
	"fmt"
	"time"
)

// Direction tells whether a transaction increases (credit) or decreases
// (debit) the account balance. It is never empty on a normalized
// transaction; ambiguous sources default to DirectionDebit.
type Direction string

const (
	DirectionCredit Direction = "credit"
	DirectionDebit  Direction = "debit"
)

// ValidateDirection checks if the direction is one of the two enum values.
func ValidateDirection(d Direction) bool {
	return d == DirectionCredit || d == DirectionDebit
}

// CurrencyCode is an ISO-4217-style currency code. Unrecognized source
// tokens are uppercased as-is; empty input resolves to the home currency.
type CurrencyCode string

const (
	CurrencyBRL CurrencyCode = "BRL"
	CurrencyUSD CurrencyCode = "USD"
	CurrencyEUR CurrencyCode = "EUR"

	// HomeCurrency is the application default when a statement carries no
	// currency information.
	HomeCurrency = CurrencyBRL
)

// CategoryUncategorized is the fallback sentinel assigned when no rule and
// no learned merchant mapping matches a debit transaction.
const CategoryUncategorized = "Uncategorized"

// CategoryIncome is the top-level category for all credit transactions.
// Credits are never assigned CategoryUncategorized.
const CategoryIncome = "Income"

// Taxonomy is the fixed category/subcategory table. Keys are categories,
// values the allowed subcategories (nil means the category has no
// subdivision). Income subcategories keep the English names of the original
// product; expense categories use the Portuguese names shown in the UI.
var Taxonomy = map[string][]string{
	CategoryIncome:   {"Salary", "Freelance", "Investments", "Transfers", "Other"},
	"Assinaturas":    {"Streaming", "Software"},
	"Alimentação":    {"Restaurantes", "Supermercado"},
	"Transporte":     {"Aplicativos", "Combustível", "Transporte Público"},
	"Contas":         {"Energia", "Água", "Internet", "Telefone"},
	"Entretenimento": nil,
	"Compras":        nil,
	"Saúde":          nil,
	"Educação":       nil,
}

// ValidateCategory checks if the pair belongs to the taxonomy. The
// Uncategorized sentinel is valid only with an empty subcategory.
func ValidateCategory(category, subcategory string) bool {
	if category == CategoryUncategorized {
		return subcategory == ""
	}
	subs, ok := Taxonomy[category]
	if !ok {
		return false
	}
	if subcategory == "" {
		return true
	}
	for _, s := range subs {
		if s == subcategory {
			return true
		}
	}
	return false
}

// AssignmentSource records how a category was chosen.
type AssignmentSource string

const (
	SourceRuleMatch       AssignmentSource = "rule_match"
	SourceLearnedMerchant AssignmentSource = "learned_merchant_mapping"
	SourceFallback        AssignmentSource = "fallback"
)

// CategoryAssignment is the categorization result for one transaction.
// Fallback assignments always carry CategoryUncategorized and an empty
// subcategory.
type CategoryAssignment struct {
	Category    string
	Subcategory string
	Source      AssignmentSource
	RuleName    string // Which rule matched, for explainability. Empty unless Source is rule_match.
}

// Unclassified reports whether the assignment is the fallback bucket.
func (a CategoryAssignment) Unclassified() bool {
	return a.Source == SourceFallback
}

// NormalizedTransaction is a statement row after field normalization.
// Amount is always a non-negative magnitude; the sign lives in Direction.
type NormalizedTransaction struct {
	Date        string // ISO format YYYY-MM-DD
	Amount      float64
	Direction   Direction
	Currency    CurrencyCode
	Description string
	Merchant    string // Optional merchant/payee name; empty when the source has none.
	NaturalID   string // Stable source-provided id (OFX FITID) when available.
}

// NewNormalizedTransaction creates a validated normalized transaction.
func NewNormalizedTransaction(date string, amount float64, direction Direction, currency CurrencyCode, description string) (*NormalizedTransaction, error) {
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return nil, fmt.Errorf("invalid date format (expected YYYY-MM-DD): %w", err)
	}
	if amount < 0 {
		return nil, fmt.Errorf("amount must be a non-negative magnitude, got %f", amount)
	}
	if !ValidateDirection(direction) {
		return nil, fmt.Errorf("invalid direction %q", direction)
	}
	if currency == "" {
		currency = HomeCurrency
	}
	if description == "" {
		return nil, fmt.Errorf("description cannot be empty")
	}
	return &NormalizedTransaction{
		Date:        date,
		Amount:      amount,
		Direction:   direction,
		Currency:    currency,
		Description: description,
	}, nil
}

// SignedAmount returns the amount with the direction's sign applied:
// positive for credits, negative for debits.
func (t *NormalizedTransaction) SignedAmount() float64 {
	if t.Direction == DirectionDebit {
		return -t.Amount
	}
	return t.Amount
}

// MaxSummaryErrors caps the row-level error list carried by an
// ImportSummary to bound response size.
const MaxSummaryErrors = 10

// ImportSummary aggregates the outcome of one import run.
type ImportSummary struct {
	TotalRows    int      `json:"total_rows"`
	Inserted     int      `json:"inserted"`
	Duplicates   int      `json:"duplicates"`
	FailedRows   int      `json:"failed_rows"`
	Categorized  int      `json:"categorized"`
	Unclassified int      `json:"unclassified"`
	Errors       []string `json:"errors"`
}

// NewImportSummary creates an empty summary with an initialized error list.
func NewImportSummary() *ImportSummary {
	return &ImportSummary{Errors: []string{}}
}

// RecordError counts a failed row and appends its message, dropping the
// message once the cap is reached (the count keeps growing).
func (s *ImportSummary) RecordError(format string, args ...any) {
	s.FailedRows++
	if len(s.Errors) < MaxSummaryErrors {
		s.Errors = append(s.Errors, fmt.Sprintf(format, args...))
	}
}
