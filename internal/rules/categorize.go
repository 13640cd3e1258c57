package rules

import (
	"context"
	"errors"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/solufin/extrato/internal/domain"
	"github.com/solufin/extrato/internal/normalize"
	"github.com/solufin/extrato/internal/store"
)

// MappingLookup reads a learned merchant mapping for (owner, merchantKey).
// Returns found=false when the owner has no mapping for that merchant.
type MappingLookup func(ctx context.Context, ownerID, merchantKey string) (category, subcategory string, found bool, err error)

// Categorizer assigns exactly one CategoryAssignment per transaction:
// learned merchant mapping first, then the rule table, then the fallback
// bucket. Mapping reads go through a small TTL cache so repeated merchants
// within an import do not re-query the store per row.
type Categorizer struct {
	engine  *Engine
	lookup  MappingLookup
	mapping *gocache.Cache
}

// cachedMapping is the cache entry; Found=false entries cache negative
// lookups, which dominate most statements.
type cachedMapping struct {
	Category    string
	Subcategory string
	Found       bool
}

// NewCategorizer creates a categorizer over the given engine. lookup may be
// nil when no mapping store is available (rule matching only).
func NewCategorizer(engine *Engine, lookup MappingLookup) *Categorizer {
	return &Categorizer{
		engine:  engine,
		lookup:  lookup,
		mapping: gocache.New(5*time.Minute, 10*time.Minute),
	}
}

// Categorize returns the assignment for one transaction. It never fails: a
// mapping-store read error degrades to rule matching, and debit rows no
// rule claims land in the Uncategorized bucket. Credits always resolve to
// an Income subcategory.
func (c *Categorizer) Categorize(ctx context.Context, ownerID, description, merchant string, direction domain.Direction) domain.CategoryAssignment {
	// Rows without a merchant are keyed on the description instead,
	// matching how corrections on such rows are learned.
	keySource := merchant
	if keySource == "" {
		keySource = description
	}
	if key := normalize.MerchantKey(keySource); key != "" && c.lookup != nil {
		if m, ok := c.lookupCached(ctx, ownerID, key); ok {
			return domain.CategoryAssignment{
				Category:    m.Category,
				Subcategory: m.Subcategory,
				Source:      domain.SourceLearnedMerchant,
			}
		}
	}

	if rule, ok := c.engine.Match(description, merchant, direction); ok {
		return domain.CategoryAssignment{
			Category:    rule.Category,
			Subcategory: rule.Subcategory,
			Source:      domain.SourceRuleMatch,
			RuleName:    rule.Name,
		}
	}

	if direction == domain.DirectionCredit {
		// Unmatched income still lands in Income/Other, never Uncategorized.
		return domain.CategoryAssignment{
			Category:    domain.CategoryIncome,
			Subcategory: "Other",
			Source:      domain.SourceRuleMatch,
			RuleName:    "income-other",
		}
	}

	return domain.CategoryAssignment{
		Category: domain.CategoryUncategorized,
		Source:   domain.SourceFallback,
	}
}

func (c *Categorizer) lookupCached(ctx context.Context, ownerID, merchantKey string) (cachedMapping, bool) {
	cacheKey := ownerID + "/" + merchantKey
	if v, hit := c.mapping.Get(cacheKey); hit {
		m := v.(cachedMapping)
		return m, m.Found
	}

	category, subcategory, found, err := c.lookup(ctx, ownerID, merchantKey)
	if err != nil {
		// Degrade to rule matching; do not cache the failure.
		return cachedMapping{}, false
	}

	m := cachedMapping{Category: category, Subcategory: subcategory, Found: found}
	c.mapping.Set(cacheKey, m, gocache.DefaultExpiration)
	return m, found
}

// InvalidateMerchant drops the cached mapping for one merchant, called
// after the user edits a transaction's category.
func (c *Categorizer) InvalidateMerchant(ownerID, merchantKey string) {
	c.mapping.Delete(ownerID + "/" + merchantKey)
}

// StoreLookup adapts a mapping reader to a MappingLookup. A missing
// mapping is a normal miss, not an error.
func StoreLookup(reader MappingReader) MappingLookup {
	return func(ctx context.Context, ownerID, merchantKey string) (string, string, bool, error) {
		m, err := reader.GetMerchantMapping(ctx, ownerID, merchantKey)
		if errors.Is(err, store.ErrNotFound) {
			return "", "", false, nil
		}
		if err != nil {
			return "", "", false, err
		}
		return m.Category, m.Subcategory, true, nil
	}
}

// MappingReader is the slice of the store the categorizer needs.
type MappingReader interface {
	GetMerchantMapping(ctx context.Context, ownerID, merchantKey string) (*store.MerchantMapping, error)
}
