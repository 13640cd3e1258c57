package rules

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solufin/extrato/internal/domain"
	"github.com/solufin/extrato/internal/store"
	"github.com/solufin/extrato/internal/store/memory"
)

func newTestCategorizer(t *testing.T, st *memory.Store) *Categorizer {
	t.Helper()
	engine, err := LoadEmbedded()
	require.NoError(t, err)
	return NewCategorizer(engine, StoreLookup(st))
}

func TestCategorize_RuleMatch(t *testing.T) {
	cat := newTestCategorizer(t, memory.New())

	got := cat.Categorize(context.Background(), "owner-1", "IFOOD *PEDIDO 1234", "", domain.DirectionDebit)
	assert.Equal(t, "Alimentação", got.Category)
	assert.Equal(t, "Restaurantes", got.Subcategory)
	assert.Equal(t, domain.SourceRuleMatch, got.Source)
	assert.Equal(t, "food-restaurants", got.RuleName)
}

func TestCategorize_MappingOverridesRules(t *testing.T) {
	st := memory.New()
	// The user always recategorizes Uber as a business expense bucket.
	require.NoError(t, st.UpsertMerchantMapping(context.Background(), &store.MerchantMapping{
		OwnerID:     "owner-1",
		MerchantKey: "uber",
		Category:    "Compras",
		UpdatedAt:   time.Now(),
	}))
	cat := newTestCategorizer(t, st)

	got := cat.Categorize(context.Background(), "owner-1", "UBER *TRIP", "Uber", domain.DirectionDebit)
	assert.Equal(t, "Compras", got.Category)
	assert.Equal(t, domain.SourceLearnedMerchant, got.Source)

	// Another owner without the mapping still gets the rule.
	other := cat.Categorize(context.Background(), "owner-2", "UBER *TRIP", "Uber", domain.DirectionDebit)
	assert.Equal(t, "Transporte", other.Category)
	assert.Equal(t, domain.SourceRuleMatch, other.Source)
}

func TestCategorize_MappingFallsBackToDescription(t *testing.T) {
	st := memory.New()
	require.NoError(t, st.UpsertMerchantMapping(context.Background(), &store.MerchantMapping{
		OwnerID:     "owner-1",
		MerchantKey: "padoca-do-ze",
		Category:    "Alimentação",
		Subcategory: "Restaurantes",
		UpdatedAt:   time.Now(),
	}))
	cat := newTestCategorizer(t, st)

	// No merchant column: the description drives the mapping key.
	got := cat.Categorize(context.Background(), "owner-1", "PADOCA DO ZÉ", "", domain.DirectionDebit)
	assert.Equal(t, domain.SourceLearnedMerchant, got.Source)
	assert.Equal(t, "Restaurantes", got.Subcategory)
}

func TestCategorize_CreditFallbackIsIncome(t *testing.T) {
	cat := newTestCategorizer(t, memory.New())

	got := cat.Categorize(context.Background(), "owner-1", "CREDITO MISTERIOSO XYZ", "", domain.DirectionCredit)
	assert.Equal(t, domain.CategoryIncome, got.Category)
	assert.Equal(t, "Other", got.Subcategory)
	assert.False(t, got.Unclassified(), "credits are never uncategorized")
}

func TestCategorize_DebitFallbackIsUncategorized(t *testing.T) {
	cat := newTestCategorizer(t, memory.New())

	got := cat.Categorize(context.Background(), "owner-1", "DEBITO MISTERIOSO XYZ", "", domain.DirectionDebit)
	assert.Equal(t, domain.CategoryUncategorized, got.Category)
	assert.Empty(t, got.Subcategory)
	assert.Equal(t, domain.SourceFallback, got.Source)
	assert.True(t, got.Unclassified())
}

func TestCategorize_MappingReadsAreCached(t *testing.T) {
	st := memory.New()
	cat := newTestCategorizer(t, st)

	for i := 0; i < 5; i++ {
		cat.Categorize(context.Background(), "owner-1", "IFOOD *PEDIDO", "iFood", domain.DirectionDebit)
	}
	// Negative lookups cache too: one store read for five rows.
	assert.Equal(t, 1, st.MappingReads)

	cat.InvalidateMerchant("owner-1", "ifood")
	cat.Categorize(context.Background(), "owner-1", "IFOOD *PEDIDO", "iFood", domain.DirectionDebit)
	assert.Equal(t, 2, st.MappingReads)
}

func TestCategorize_LookupErrorDegradesToRules(t *testing.T) {
	st := memory.New()
	st.Unavailable = true
	cat := newTestCategorizer(t, st)

	got := cat.Categorize(context.Background(), "owner-1", "IFOOD *PEDIDO", "iFood", domain.DirectionDebit)
	assert.Equal(t, "Alimentação", got.Category)
	assert.Equal(t, domain.SourceRuleMatch, got.Source)
}

func TestStoreLookup_NotFoundIsMiss(t *testing.T) {
	lookup := StoreLookup(memory.New())
	_, _, found, err := lookup(context.Background(), "owner-1", "nobody")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStoreLookup_ErrorPropagates(t *testing.T) {
	st := memory.New()
	st.Unavailable = true
	lookup := StoreLookup(st)
	_, _, _, err := lookup(context.Background(), "owner-1", "nobody")
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrUnavailable))
}
