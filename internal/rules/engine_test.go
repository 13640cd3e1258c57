package rules

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/solufin/extrato/internal/domain"
)

func TestLoadEmbedded(t *testing.T) {
	engine, err := LoadEmbedded()
	if err != nil {
		t.Fatalf("LoadEmbedded() error = %v", err)
	}
	if len(engine.Rules()) == 0 {
		t.Fatal("embedded table has no rules")
	}

	// The table must come back sorted highest priority first.
	rules := engine.Rules()
	for i := 1; i < len(rules); i++ {
		if rules[i].Priority > rules[i-1].Priority {
			t.Fatalf("rules out of priority order at %d: %d after %d",
				i, rules[i].Priority, rules[i-1].Priority)
		}
	}
}

func TestNewEngine_ValidRule(t *testing.T) {
	rulesYAML := `
rules:
  - name: test-food
    direction: debit
    priority: 100
    keywords: [ifood]
    category: "Alimentação"
    subcategory: Restaurantes
`
	engine, err := NewEngine([]byte(rulesYAML))
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	if len(engine.rules) != 1 {
		t.Fatalf("rules count = %d, want 1", len(engine.rules))
	}
	rule := engine.rules[0]
	if rule.Name != "test-food" || rule.Priority != 100 {
		t.Errorf("rule = %+v", rule)
	}
}

func TestNewEngine_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantSub string
	}{
		{
			name: "bad direction",
			yaml: `
rules:
  - name: bad
    direction: sideways
    priority: 10
    keywords: [x]
    category: Compras
`,
			wantSub: "invalid direction",
		},
		{
			name: "priority out of range",
			yaml: `
rules:
  - name: bad
    direction: debit
    priority: 1000
    keywords: [x]
    category: Compras
`,
			wantSub: "priority",
		},
		{
			name: "unknown category",
			yaml: `
rules:
  - name: bad
    direction: debit
    priority: 10
    keywords: [x]
    category: Groceries
`,
			wantSub: "taxonomy",
		},
		{
			name: "credit rule outside income",
			yaml: `
rules:
  - name: bad
    direction: credit
    priority: 10
    keywords: [x]
    category: Compras
`,
			wantSub: "credit rules",
		},
		{
			name: "no keywords",
			yaml: `
rules:
  - name: bad
    direction: debit
    priority: 10
    keywords: []
    category: Compras
`,
			wantSub: "keywords",
		},
		{
			name:    "broken yaml",
			yaml:    "rules: [",
			wantSub: "YAML",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEngine([]byte(tt.yaml))
			if err == nil {
				t.Fatal("NewEngine() expected error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q should contain %q", err, tt.wantSub)
			}
		})
	}
}

func TestMatch(t *testing.T) {
	engine, err := LoadEmbedded()
	if err != nil {
		t.Fatalf("LoadEmbedded() error = %v", err)
	}

	tests := []struct {
		name        string
		description string
		merchant    string
		direction   domain.Direction
		wantRule    string
		wantMatch   bool
	}{
		{"ifood debit", "IFOOD *PEDIDO 1234", "", domain.DirectionDebit, "food-restaurants", true},
		{"merchant text also matched", "compra no debito", "Posto Shell", domain.DirectionDebit, "transport-fuel", true},
		{"case insensitive", "NETFLIX.COM", "", domain.DirectionDebit, "subscriptions-streaming", true},
		{"salary credit", "Pagamento salário março", "", domain.DirectionCredit, "income-salary", true},
		{"direction filter", "IFOOD *PEDIDO", "", domain.DirectionCredit, "", false},
		{"mercado livre is shopping not groceries", "MERCADO LIVRE*COMPRA", "", domain.DirectionDebit, "shopping", true},
		{"no match", "TRANSF ENTRE CONTAS", "", domain.DirectionDebit, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule, ok := engine.Match(tt.description, tt.merchant, tt.direction)
			if ok != tt.wantMatch {
				t.Fatalf("Match() ok = %v, want %v", ok, tt.wantMatch)
			}
			if ok && rule.Name != tt.wantRule {
				t.Errorf("Match() rule = %s, want %s", rule.Name, tt.wantRule)
			}
		})
	}
}

func TestMatch_PriorityOrder(t *testing.T) {
	// Streaming (900) must win over generic shopping (500) when both match.
	engine, err := LoadEmbedded()
	if err != nil {
		t.Fatalf("LoadEmbedded() error = %v", err)
	}
	rule, ok := engine.Match("NETFLIX via AMAZON marketplace", "", domain.DirectionDebit)
	if !ok || rule.Name != "subscriptions-streaming" {
		t.Errorf("Match() = %v, want subscriptions-streaming to win on priority", rule)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	content := `
rules:
  - name: custom
    direction: debit
    priority: 10
    keywords: [padoca]
    category: "Alimentação"
    subcategory: Restaurantes
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	engine, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if len(engine.Rules()) != 1 {
		t.Errorf("rules = %d, want 1", len(engine.Rules()))
	}

	if _, err := LoadFromFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("LoadFromFile() expected error for missing file")
	}
}
