// Package rules provides the YAML-based categorization engine: an ordered
// keyword rule table plus the learned merchant-mapping override that takes
// precedence over it.
package rules

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/solufin/extrato/internal/domain"
	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var embeddedRules []byte

// Rule is a single categorization rule. Keywords are matched
// case-insensitively as substrings of the concatenated description and
// merchant text; any keyword hit matches the rule. Rules apply only to
// transactions of their Direction.
//
// Rules are loaded and validated via NewEngine / LoadEmbedded /
// LoadFromFile. Direct struct construction bypasses validation; fields are
// exported for YAML unmarshaling and tests.
type Rule struct {
	Name        string           `yaml:"name"`
	Direction   domain.Direction `yaml:"direction"`
	Priority    int              `yaml:"priority"`
	Keywords    []string         `yaml:"keywords"`
	Category    string           `yaml:"category"`
	Subcategory string           `yaml:"subcategory"`
}

// RuleSet is the top-level YAML structure.
type RuleSet struct {
	Rules []Rule `yaml:"rules"`
}

// Engine matches transaction text against the rule table in priority
// order. The table is configuration: ordering lives in the data, not in
// code.
type Engine struct {
	rules []Rule // Sorted by priority (highest first).
}

// NewEngine creates a rules engine from YAML data.
func NewEngine(rulesData []byte) (*Engine, error) {
	var ruleSet RuleSet
	if err := yaml.Unmarshal(rulesData, &ruleSet); err != nil {
		return nil, fmt.Errorf("failed to parse YAML rules (check syntax, indentation, and field names): %w", err)
	}

	for i, rule := range ruleSet.Rules {
		if !domain.ValidateDirection(rule.Direction) {
			return nil, fmt.Errorf("rule %d (%s): invalid direction %q (must be 'credit' or 'debit')", i, rule.Name, rule.Direction)
		}
		if rule.Priority < 0 || rule.Priority > 999 {
			return nil, fmt.Errorf("rule %d (%s): priority must be in [0,999], got %d", i, rule.Name, rule.Priority)
		}
		if !domain.ValidateCategory(rule.Category, rule.Subcategory) {
			return nil, fmt.Errorf("rule %d (%s): category %q/%q is not in the taxonomy", i, rule.Name, rule.Category, rule.Subcategory)
		}
		if rule.Direction == domain.DirectionCredit && rule.Category != domain.CategoryIncome {
			return nil, fmt.Errorf("rule %d (%s): credit rules must assign the %s category, got %q", i, rule.Name, domain.CategoryIncome, rule.Category)
		}
		if len(rule.Keywords) == 0 {
			return nil, fmt.Errorf("rule %d (%s): keywords cannot be empty", i, rule.Name)
		}
		for _, kw := range rule.Keywords {
			if strings.TrimSpace(kw) == "" {
				return nil, fmt.Errorf("rule %d (%s): blank keyword", i, rule.Name)
			}
		}
	}

	// Stable sort keeps YAML file order for equal priorities, guaranteeing
	// deterministic matching.
	sorted := make([]Rule, len(ruleSet.Rules))
	copy(sorted, ruleSet.Rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority > sorted[j].Priority
	})

	return &Engine{rules: sorted}, nil
}

// LoadEmbedded loads the embedded rules.yaml table.
func LoadEmbedded() (*Engine, error) {
	engine, err := NewEngine(embeddedRules)
	if err != nil {
		return nil, fmt.Errorf("failed to load embedded rules (possible binary corruption): %w", err)
	}
	return engine, nil
}

// LoadFromFile loads a custom rule table from a filesystem path.
func LoadFromFile(path string) (*Engine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	engine, err := NewEngine(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules from %q: %w", path, err)
	}
	return engine, nil
}

// Load loads the rule table from path, or the embedded table when path
// is empty.
func Load(path string) (*Engine, error) {
	if path == "" {
		return LoadEmbedded()
	}
	return LoadFromFile(path)
}

// Match applies the rule table to the transaction text and returns the
// first matching rule for the given direction. Evaluation order is priority
// (highest first), then YAML file order. Returns (nil, false) when no rule
// matches.
func (e *Engine) Match(description, merchant string, direction domain.Direction) (*Rule, bool) {
	haystack := strings.ToLower(strings.TrimSpace(description + " " + merchant))

	for i := range e.rules {
		rule := &e.rules[i]
		if rule.Direction != direction {
			continue
		}
		for _, kw := range rule.Keywords {
			if strings.Contains(haystack, strings.ToLower(kw)) {
				return rule, true
			}
		}
	}

	return nil, false
}

// Rules returns a copy of the table in evaluation order, for inspection.
func (e *Engine) Rules() []Rule {
	result := make([]Rule, len(e.rules))
	copy(result, e.rules)
	return result
}
