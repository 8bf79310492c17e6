// Package routing turns raw utterances into resolved commands.
package routing

import (
	"strings"

	"github.com/hrygo/orchestra/action"
	"github.com/hrygo/orchestra/spell"
)

// PhraseMatcher is the deterministic, first-match-wins substring resolver.
// It performs no I/O and holds no mutable state, so one instance is shared
// freely across goroutines.
type PhraseMatcher struct {
	rules []spell.Rule
}

// NewPhraseMatcher creates a matcher that evaluates rules in the given order.
func NewPhraseMatcher(rules []spell.Rule) *PhraseMatcher {
	copied := make([]spell.Rule, 0, len(rules))
	for _, r := range rules {
		triggers := make([]string, 0, len(r.Triggers))
		for _, t := range r.Triggers {
			if t = strings.ToLower(t); t != "" {
				triggers = append(triggers, t)
			}
		}
		copied = append(copied, spell.Rule{Triggers: triggers, Action: r.Action, Specificity: r.Specificity})
	}
	return &PhraseMatcher{rules: copied}
}

// NewCatalogMatcher creates a matcher using the catalog's derived rule order.
func NewCatalogMatcher(c *spell.Catalog) *PhraseMatcher {
	return NewPhraseMatcher(c.Rules())
}

// Resolve returns the action of the first rule with any trigger contained in
// the lower-cased text. ok is false when no rule matches.
func (m *PhraseMatcher) Resolve(text string) (id action.ID, ok bool) {
	lower := strings.ToLower(text)
	for _, r := range m.rules {
		for _, t := range r.Triggers {
			if strings.Contains(lower, t) {
				return r.Action, true
			}
		}
	}
	return "", false
}

// Rules returns a copy of the evaluation order.
func (m *PhraseMatcher) Rules() []spell.Rule {
	return spell.CloneRules(m.rules)
}
