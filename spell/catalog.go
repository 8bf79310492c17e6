// Package spell defines the canonical trigger table. Both the phrase matcher's
// rule order and the human-facing spell book are derived from one Catalog.
package spell

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/hrygo/orchestra/action"
)

// Specificity ranks how narrow a spell's triggers are. Narrower rules are
// evaluated first; equal ranks keep table order.
type Specificity string

const (
	// SpecificityKeyword is a broad single-word trigger such as "day".
	SpecificityKeyword Specificity = "keyword"
	// SpecificityPhrase is an exact multi-word trigger such as "new day two".
	SpecificityPhrase Specificity = "phrase"
)

func (s Specificity) rank() int {
	if s == SpecificityPhrase {
		return 1
	}
	return 0
}

// Spell is one trigger phrase -> action binding.
type Spell struct {
	Name        string      `yaml:"name" json:"name"`
	Action      action.ID   `yaml:"action" json:"action"`
	Triggers    []string    `yaml:"triggers" json:"triggers"`
	Description string      `yaml:"description" json:"description"`
	Specificity Specificity `yaml:"specificity" json:"specificity"`
	// AcceptsDate marks actions that take an optional "date" argument.
	AcceptsDate bool `yaml:"accepts_date" json:"accepts_date"`
}

// Rule is an ordered (triggers, action) pair evaluated by the phrase matcher.
type Rule struct {
	Triggers    []string
	Action      action.ID
	Specificity Specificity
}

// Catalog is an immutable, validated spell table.
type Catalog struct {
	spells []Spell
	byID   map[action.ID]int
	rules  []Rule
}

// NewCatalog validates spells and derives the rule order.
func NewCatalog(spells []Spell) (*Catalog, error) {
	c := &Catalog{
		spells: make([]Spell, 0, len(spells)),
		byID:   make(map[action.ID]int, len(spells)),
	}

	for i, s := range spells {
		if s.Action == "" {
			return nil, fmt.Errorf("spell %d (%q): action is required", i, s.Name)
		}
		if _, dup := c.byID[s.Action]; dup {
			return nil, fmt.Errorf("spell %q: duplicate action %q", s.Name, s.Action)
		}
		if s.Specificity == "" {
			s.Specificity = SpecificityKeyword
		}
		if s.Specificity != SpecificityKeyword && s.Specificity != SpecificityPhrase {
			return nil, fmt.Errorf("spell %q: invalid specificity %q", s.Name, s.Specificity)
		}

		triggers := make([]string, 0, len(s.Triggers))
		for _, t := range s.Triggers {
			t = strings.ToLower(strings.TrimSpace(t))
			if t != "" {
				triggers = append(triggers, t)
			}
		}
		if len(triggers) == 0 {
			return nil, fmt.Errorf("spell %q: at least one trigger is required", s.Name)
		}
		s.Triggers = triggers
		if s.Name == "" {
			s.Name = string(s.Action)
		}

		c.byID[s.Action] = len(c.spells)
		c.spells = append(c.spells, s)
	}

	c.rules = make([]Rule, len(c.spells))
	for i, s := range c.spells {
		c.rules[i] = Rule{Triggers: s.Triggers, Action: s.Action, Specificity: s.Specificity}
	}
	sort.SliceStable(c.rules, func(i, j int) bool {
		return c.rules[i].Specificity.rank() > c.rules[j].Specificity.rank()
	})

	return c, nil
}

// Spells returns a deep copy of the table in declaration order.
func (c *Catalog) Spells() []Spell {
	out := make([]Spell, len(c.spells))
	for i, s := range c.spells {
		s.Triggers = slices.Clone(s.Triggers)
		out[i] = s
	}
	return out
}

// Rules returns a deep copy of the matcher rules in evaluation order.
func (c *Catalog) Rules() []Rule {
	return CloneRules(c.rules)
}

// Lookup returns a copy of the spell bound to id.
func (c *Catalog) Lookup(id action.ID) (Spell, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Spell{}, false
	}
	s := c.spells[i]
	s.Triggers = slices.Clone(s.Triggers)
	return s, true
}

// CloneRules copies rules including their trigger slices.
func CloneRules(rules []Rule) []Rule {
	out := make([]Rule, len(rules))
	for i, r := range rules {
		r.Triggers = slices.Clone(r.Triggers)
		out[i] = r
	}
	return out
}

// Len returns the number of spells.
func (c *Catalog) Len() int {
	return len(c.spells)
}

// Missing returns catalog actions with no handler in reg.
func (c *Catalog) Missing(reg *action.Registry) []action.ID {
	var missing []action.ID
	for _, s := range c.spells {
		if !reg.Has(s.Action) {
			missing = append(missing, s.Action)
		}
	}
	return missing
}
