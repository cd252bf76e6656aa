// Package mapping turns structured source records into graph assertions.
//
// A rule set is an ordered tree of declarative rules, each carrying a coarse
// filter (source type, facet, group, part type/role, title regex), a list of
// triple templates with {placeholder} and {macro:arg,...} expressions, and
// child rules evaluated with the parent's accumulated metadata. Rule sets
// are loaded from YAML or JSON documents and validated up front; evaluation
// never fails on a single bad assertion, it degrades it to a warning.
package mapping

import (
	"regexp"

	"github.com/scriptoria/semgraph/graph"
)

// Filter is the coarse source description a rule is matched against, as
// extracted by a source adapter.
type Filter struct {
	SourceType graph.SourceType `json:"sourceType"`
	Facet      string           `json:"facet,omitempty"`
	Group      string           `json:"group,omitempty"`
	Flags      int              `json:"flags,omitempty"`
	Title      string           `json:"title,omitempty"`
	PartType   string           `json:"partType,omitempty"`
	PartRole   string           `json:"partRole,omitempty"`
}

// TripleTemplate is one triple assertion in template form. Subject and
// Predicate are required; exactly one of Object and Literal must be set.
type TripleTemplate struct {
	Subject   string `yaml:"subject" json:"subject"`
	Predicate string `yaml:"predicate" json:"predicate"`
	Object    string `yaml:"object,omitempty" json:"object,omitempty"`
	Literal   string `yaml:"literal,omitempty" json:"literal,omitempty"`
}

// Rule is one compiled mapping rule in the arena. Children and Parent are
// arena indexes, keeping traversal cycle-free without object back-references.
type Rule struct {
	Index          int
	Name           string
	SourceType     graph.SourceType
	FacetFilter    string
	GroupFilter    string
	FlagsFilter    int
	PartTypeFilter string
	PartRoleFilter string
	TitleFilter    string
	Bindings       map[string]string
	UIDKeys        []string
	Templates      []TripleTemplate

	Parent   int // -1 for roots
	Children []int

	titleRe *regexp.Regexp
}

// Matches reports whether the rule applies to a source described by f.
// Every non-empty filter field on the rule must equal (or, for the title,
// regex-match) the corresponding source value.
func (r *Rule) Matches(f Filter) bool {
	if r.SourceType != "" && r.SourceType != f.SourceType {
		return false
	}
	if r.FacetFilter != "" && r.FacetFilter != f.Facet {
		return false
	}
	if r.GroupFilter != "" && r.GroupFilter != f.Group {
		return false
	}
	if r.FlagsFilter != 0 && r.FlagsFilter&f.Flags != r.FlagsFilter {
		return false
	}
	if r.PartTypeFilter != "" && r.PartTypeFilter != f.PartType {
		return false
	}
	if r.PartRoleFilter != "" && r.PartRoleFilter != f.PartRole {
		return false
	}
	if r.titleRe != nil && !r.titleRe.MatchString(f.Title) {
		return false
	}
	return true
}

// RuleSet is an arena of compiled rules. Roots are evaluated in declaration
// order; every rule's children likewise.
type RuleSet struct {
	rules []Rule
	roots []int
}

// Roots returns the arena indexes of the top-level rules in order.
func (rs *RuleSet) Roots() []int { return rs.roots }

// Rule returns the rule at arena index i.
func (rs *RuleSet) Rule(i int) *Rule { return &rs.rules[i] }

// Len returns the number of rules in the arena.
func (rs *RuleSet) Len() int { return len(rs.rules) }
