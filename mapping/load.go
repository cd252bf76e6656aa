package mapping

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"slices"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/scriptoria/semgraph/graph"
)

// Document is the on-disk form of a rule set: an ordered list of rule trees.
type Document struct {
	Rules []RuleDoc `yaml:"rules" json:"rules"`
}

// RuleDoc is one rule in document form. Children nest inline; ChildRefs
// reference other named rules in the same document, allowing reuse (the
// resulting graph must stay acyclic).
type RuleDoc struct {
	Name           string            `yaml:"name" json:"name"`
	SourceType     string            `yaml:"sourceType,omitempty" json:"sourceType,omitempty"`
	FacetFilter    string            `yaml:"facetFilter,omitempty" json:"facetFilter,omitempty"`
	GroupFilter    string            `yaml:"groupFilter,omitempty" json:"groupFilter,omitempty"`
	FlagsFilter    int               `yaml:"flagsFilter,omitempty" json:"flagsFilter,omitempty"`
	PartTypeFilter string            `yaml:"partTypeFilter,omitempty" json:"partTypeFilter,omitempty"`
	PartRoleFilter string            `yaml:"partRoleFilter,omitempty" json:"partRoleFilter,omitempty"`
	TitleFilter    string            `yaml:"titleFilter,omitempty" json:"titleFilter,omitempty"`
	Bindings       map[string]string `yaml:"bindings,omitempty" json:"bindings,omitempty"`
	UIDs           []string          `yaml:"uids,omitempty" json:"uids,omitempty"`
	Templates      []TripleTemplate  `yaml:"templates,omitempty" json:"templates,omitempty"`
	Children       []RuleDoc         `yaml:"children,omitempty" json:"children,omitempty"`
	ChildRefs      []string          `yaml:"childRefs,omitempty" json:"childRefs,omitempty"`
}

// Validate checks one rule document node.
func (d RuleDoc) Validate() error {
	err := validation.ValidateStruct(&d,
		validation.Field(&d.Name, validation.Required),
		validation.Field(&d.SourceType, validation.In(
			string(graph.SourceUser), string(graph.SourceItem),
			string(graph.SourcePart), string(graph.SourceClass),
			string(graph.SourceProperty), string(graph.SourceThesaurus))),
	)
	if err != nil {
		return err
	}
	for i, t := range d.Templates {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("template %d: %w", i, err)
		}
	}
	for _, k := range d.UIDs {
		if _, ok := d.Bindings[k]; !ok {
			return fmt.Errorf("uid key %q has no binding", k)
		}
	}
	if d.TitleFilter != "" {
		if _, err := regexp.Compile(d.TitleFilter); err != nil {
			return fmt.Errorf("title filter: %v", err)
		}
	}
	return nil
}

// Validate checks a triple template: subject and predicate present, exactly
// one of object and literal.
func (t TripleTemplate) Validate() error {
	if err := validation.ValidateStruct(&t,
		validation.Field(&t.Subject, validation.Required),
		validation.Field(&t.Predicate, validation.Required),
	); err != nil {
		return err
	}
	if (t.Object == "") == (t.Literal == "") {
		return fmt.Errorf("exactly one of object and literal must be set")
	}
	return nil
}

// LoadYAML reads a rule document in YAML form and compiles it.
func LoadYAML(r io.Reader) (*RuleSet, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("mapping: read rules: %w", err)
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("mapping: decode rules: %v: %w", err, graph.ErrConfiguration)
	}
	return Compile(&doc)
}

// LoadJSON reads a rule document in JSON form and compiles it.
func LoadJSON(r io.Reader) (*RuleSet, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("mapping: decode rules: %v: %w", err, graph.ErrConfiguration)
	}
	return Compile(&doc)
}

// Compile validates a document and flattens its rule trees into an arena.
// Every defect is a load-time graph.ErrConfiguration; evaluation never sees
// a malformed rule.
func Compile(doc *Document) (*RuleSet, error) {
	rs := &RuleSet{}
	byName := map[string]int{}

	var walk func(d *RuleDoc, parent int) (int, error)
	walk = func(d *RuleDoc, parent int) (int, error) {
		if err := d.Validate(); err != nil {
			return 0, fmt.Errorf("mapping: rule %q: %v: %w", d.Name, err, graph.ErrConfiguration)
		}
		if _, dup := byName[d.Name]; dup {
			return 0, fmt.Errorf("mapping: duplicate rule name %q: %w", d.Name, graph.ErrConfiguration)
		}

		idx := len(rs.rules)
		byName[d.Name] = idx
		r := Rule{
			Index:          idx,
			Name:           d.Name,
			SourceType:     graph.SourceType(d.SourceType),
			FacetFilter:    d.FacetFilter,
			GroupFilter:    d.GroupFilter,
			FlagsFilter:    d.FlagsFilter,
			PartTypeFilter: d.PartTypeFilter,
			PartRoleFilter: d.PartRoleFilter,
			TitleFilter:    d.TitleFilter,
			Bindings:       d.Bindings,
			UIDKeys:        slices.Clone(d.UIDs),
			Templates:      slices.Clone(d.Templates),
			Parent:         parent,
		}
		if d.TitleFilter != "" {
			r.titleRe = regexp.MustCompile(d.TitleFilter) // validated above
		}
		rs.rules = append(rs.rules, r)

		for i := range d.Children {
			child, err := walk(&d.Children[i], idx)
			if err != nil {
				return 0, err
			}
			rs.rules[idx].Children = append(rs.rules[idx].Children, child)
		}
		return idx, nil
	}

	for i := range doc.Rules {
		root, err := walk(&doc.Rules[i], -1)
		if err != nil {
			return nil, err
		}
		rs.roots = append(rs.roots, root)
	}

	// Second pass: resolve by-name child references, kept out of Parent
	// chains (a referenced rule may have several referrers).
	collectRefs := func(d *RuleDoc, idx int) error {
		for _, ref := range d.ChildRefs {
			target, ok := byName[ref]
			if !ok {
				return fmt.Errorf("mapping: rule %q: unknown child ref %q: %w",
					d.Name, ref, graph.ErrConfiguration)
			}
			rs.rules[idx].Children = append(rs.rules[idx].Children, target)
		}
		return nil
	}
	var walkRefs func(d *RuleDoc) error
	walkRefs = func(d *RuleDoc) error {
		if err := collectRefs(d, byName[d.Name]); err != nil {
			return err
		}
		for i := range d.Children {
			if err := walkRefs(&d.Children[i]); err != nil {
				return err
			}
		}
		return nil
	}
	for i := range doc.Rules {
		if err := walkRefs(&doc.Rules[i]); err != nil {
			return nil, err
		}
	}

	if err := rs.checkAcyclic(); err != nil {
		return nil, err
	}
	return rs, nil
}

// checkAcyclic rejects cyclic child references with a DFS over the arena.
func (rs *RuleSet) checkAcyclic() error {
	const (
		white = 0 // unvisited
		gray  = 1 // on the current path
		black = 2 // done
	)
	color := make([]int, len(rs.rules))

	var visit func(i int) error
	visit = func(i int) error {
		switch color[i] {
		case gray:
			return fmt.Errorf("mapping: cyclic child reference through rule %q: %w",
				rs.rules[i].Name, graph.ErrConfiguration)
		case black:
			return nil
		}
		color[i] = gray
		for _, c := range rs.rules[i].Children {
			if err := visit(c); err != nil {
				return err
			}
		}
		color[i] = black
		return nil
	}
	for _, root := range rs.roots {
		if err := visit(root); err != nil {
			return err
		}
	}
	return nil
}
