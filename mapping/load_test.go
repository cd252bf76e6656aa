package mapping

import (
	"errors"
	"strings"
	"testing"

	"github.com/scriptoria/semgraph/graph"
)

const rulesYAML = `
rules:
  - name: default
    sourceType: item
    bindings:
      work-uri: "x:works/{item-id}"
    uids: [work-uri]
    templates:
      - subject: "{work-uri}"
        predicate: "rdf:type"
        object: "x:classes/Work"
    children:
      - name: titled
        titleFilter: "^[A-Z]"
        templates:
          - subject: "{work-uri}"
            predicate: "x:props/title"
            literal: "{item-title}"
  - name: shared
    templates:
      - subject: "{work-uri}"
        predicate: "x:props/source"
        literal: "{item-id}"
`

func TestLoadYAML(t *testing.T) {
	rs, err := LoadYAML(strings.NewReader(rulesYAML))
	if err != nil {
		t.Fatal(err)
	}
	if rs.Len() != 3 {
		t.Fatalf("rules = %d, want 3", rs.Len())
	}
	roots := rs.Roots()
	if len(roots) != 2 {
		t.Fatalf("roots = %v", roots)
	}
	def := rs.Rule(roots[0])
	if def.Name != "default" || def.Parent != -1 || len(def.Children) != 1 {
		t.Fatalf("default rule = %+v", def)
	}
	child := rs.Rule(def.Children[0])
	if child.Name != "titled" || child.Parent != def.Index {
		t.Fatalf("child rule = %+v", child)
	}
}

func TestLoadJSON(t *testing.T) {
	doc := `{"rules":[{"name":"r","sourceType":"item","templates":[
		{"subject":"x:s","predicate":"x:p","literal":"v"}]}]}`
	rs, err := LoadJSON(strings.NewReader(doc))
	if err != nil {
		t.Fatal(err)
	}
	if rs.Len() != 1 {
		t.Fatalf("rules = %d, want 1", rs.Len())
	}
}

func TestCompileRejectsDefects(t *testing.T) {
	cases := []struct {
		name string
		doc  Document
	}{
		{"missing name", Document{Rules: []RuleDoc{{}}}},
		{"bad source type", Document{Rules: []RuleDoc{{Name: "r", SourceType: "bogus"}}}},
		{"object and literal", Document{Rules: []RuleDoc{{
			Name: "r",
			Templates: []TripleTemplate{{Subject: "s", Predicate: "p", Object: "o", Literal: "l"}},
		}}}},
		{"neither object nor literal", Document{Rules: []RuleDoc{{
			Name:      "r",
			Templates: []TripleTemplate{{Subject: "s", Predicate: "p"}},
		}}}},
		{"missing subject", Document{Rules: []RuleDoc{{
			Name:      "r",
			Templates: []TripleTemplate{{Predicate: "p", Literal: "l"}},
		}}}},
		{"uid without binding", Document{Rules: []RuleDoc{{Name: "r", UIDs: []string{"k"}}}}},
		{"bad title regex", Document{Rules: []RuleDoc{{Name: "r", TitleFilter: "("}}}},
		{"duplicate names", Document{Rules: []RuleDoc{{Name: "r"}, {Name: "r"}}}},
		{"unknown child ref", Document{Rules: []RuleDoc{{Name: "r", ChildRefs: []string{"ghost"}}}}},
		{"cycle", Document{Rules: []RuleDoc{{
			Name:     "a",
			Children: []RuleDoc{{Name: "b", ChildRefs: []string{"a"}}},
		}}}},
		{"self cycle", Document{Rules: []RuleDoc{{Name: "a", ChildRefs: []string{"a"}}}}},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(&tt.doc)
			if !errors.Is(err, graph.ErrConfiguration) {
				t.Fatalf("err = %v, want ErrConfiguration", err)
			}
		})
	}
}

func TestCompileChildRefsShared(t *testing.T) {
	// Two parents referencing the same named rule is a DAG, not a cycle.
	doc := Document{Rules: []RuleDoc{
		{Name: "shared", Templates: []TripleTemplate{{Subject: "s", Predicate: "p", Literal: "l"}}},
		{Name: "a", ChildRefs: []string{"shared"}},
		{Name: "b", ChildRefs: []string{"shared"}},
	}}
	rs, err := Compile(&doc)
	if err != nil {
		t.Fatal(err)
	}
	if rs.Len() != 3 {
		t.Fatalf("rules = %d, want 3", rs.Len())
	}
	shared := rs.Rule(0)
	a := rs.Rule(1)
	b := rs.Rule(2)
	if len(a.Children) != 1 || a.Children[0] != shared.Index {
		t.Fatalf("a children = %v", a.Children)
	}
	if len(b.Children) != 1 || b.Children[0] != shared.Index {
		t.Fatalf("b children = %v", b.Children)
	}
}
