package mapping

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/scriptoria/semgraph/dbopen"
	"github.com/scriptoria/semgraph/graph"
	"github.com/scriptoria/semgraph/identity"
	"github.com/scriptoria/semgraph/store"
)

func testEngine(t *testing.T, rulesDoc string) (*Engine, *store.Store) {
	t.Helper()
	db := dbopen.OpenMemory(t)
	s, err := store.New(db, store.SQLite(), slog.Default())
	if err != nil {
		t.Fatal(err)
	}
	rs, err := LoadYAML(strings.NewReader(rulesDoc))
	if err != nil {
		t.Fatal(err)
	}
	return NewEngine(rs, nil, s, identity.New(s), slog.Default()), s
}

func mapItem(t *testing.T, e *Engine, item *graph.Item) *Result {
	t.Helper()
	src := &graph.Source{Item: item}
	meta, f, err := ItemAdapter{}.Adapt(src)
	if err != nil {
		t.Fatal(err)
	}
	res, err := e.Map(context.Background(), src, meta, f)
	if err != nil {
		t.Fatal(err)
	}
	return res
}

const workRules = `
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
      - subject: "{work-uri}"
        predicate: "x:props/title"
        literal: "{item-title}"
  - name: texts-only
    sourceType: item
    facetFilter: "text"
    templates:
      - subject: "{work-uri}"
        predicate: "rdf:type"
        object: "x:classes/Text"
`

func TestMapItem(t *testing.T) {
	e, s := testEngine(t, workRules)
	ctx := context.Background()

	res := mapItem(t, e, &graph.Item{ID: "42", Title: "Canzoniere", FacetID: "text"})
	if res.Sid != "42" {
		t.Fatalf("sid = %q", res.Sid)
	}
	if res.Asserted != 3 || res.Inserted != 3 || res.Pruned != 0 {
		t.Fatalf("result = %+v", res)
	}
	if len(res.Warnings) != 0 {
		t.Fatalf("warnings = %v", res.Warnings)
	}

	work, err := s.GetNodeByURI(ctx, "x:works/42")
	if err != nil {
		t.Fatal(err)
	}
	if work == nil {
		t.Fatal("work node not minted")
	}

	// Exactly one rdf:type x:classes/Work triple, tagged with its rule.
	rdfType, _ := s.GetNodeByURI(ctx, "rdf:type")
	workClass, _ := s.GetNodeByURI(ctx, "x:classes/Work")
	page, err := s.GetTriples(ctx, graph.TripleFilter{
		SubjectID:    work.ID,
		PredicateIDs: []int64{rdfType.ID},
		ObjectID:     workClass.ID,
	})
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 1 {
		t.Fatalf("rdf:type Work triples = %d, want exactly 1", page.Total)
	}
	if page.Items[0].Tag != "default" {
		t.Fatalf("tag = %q, want default", page.Items[0].Tag)
	}
}

func TestMapItemFacetFilter(t *testing.T) {
	e, s := testEngine(t, workRules)
	ctx := context.Background()

	// A non-text facet skips the texts-only rule entirely.
	res := mapItem(t, e, &graph.Item{ID: "7", Title: "Ritratto", FacetID: "image"})
	if res.Asserted != 2 {
		t.Fatalf("asserted = %d, want 2", res.Asserted)
	}
	if n, _ := s.GetNodeByURI(ctx, "x:classes/Text"); n != nil {
		t.Fatal("texts-only rule ran for an image facet")
	}
}

func TestMapItemIdempotent(t *testing.T) {
	e, s := testEngine(t, workRules)
	ctx := context.Background()
	item := &graph.Item{ID: "42", Title: "Canzoniere", FacetID: "text"}

	mapItem(t, e, item)
	res := mapItem(t, e, item)
	if res.Inserted != 0 || res.Pruned != 0 {
		t.Fatalf("re-run result = %+v, want zero net change", res)
	}

	page, err := s.GetTriples(ctx, graph.TripleFilter{Sid: "42"})
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 3 {
		t.Fatalf("triples after re-run = %d, want 3", page.Total)
	}
}

func TestMapItemPrunesStale(t *testing.T) {
	e, s := testEngine(t, workRules)
	ctx := context.Background()

	mapItem(t, e, &graph.Item{ID: "42", Title: "Canzoniere", FacetID: "text"})
	res := mapItem(t, e, &graph.Item{ID: "42", Title: "Rerum vulgarium fragmenta", FacetID: "text"})

	// The title literal changed: one new assertion, the stale one pruned.
	if res.Inserted != 1 || res.Pruned != 1 {
		t.Fatalf("result = %+v", res)
	}

	page, err := s.GetTriples(ctx, graph.TripleFilter{Sid: "42", ObjectLiteral: "Canzoniere"})
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 0 {
		t.Fatal("stale title survived")
	}
	page, _ = s.GetTriples(ctx, graph.TripleFilter{Sid: "42", ObjectLiteral: "fragmenta"})
	if page.Total != 1 {
		t.Fatalf("new title triples = %d, want 1", page.Total)
	}
}

func TestMapPrunesOnlyOwnSid(t *testing.T) {
	e, s := testEngine(t, workRules)
	ctx := context.Background()

	mapItem(t, e, &graph.Item{ID: "1", Title: "A", FacetID: "text"})
	mapItem(t, e, &graph.Item{ID: "2", Title: "B", FacetID: "text"})
	// Re-map item 1 with a new title; item 2's triples must be untouched.
	mapItem(t, e, &graph.Item{ID: "1", Title: "A2", FacetID: "text"})

	page, err := s.GetTriples(ctx, graph.TripleFilter{Sid: "2"})
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 3 {
		t.Fatalf("item 2 triples = %d, want 3", page.Total)
	}
}

func TestMapMacroFailureDegradesOneAssertion(t *testing.T) {
	const rules = `
rules:
  - name: r
    sourceType: item
    templates:
      - subject: "x:works/{item-id}"
        predicate: "x:props/initial"
        literal: "{substring:item-title,0,100}"
      - subject: "x:works/{item-id}"
        predicate: "x:props/title"
        literal: "{item-title}"
`
	e, s := testEngine(t, rules)
	ctx := context.Background()

	res := mapItem(t, e, &graph.Item{ID: "42", Title: "Rime"})
	// The out-of-range substring degrades its assertion to a warning; the
	// sibling template still lands.
	if res.Asserted != 1 || res.Inserted != 1 {
		t.Fatalf("result = %+v", res)
	}
	if len(res.Warnings) != 1 || res.Warnings[0].RuleName != "r" {
		t.Fatalf("warnings = %v", res.Warnings)
	}

	page, err := s.GetTriples(ctx, graph.TripleFilter{Sid: "42"})
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 1 || page.Items[0].ObjectLiteral != "Rime" {
		t.Fatalf("triples = %+v", page.Items)
	}
}

func TestMapUIDCollisionAcrossItems(t *testing.T) {
	const rules = `
rules:
  - name: r
    sourceType: item
    bindings:
      work-uri: "x:works/{item-title}"
    uids: [work-uri]
    templates:
      - subject: "{work-uri}"
        predicate: "x:props/source"
        literal: "{item-id}"
`
	e, s := testEngine(t, rules)
	ctx := context.Background()

	// Two distinct items rendering the same URI: the second is suffixed.
	mapItem(t, e, &graph.Item{ID: "1", Title: "Rime"})
	mapItem(t, e, &graph.Item{ID: "2", Title: "Rime"})

	if n, _ := s.GetNodeByURI(ctx, "x:works/Rime"); n == nil {
		t.Fatal("first work missing")
	}
	if n, _ := s.GetNodeByURI(ctx, "x:works/Rime#1"); n == nil {
		t.Fatal("second work not suffixed")
	}

	// Re-running the second item keeps its suffixed identity stable.
	mapItem(t, e, &graph.Item{ID: "2", Title: "Rime"})
	page, err := s.GetNodes(ctx, graph.NodeFilter{UID: "x:works/Rime"})
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 2 {
		t.Fatalf("work nodes = %d, want 2", page.Total)
	}
}

func TestMapPartSource(t *testing.T) {
	const rules = `
rules:
  - name: items
    sourceType: item
    templates:
      - subject: "x:works/{item-id}"
        predicate: "x:props/title"
        literal: "{item-title}"
  - name: parts
    sourceType: part
    partTypeFilter: "datation"
    templates:
      - subject: "x:works/{item-id}"
        predicate: "x:props/date"
        literal: "{hdate:part-date}"
`
	e, s := testEngine(t, rules)
	ctx := context.Background()

	src := &graph.Source{
		Item: &graph.Item{ID: "42", Title: "Canzoniere"},
		Part: &graph.Part{ID: "p1", ItemID: "42", TypeID: "datation"},
	}
	meta, f, err := ItemAdapter{}.Adapt(src)
	if err != nil {
		t.Fatal(err)
	}
	meta["part-date"] = `{"a":{"value":1336},"b":{"value":1374}}`

	res, err := e.Map(context.Background(), src, meta, f)
	if err != nil {
		t.Fatal(err)
	}
	if res.Sid != "42/p1" {
		t.Fatalf("sid = %q, want 42/p1", res.Sid)
	}
	// Only the part rule matches a part source.
	if res.Asserted != 1 {
		t.Fatalf("asserted = %d, want 1", res.Asserted)
	}

	page, err := s.GetTriples(ctx, graph.TripleFilter{Sid: "42/p1"})
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 1 || page.Items[0].ObjectLiteral != "1355" {
		t.Fatalf("part triples = %+v", page.Items)
	}
}

func TestMapGroupMetadata(t *testing.T) {
	const rules = `
rules:
  - name: r
    sourceType: item
    templates:
      - subject: "x:works/{item-id}"
        predicate: "x:props/collection"
        literal: "{group-id@1}"
`
	e, s := testEngine(t, rules)
	ctx := context.Background()

	mapItem(t, e, &graph.Item{ID: "42", Title: "Rime", GroupID: "lyric/tuscan"})

	page, err := s.GetTriples(ctx, graph.TripleFilter{Sid: "42"})
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 1 || page.Items[0].ObjectLiteral != "lyric" {
		t.Fatalf("triples = %+v", page.Items)
	}
}
