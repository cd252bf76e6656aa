package graph_test

import (
	"testing"

	"github.com/scriptoria/semgraph/graph"
)

func TestPagingAll(t *testing.T) {
	if !(graph.Paging{}).All() {
		t.Fatal("zero paging must mean everything")
	}
	if (graph.Paging{Limit: 10}).All() {
		t.Fatal("limited paging reported All")
	}
}

func TestNewDataPage(t *testing.T) {
	items := []int{1, 2, 3}

	p := graph.NewDataPage(graph.Paging{Offset: 6, Limit: 3}, 10, items)
	if p.PageNumber != 3 || p.PageSize != 3 || p.Total != 10 {
		t.Fatalf("page = %+v", p)
	}

	// Unpaged: one page holding everything.
	p = graph.NewDataPage(graph.Paging{}, 3, items)
	if p.PageNumber != 1 || p.PageSize != 3 {
		t.Fatalf("unpaged = %+v", p)
	}

	// Nil items marshal as an empty list, not null.
	p = graph.NewDataPage[int](graph.Paging{}, 0, nil)
	if p.Items == nil {
		t.Fatal("nil items not normalized")
	}
}

func TestSourceSid(t *testing.T) {
	item := &graph.Item{ID: "42"}
	src := &graph.Source{Item: item}
	if got := src.Sid(); got != "42" {
		t.Fatalf("item sid = %q", got)
	}
	src.Part = &graph.Part{ID: "p1", ItemID: "42"}
	if got := src.Sid(); got != "42/p1" {
		t.Fatalf("part sid = %q", got)
	}
}

func TestTripleKey(t *testing.T) {
	a := graph.Triple{ID: 1, SubjectID: 10, PredicateID: 20, ObjectLiteral: "v", Sid: "1"}
	b := graph.Triple{ID: 2, SubjectID: 10, PredicateID: 20, ObjectLiteral: "v", Sid: "2"}
	if a.Key() != b.Key() {
		t.Fatal("content keys must ignore row id and sid")
	}
	if !a.HasLiteral() {
		t.Fatal("zero ObjectID must mean literal")
	}
	c := graph.Triple{SubjectID: 10, PredicateID: 20, ObjectID: 30}
	if c.HasLiteral() {
		t.Fatal("node object reported as literal")
	}
}

func TestSourceTypeIsValid(t *testing.T) {
	for _, st := range []graph.SourceType{
		graph.SourceUser, graph.SourceItem, graph.SourcePart,
		graph.SourceClass, graph.SourceProperty, graph.SourceThesaurus,
	} {
		if !st.IsValid() {
			t.Fatalf("%q not valid", st)
		}
	}
	if graph.SourceType("bogus").IsValid() {
		t.Fatal("bogus type reported valid")
	}
	if graph.SourceType("").IsValid() {
		t.Fatal("empty type reported valid")
	}
}
