package store_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"testing"

	"golang.org/x/sync/errgroup"

	"github.com/scriptoria/semgraph/dbopen"
	"github.com/scriptoria/semgraph/graph"
	"github.com/scriptoria/semgraph/store"
)

// seedNodes registers URIs and returns their ids keyed by URI.
func seedNodes(t *testing.T, s *store.Store, uris ...string) map[string]int64 {
	t.Helper()
	ctx := context.Background()
	ids := make(map[string]int64, len(uris))
	for _, uri := range uris {
		n := &graph.Node{URI: uri}
		if err := s.AddNode(ctx, n); err != nil {
			t.Fatal(err)
		}
		ids[uri] = n.ID
	}
	return ids
}

func TestAddTripleIdempotent(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	ids := seedNodes(t, s, "x:s", "x:p", "x:o")

	tr := &graph.Triple{SubjectID: ids["x:s"], PredicateID: ids["x:p"], ObjectID: ids["x:o"], Sid: "1"}
	inserted, err := s.AddTriple(ctx, tr)
	if err != nil {
		t.Fatal(err)
	}
	if !inserted || tr.ID == 0 {
		t.Fatalf("first assert: inserted=%v id=%d", inserted, tr.ID)
	}

	again := &graph.Triple{SubjectID: ids["x:s"], PredicateID: ids["x:p"], ObjectID: ids["x:o"], Sid: "1"}
	inserted, err = s.AddTriple(ctx, again)
	if err != nil {
		t.Fatal(err)
	}
	if inserted {
		t.Fatal("re-assert reported an insert")
	}
	if again.ID != tr.ID {
		t.Fatalf("re-assert id = %d, want %d", again.ID, tr.ID)
	}

	// The same content from another source is a distinct triple.
	other := &graph.Triple{SubjectID: ids["x:s"], PredicateID: ids["x:p"], ObjectID: ids["x:o"], Sid: "2"}
	inserted, err = s.AddTriple(ctx, other)
	if err != nil {
		t.Fatal(err)
	}
	if !inserted || other.ID == tr.ID {
		t.Fatalf("other sid: inserted=%v id=%d", inserted, other.ID)
	}
}

func TestLiteralTriple(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	ids := seedNodes(t, s, "x:s", "x:p")

	tr := &graph.Triple{SubjectID: ids["x:s"], PredicateID: ids["x:p"], ObjectLiteral: "1304"}
	if _, err := s.AddTriple(ctx, tr); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetTriple(ctx, tr.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.HasLiteral() || got.ObjectLiteral != "1304" {
		t.Fatalf("triple = %+v", got)
	}
}

func TestDeleteTriplesBySid(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	ids := seedNodes(t, s, "x:s", "x:p")

	for i, sid := range []string{"7", "7/p1", "7/p2", "70"} {
		tr := &graph.Triple{
			SubjectID: ids["x:s"], PredicateID: ids["x:p"],
			ObjectLiteral: fmt.Sprintf("v%d", i), Sid: sid,
		}
		if _, err := s.AddTriple(ctx, tr); err != nil {
			t.Fatal(err)
		}
	}

	// Exact sid deletion leaves the parts and the lookalike alone.
	n, err := s.DeleteTriplesBySid(ctx, "7", false)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("exact delete = %d, want 1", n)
	}

	// Prefix deletion cascades over the item's parts; "70" matches the raw
	// prefix too, which is why callers cascade with "7/" when parts alone are
	// meant.
	n, err = s.DeleteTriplesBySid(ctx, "7/", true)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("prefix delete = %d, want 2", n)
	}

	page, err := s.GetTriples(ctx, graph.TripleFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 1 || page.Items[0].Sid != "70" {
		t.Fatalf("left = %+v", page.Items)
	}
}

func TestGetTriplesFilters(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	ids := seedNodes(t, s, "x:s1", "x:s2", "x:p1", "x:p2", "x:o")

	seed := []graph.Triple{
		{SubjectID: ids["x:s1"], PredicateID: ids["x:p1"], ObjectID: ids["x:o"], Sid: "1", Tag: "r1"},
		{SubjectID: ids["x:s1"], PredicateID: ids["x:p2"], ObjectLiteral: "Francesco Petrarca", Sid: "1", Tag: "r2"},
		{SubjectID: ids["x:s2"], PredicateID: ids["x:p2"], ObjectLiteral: "1304", Sid: "2", Tag: "r2"},
		{SubjectID: ids["x:s2"], PredicateID: ids["x:p2"], ObjectLiteral: "1374", Sid: "2", Tag: "r2"},
	}
	for i := range seed {
		if _, err := s.AddTriple(ctx, &seed[i]); err != nil {
			t.Fatal(err)
		}
	}

	cases := []struct {
		name string
		f    graph.TripleFilter
		want int
	}{
		{"subject", graph.TripleFilter{SubjectID: ids["x:s1"]}, 2},
		{"predicates", graph.TripleFilter{PredicateIDs: []int64{ids["x:p1"], ids["x:p2"]}}, 4},
		{"object", graph.TripleFilter{ObjectID: ids["x:o"]}, 1},
		{"literal substring", graph.TripleFilter{ObjectLiteral: "Petrarca"}, 1},
		{"numeric range", graph.TripleFilter{LiteralMin: "1300", LiteralMax: "1350"}, 1},
		{"numeric open end", graph.TripleFilter{LiteralMin: "1304"}, 2},
		{"regex", graph.TripleFilter{LiteralRegex: "^13[0-9]{2}$"}, 2},
		{"sid", graph.TripleFilter{Sid: "2"}, 2},
		{"tag", graph.TripleFilter{Tag: ptr("r1")}, 1},
		{"combined", graph.TripleFilter{SubjectID: ids["x:s2"], LiteralMin: "1370"}, 1},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			page, err := s.GetTriples(ctx, tt.f)
			if err != nil {
				t.Fatal(err)
			}
			if page.Total != tt.want {
				t.Fatalf("total = %d, want %d", page.Total, tt.want)
			}
		})
	}

	// Non-numeric bounds can never match: empty result, not an error.
	page, err := s.GetTriples(ctx, graph.TripleFilter{LiteralMin: "not-a-number"})
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 0 {
		t.Fatalf("bad bound total = %d, want 0", page.Total)
	}
}

func TestGetTriplesFuzzy(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	ids := seedNodes(t, s, "x:s", "x:p")

	for _, lit := range []string{"Petrarch", "Petrarca", "Boccaccio"} {
		tr := &graph.Triple{SubjectID: ids["x:s"], PredicateID: ids["x:p"], ObjectLiteral: lit}
		if _, err := s.AddTriple(ctx, tr); err != nil {
			t.Fatal(err)
		}
	}

	page, err := s.GetTriples(ctx, graph.TripleFilter{
		ObjectLiteral: "Petrarca", LiteralFuzzy: 0.6,
	})
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 2 {
		t.Fatalf("fuzzy total = %d, want 2 (both spellings)", page.Total)
	}

	// Thresholds outside (0,1] cannot be translated.
	_, err = s.GetTriples(ctx, graph.TripleFilter{ObjectLiteral: "x", LiteralFuzzy: 1.5})
	if !errors.Is(err, graph.ErrTranslation) {
		t.Fatalf("bad threshold err = %v, want ErrTranslation", err)
	}
}

func TestGetTripleGroups(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	ids := seedNodes(t, s, "x:s", "x:props/a", "x:props/b")

	// Two triples through b, one through a; a sorts before b by URI.
	for _, tr := range []*graph.Triple{
		{SubjectID: ids["x:s"], PredicateID: ids["x:props/b"], ObjectLiteral: "1"},
		{SubjectID: ids["x:s"], PredicateID: ids["x:props/b"], ObjectLiteral: "2"},
		{SubjectID: ids["x:s"], PredicateID: ids["x:props/a"], ObjectLiteral: "3"},
	} {
		if _, err := s.AddTriple(ctx, tr); err != nil {
			t.Fatal(err)
		}
	}

	page, err := s.GetTripleGroups(ctx, graph.TripleFilter{SubjectID: ids["x:s"]}, store.GroupSortPredicate)
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 2 || len(page.Items) != 2 {
		t.Fatalf("groups = %+v", page)
	}
	if page.Items[0].PredicateURI != "x:props/a" || page.Items[0].Count != 1 {
		t.Fatalf("first group by uri = %+v", page.Items[0])
	}

	page, err = s.GetTripleGroups(ctx, graph.TripleFilter{SubjectID: ids["x:s"]}, store.GroupSortCount)
	if err != nil {
		t.Fatal(err)
	}
	if page.Items[0].Count != 1 || page.Items[1].Count != 2 {
		t.Fatalf("groups by count = %+v", page.Items)
	}

	_, err = s.GetTripleGroups(ctx, graph.TripleFilter{}, "bogus")
	if !errors.Is(err, graph.ErrTranslation) {
		t.Fatalf("unknown sort err = %v, want ErrTranslation", err)
	}
}

func TestGetTriplesPaging(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	ids := seedNodes(t, s, "x:s", "x:p")

	for i := 0; i < 7; i++ {
		tr := &graph.Triple{SubjectID: ids["x:s"], PredicateID: ids["x:p"], ObjectLiteral: fmt.Sprintf("v%d", i)}
		if _, err := s.AddTriple(ctx, tr); err != nil {
			t.Fatal(err)
		}
	}

	page, err := s.GetTriples(ctx, graph.TripleFilter{Paging: graph.Paging{Offset: 6, Limit: 3}})
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 7 || len(page.Items) != 1 || page.PageNumber != 3 {
		t.Fatalf("page = %+v", page)
	}
}

// Opens a file database exactly like the service does and immediately runs
// the driver-function filters. The pool is pinned to one connection so every
// query is served by the connection created at open time.
func TestRegexAndFuzzyOnFreshDatabase(t *testing.T) {
	db, err := dbopen.Open(filepath.Join(t.TempDir(), "graph.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	db.SetMaxOpenConns(1)

	s, err := store.New(db, store.SQLite(), slog.Default())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	ids := seedNodes(t, s, "x:s", "x:p")
	for _, lit := range []string{"1304", "Petrarch"} {
		tr := &graph.Triple{SubjectID: ids["x:s"], PredicateID: ids["x:p"], ObjectLiteral: lit}
		if _, err := s.AddTriple(ctx, tr); err != nil {
			t.Fatal(err)
		}
	}

	page, err := s.GetTriples(ctx, graph.TripleFilter{LiteralRegex: "^13[0-9]{2}$"})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Items) != 1 || page.Items[0].ObjectLiteral != "1304" {
		t.Fatalf("regex filter items = %+v", page.Items)
	}

	page, err = s.GetTriples(ctx, graph.TripleFilter{ObjectLiteral: "Petrarca", LiteralFuzzy: 0.6})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Items) != 1 || page.Items[0].ObjectLiteral != "Petrarch" {
		t.Fatalf("fuzzy filter items = %+v", page.Items)
	}
}

func TestAddTripleConcurrent(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	ids := seedNodes(t, s, "x:s", "x:p", "x:o")

	var g errgroup.Group
	tripleIDs := make([]int64, 8)
	for i := range tripleIDs {
		g.Go(func() error {
			tr := &graph.Triple{SubjectID: ids["x:s"], PredicateID: ids["x:p"], ObjectID: ids["x:o"], Sid: "1"}
			if _, err := s.AddTriple(ctx, tr); err != nil {
				return err
			}
			tripleIDs[i] = tr.ID
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	for i, id := range tripleIDs {
		if id != tripleIDs[0] {
			t.Fatalf("caller %d got id %d, want %d", i, id, tripleIDs[0])
		}
	}

	page, err := s.GetTriples(ctx, graph.TripleFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 1 {
		t.Fatalf("total = %d, want 1", page.Total)
	}
}

func ptr[T any](v T) *T { return &v }
