// Package store is the backend-portable triple store: nodes, properties,
// namespaces and triples over a relational database, with compositional
// filters, grouping and paging that behave identically on every supported
// backend.
//
// Backend differences are confined to the Dialect interface (placeholder
// style, regex and similarity clauses, paging syntax, schema DDL); all query
// assembly is shared. SQL is written with ? placeholders and rebound per
// dialect.
package store

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/scriptoria/semgraph/graph"
)

// Dialect is the small backend-specific surface of the store. One concrete
// implementation exists per supported engine; everything else is shared.
type Dialect interface {
	// Name identifies the backend ("sqlite", "postgres").
	Name() string
	// Schema returns the DDL creating all graph tables and indexes.
	Schema() string
	// Setup performs one-time backend preparation (registering SQL
	// functions, creating extensions). Called once per opened database.
	Setup(db *sql.DB) error
	// Rebind converts a query written with ? placeholders into the
	// backend's placeholder style.
	Rebind(query string) string
	// RegexClause renders "col matches the regex bound to one ? arg".
	RegexClause(col string) string
	// FuzzyClause renders "similarity(col, ?) >= ?" for the backend.
	FuzzyClause(col string) string
	// NumericClause renders a numeric comparison of col against one ? arg,
	// true only when col is all digits; non-numeric values never match.
	NumericClause(col, op string) string
	// PageClause renders the paging suffix for a zero-indexed offset and
	// a positive limit. Never called when paging is disabled.
	PageClause(offset, limit int) string
}

// questionRebind passes ? placeholders through unchanged (sqlite).
func questionRebind(query string) string { return query }

// dollarRebind rewrites ? placeholders to $1..$n (postgres).
func dollarRebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// whereBuilder accumulates AND-ed conditions with their args.
type whereBuilder struct {
	conds []string
	args  []any
}

func (w *whereBuilder) add(cond string, args ...any) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

// clause renders " WHERE ..." or "" when no condition was added.
func (w *whereBuilder) clause() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// page appends the dialect paging suffix unless paging is disabled.
// Limit 0 short-circuits pagination entirely.
func page(d Dialect, p graph.Paging) string {
	if p.All() {
		return ""
	}
	return d.PageClause(p.Offset, p.Limit)
}

// inPlaceholders renders "(?,?,...)" for n values.
func inPlaceholders(n int) string {
	return "(" + strings.TrimSuffix(strings.Repeat("?,", n), ",") + ")"
}

// checkFuzzy validates a similarity threshold before it reaches SQL.
func checkFuzzy(threshold float64) error {
	if threshold < 0 || threshold > 1 {
		return fmt.Errorf("store: fuzzy threshold %v outside [0,1]: %w",
			threshold, graph.ErrTranslation)
	}
	return nil
}
