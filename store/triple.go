package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/scriptoria/semgraph/dbopen"
	"github.com/scriptoria/semgraph/graph"
)

const tripleCols = `id, s_id, p_id, o_id, o_lit, sid, tag`

// AddTriple asserts a triple. Re-asserting an identical
// (subject, predicate, object-or-literal) triple from the same source is a
// no-op: the existing row is kept and its id returned. The triple's ID field
// is set on return; the second result reports whether a row was inserted.
func (s *Store) AddTriple(ctx context.Context, t *graph.Triple) (bool, error) {
	var inserted bool
	// One transaction so the id read cannot race a concurrent delete of the
	// row just upserted.
	err := dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, s.dialect.Rebind(`
			INSERT INTO triple (s_id, p_id, o_id, o_lit, sid, tag)
			VALUES (?,?,?,?,?,?)
			ON CONFLICT (s_id, p_id, o_id, o_lit, sid) DO NOTHING`),
			t.SubjectID, t.PredicateID, t.ObjectID, t.ObjectLiteral, t.Sid, t.Tag)
		if err != nil {
			return fmt.Errorf("store: add triple: %w", err)
		}
		n, _ := res.RowsAffected()
		inserted = n > 0

		err = tx.QueryRowContext(ctx, s.dialect.Rebind(`
			SELECT id FROM triple
			WHERE s_id = ? AND p_id = ? AND o_id = ? AND o_lit = ? AND sid = ?`),
			t.SubjectID, t.PredicateID, t.ObjectID, t.ObjectLiteral, t.Sid).Scan(&t.ID)
		if err != nil {
			return fmt.Errorf("store: resolve triple id: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return inserted, nil
}

// GetTriple retrieves a triple by id. Returns nil when not found.
func (s *Store) GetTriple(ctx context.Context, id int64) (*graph.Triple, error) {
	var t graph.Triple
	err := s.DB.QueryRowContext(ctx, s.dialect.Rebind(
		`SELECT `+tripleCols+` FROM triple WHERE id = ?`), id).Scan(
		&t.ID, &t.SubjectID, &t.PredicateID, &t.ObjectID, &t.ObjectLiteral, &t.Sid, &t.Tag)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get triple %d: %w", id, err)
	}
	return &t, nil
}

// DeleteTriple removes a triple by id. Deleting a missing id is a no-op
// returning false.
func (s *Store) DeleteTriple(ctx context.Context, id int64) (bool, error) {
	res, err := s.DB.ExecContext(ctx, s.dialect.Rebind(
		`DELETE FROM triple WHERE id = ?`), id)
	if err != nil {
		return false, fmt.Errorf("store: delete triple %d: %w", id, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// DeleteTriplesBySid removes all triples whose sid matches exactly, or by
// prefix when asPrefix is set (source cascade). Returns the number deleted.
func (s *Store) DeleteTriplesBySid(ctx context.Context, sid string, asPrefix bool) (int64, error) {
	query := `DELETE FROM triple WHERE sid = ?`
	arg := any(sid)
	if asPrefix {
		query = `DELETE FROM triple WHERE sid LIKE ?`
		arg = sid + "%"
	}
	res, err := dbopen.Exec(ctx, s.DB, s.dialect.Rebind(query), arg)
	if err != nil {
		return 0, fmt.Errorf("store: delete triples by sid %s: %w", sid, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// buildTripleWhere translates the abstract filter into backend SQL. prefix
// qualifies the triple table's columns ("t." in joined queries).
func (s *Store) buildTripleWhere(f graph.TripleFilter, prefix string) (*whereBuilder, error) {
	w := &whereBuilder{}
	col := func(c string) string { return prefix + c }

	if f.SubjectID != 0 {
		w.add(col("s_id")+` = ?`, f.SubjectID)
	}
	if len(f.PredicateIDs) > 0 {
		args := make([]any, 0, len(f.PredicateIDs))
		for _, id := range f.PredicateIDs {
			args = append(args, id)
		}
		w.add(col("p_id")+` IN `+inPlaceholders(len(f.PredicateIDs)), args...)
	}
	if f.ObjectID != 0 {
		w.add(col("o_id")+` = ?`, f.ObjectID)
	}
	switch {
	case f.LiteralFuzzy > 0:
		if err := checkFuzzy(f.LiteralFuzzy); err != nil {
			return nil, err
		}
		w.add(s.dialect.FuzzyClause(col("o_lit")), f.ObjectLiteral, f.LiteralFuzzy)
	case f.ObjectLiteral != "":
		w.add(col("o_lit")+` LIKE ?`, "%"+f.ObjectLiteral+"%")
	}
	if f.LiteralRegex != "" {
		w.add(s.dialect.RegexClause(col("o_lit")), f.LiteralRegex)
	}
	if f.LiteralMin != "" {
		cond, args := numericCond(s.dialect, col("o_lit"), ">=", f.LiteralMin)
		w.add(cond, args...)
	}
	if f.LiteralMax != "" {
		cond, args := numericCond(s.dialect, col("o_lit"), "<=", f.LiteralMax)
		w.add(cond, args...)
	}
	if f.Sid != "" {
		if f.IsSidPrefix {
			w.add(col("sid")+` LIKE ?`, f.Sid+"%")
		} else {
			w.add(col("sid")+` = ?`, f.Sid)
		}
	}
	if f.Tag != nil {
		w.add(col("tag")+` = ?`, *f.Tag)
	}
	return w, nil
}

// numericCond renders a numeric comparison. A non-numeric bound can never
// match (the column is compared only when all digits), so it degrades to a
// constant false rather than an error.
func numericCond(d Dialect, col, op, bound string) (string, []any) {
	v, err := strconv.ParseInt(bound, 10, 64)
	if err != nil {
		return "1 = 0", nil
	}
	return d.NumericClause(col, op), []any{v}
}

// GetTriples returns one page of triples matching the filter, ordered by id.
func (s *Store) GetTriples(ctx context.Context, f graph.TripleFilter) (graph.DataPage[graph.Triple], error) {
	var zero graph.DataPage[graph.Triple]
	w, err := s.buildTripleWhere(f, "")
	if err != nil {
		return zero, err
	}

	var total int
	err = s.DB.QueryRowContext(ctx, s.dialect.Rebind(
		`SELECT COUNT(*) FROM triple`+w.clause()), w.args...).Scan(&total)
	if err != nil {
		return zero, fmt.Errorf("store: count triples: %w", err)
	}

	query := s.dialect.Rebind(`SELECT `+tripleCols+` FROM triple`+w.clause()+
		` ORDER BY id`) + page(s.dialect, f.Paging)
	rows, err := s.DB.QueryContext(ctx, query, w.args...)
	if err != nil {
		return zero, fmt.Errorf("store: get triples: %w", err)
	}
	defer rows.Close()

	var items []graph.Triple
	for rows.Next() {
		var t graph.Triple
		if err := rows.Scan(&t.ID, &t.SubjectID, &t.PredicateID, &t.ObjectID,
			&t.ObjectLiteral, &t.Sid, &t.Tag); err != nil {
			return zero, fmt.Errorf("store: scan triple: %w", err)
		}
		items = append(items, t)
	}
	if err := rows.Err(); err != nil {
		return zero, err
	}
	return graph.NewDataPage(f.Paging, total, items), nil
}

// Triple group sort fields.
const (
	GroupSortPredicate = "p" // predicate URI ascending
	GroupSortCount     = "c" // group size ascending
)

// GetTripleGroups aggregates the filtered triples into per-predicate groups
// for exploratory browsing. Groups are ordered by the requested sort field
// ascending, ties broken by the group's smallest triple id ascending.
// Limit 0 returns every group unpaged.
func (s *Store) GetTripleGroups(ctx context.Context, f graph.TripleFilter, sort string) (graph.DataPage[graph.TripleGroup], error) {
	var zero graph.DataPage[graph.TripleGroup]

	var key string
	switch sort {
	case GroupSortPredicate, "":
		key = "n.uri"
	case GroupSortCount:
		key = "cnt"
	default:
		return zero, fmt.Errorf("store: unknown group sort %q: %w", sort, graph.ErrTranslation)
	}

	w, err := s.buildTripleWhere(f, "t.")
	if err != nil {
		return zero, err
	}

	var total int
	err = s.DB.QueryRowContext(ctx, s.dialect.Rebind(
		`SELECT COUNT(*) FROM (SELECT t.p_id FROM triple t`+w.clause()+
			` GROUP BY t.p_id) AS g`), w.args...).Scan(&total)
	if err != nil {
		return zero, fmt.Errorf("store: count triple groups: %w", err)
	}

	query := s.dialect.Rebind(`
		SELECT t.p_id, n.uri, COUNT(*) AS cnt, MIN(t.id) AS min_id
		FROM triple t JOIN node n ON n.id = t.p_id`+w.clause()+`
		GROUP BY t.p_id, n.uri
		ORDER BY `+key+` ASC, min_id ASC`) + page(s.dialect, f.Paging)
	rows, err := s.DB.QueryContext(ctx, query, w.args...)
	if err != nil {
		return zero, fmt.Errorf("store: get triple groups: %w", err)
	}
	defer rows.Close()

	var items []graph.TripleGroup
	for rows.Next() {
		var g graph.TripleGroup
		var minID int64
		if err := rows.Scan(&g.PredicateID, &g.PredicateURI, &g.Count, &minID); err != nil {
			return zero, fmt.Errorf("store: scan triple group: %w", err)
		}
		items = append(items, g)
	}
	if err := rows.Err(); err != nil {
		return zero, err
	}
	return graph.NewDataPage(f.Paging, total, items), nil
}
