package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/scriptoria/semgraph/graph"
)

const nodeCols = `id, uri, label, source_type, tag, sid, is_class`

// AddNode inserts or updates a node keyed by its URI. The node's ID field is
// set on return; an existing node keeps its id forever.
func (s *Store) AddNode(ctx context.Context, n *graph.Node) error {
	isClass := 0
	if n.IsClass {
		isClass = 1
	}
	err := s.DB.QueryRowContext(ctx, s.dialect.Rebind(`
		INSERT INTO node (uri, label, source_type, tag, sid, is_class)
		VALUES (?,?,?,?,?,?)
		ON CONFLICT (uri) DO UPDATE SET
			label = excluded.label, source_type = excluded.source_type,
			tag = excluded.tag, sid = excluded.sid, is_class = excluded.is_class
		RETURNING id`),
		n.URI, n.Label, string(n.SourceType), n.Tag, n.Sid, isClass,
	).Scan(&n.ID)
	if err != nil {
		return fmt.Errorf("store: add node %s: %w", n.URI, err)
	}
	return nil
}

// GetNode retrieves a node by id. Returns nil when not found.
func (s *Store) GetNode(ctx context.Context, id int64) (*graph.Node, error) {
	return s.scanOneNode(s.DB.QueryRowContext(ctx, s.dialect.Rebind(
		`SELECT `+nodeCols+` FROM node WHERE id = ?`), id))
}

// GetNodeByURI retrieves a node by its URI. Returns nil when not found.
func (s *Store) GetNodeByURI(ctx context.Context, uri string) (*graph.Node, error) {
	return s.scanOneNode(s.DB.QueryRowContext(ctx, s.dialect.Rebind(
		`SELECT `+nodeCols+` FROM node WHERE uri = ?`), uri))
}

// DeleteNode removes a node and, via foreign keys, every triple using it.
// Deleting a missing id is a no-op returning false.
func (s *Store) DeleteNode(ctx context.Context, id int64) (bool, error) {
	res, err := s.DB.ExecContext(ctx, s.dialect.Rebind(
		`DELETE FROM node WHERE id = ?`), id)
	if err != nil {
		return false, fmt.Errorf("store: delete node %d: %w", id, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// GetNodes returns one page of nodes matching the filter, ordered by label
// then id.
func (s *Store) GetNodes(ctx context.Context, f graph.NodeFilter) (graph.DataPage[graph.Node], error) {
	var zero graph.DataPage[graph.Node]
	w := &whereBuilder{}
	if f.UID != "" {
		w.add(`uri LIKE ?`, "%"+f.UID+"%")
	}
	if f.Label != "" {
		w.add(`label LIKE ?`, "%"+f.Label+"%")
	}
	if f.SourceType != "" {
		w.add(`source_type = ?`, string(f.SourceType))
	}
	if f.IsClass != nil {
		v := 0
		if *f.IsClass {
			v = 1
		}
		w.add(`is_class = ?`, v)
	}
	if f.Tag != nil {
		w.add(`tag = ?`, *f.Tag)
	}
	if f.Sid != "" {
		if f.IsSidPrefix {
			w.add(`sid LIKE ?`, f.Sid+"%")
		} else {
			w.add(`sid = ?`, f.Sid)
		}
	}
	if len(f.ClassIDs) > 0 {
		args := make([]any, 0, len(f.ClassIDs))
		for _, id := range f.ClassIDs {
			args = append(args, id)
		}
		w.add(`EXISTS (SELECT 1 FROM triple t JOIN node p ON p.id = t.p_id
			WHERE t.s_id = node.id AND p.uri = 'rdf:type'
			AND t.o_id IN `+inPlaceholders(len(f.ClassIDs))+`)`, args...)
	}

	var total int
	err := s.DB.QueryRowContext(ctx, s.dialect.Rebind(
		`SELECT COUNT(*) FROM node`+w.clause()), w.args...).Scan(&total)
	if err != nil {
		return zero, fmt.Errorf("store: count nodes: %w", err)
	}

	query := s.dialect.Rebind(`SELECT `+nodeCols+` FROM node`+w.clause()+
		` ORDER BY label, id`) + page(s.dialect, f.Paging)
	rows, err := s.DB.QueryContext(ctx, query, w.args...)
	if err != nil {
		return zero, fmt.Errorf("store: get nodes: %w", err)
	}
	defer rows.Close()

	items, err := scanNodes(rows)
	if err != nil {
		return zero, err
	}
	return graph.NewDataPage(f.Paging, total, items), nil
}

// GetLinkedNodes returns one page of nodes linked to the filter's node,
// optionally through a given predicate. With IsObject set the given node is
// the object, so the linked nodes are subjects; otherwise they are objects.
func (s *Store) GetLinkedNodes(ctx context.Context, f graph.LinkedNodeFilter) (graph.DataPage[graph.Node], error) {
	var zero graph.DataPage[graph.Node]

	join := `JOIN triple t ON t.o_id = n.id`
	anchor := `t.s_id = ?`
	if f.IsObject {
		join = `JOIN triple t ON t.s_id = n.id`
		anchor = `t.o_id = ?`
	}
	w := &whereBuilder{}
	w.add(anchor, f.OtherNodeID)
	if f.PredicateID != 0 {
		w.add(`t.p_id = ?`, f.PredicateID)
	}

	var total int
	err := s.DB.QueryRowContext(ctx, s.dialect.Rebind(
		`SELECT COUNT(DISTINCT n.id) FROM node n `+join+w.clause()), w.args...).Scan(&total)
	if err != nil {
		return zero, fmt.Errorf("store: count linked nodes: %w", err)
	}

	query := s.dialect.Rebind(`SELECT DISTINCT n.id, n.uri, n.label, n.source_type,
		n.tag, n.sid, n.is_class FROM node n `+join+w.clause()+
		` ORDER BY n.label, n.id`) + page(s.dialect, f.Paging)
	rows, err := s.DB.QueryContext(ctx, query, w.args...)
	if err != nil {
		return zero, fmt.Errorf("store: get linked nodes: %w", err)
	}
	defer rows.Close()

	items, err := scanNodes(rows)
	if err != nil {
		return zero, err
	}
	return graph.NewDataPage(f.Paging, total, items), nil
}

// AddProperty upserts the property row for an existing node and updates the
// node fields themselves.
func (s *Store) AddProperty(ctx context.Context, p *graph.Property) error {
	if err := s.AddNode(ctx, &p.Node); err != nil {
		return err
	}
	_, err := s.DB.ExecContext(ctx, s.dialect.Rebind(`
		INSERT INTO property (id, data_type, literal_editor) VALUES (?,?,?)
		ON CONFLICT (id) DO UPDATE SET
			data_type = excluded.data_type, literal_editor = excluded.literal_editor`),
		p.ID, p.DataType, p.LiteralEditor)
	if err != nil {
		return fmt.Errorf("store: add property %s: %w", p.URI, err)
	}
	return nil
}

// GetProperty retrieves a property by node id. Returns nil when the node
// does not exist or carries no property row.
func (s *Store) GetProperty(ctx context.Context, id int64) (*graph.Property, error) {
	var p graph.Property
	var isClass int
	var st string
	err := s.DB.QueryRowContext(ctx, s.dialect.Rebind(`
		SELECT n.id, n.uri, n.label, n.source_type, n.tag, n.sid, n.is_class,
		       p.data_type, p.literal_editor
		FROM property p JOIN node n ON n.id = p.id WHERE p.id = ?`), id).Scan(
		&p.ID, &p.URI, &p.Label, &st, &p.Tag, &p.Sid, &isClass,
		&p.DataType, &p.LiteralEditor)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get property %d: %w", id, err)
	}
	p.SourceType = graph.SourceType(st)
	p.IsClass = isClass != 0
	return &p, nil
}

// DeleteProperty removes the property row, leaving the node itself intact.
func (s *Store) DeleteProperty(ctx context.Context, id int64) (bool, error) {
	res, err := s.DB.ExecContext(ctx, s.dialect.Rebind(
		`DELETE FROM property WHERE id = ?`), id)
	if err != nil {
		return false, fmt.Errorf("store: delete property %d: %w", id, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *Store) scanOneNode(row *sql.Row) (*graph.Node, error) {
	var n graph.Node
	var isClass int
	var st string
	err := row.Scan(&n.ID, &n.URI, &n.Label, &st, &n.Tag, &n.Sid, &isClass)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan node: %w", err)
	}
	n.SourceType = graph.SourceType(st)
	n.IsClass = isClass != 0
	return &n, nil
}

func scanNodes(rows *sql.Rows) ([]graph.Node, error) {
	var out []graph.Node
	for rows.Next() {
		var n graph.Node
		var isClass int
		var st string
		if err := rows.Scan(&n.ID, &n.URI, &n.Label, &st, &n.Tag, &n.Sid, &isClass); err != nil {
			return nil, fmt.Errorf("store: scan node: %w", err)
		}
		n.SourceType = graph.SourceType(st)
		n.IsClass = isClass != 0
		out = append(out, n)
	}
	return out, rows.Err()
}
