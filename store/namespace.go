package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/scriptoria/semgraph/graph"
)

// AddNamespace binds prefix to uri. Re-adding an identical binding is a
// no-op; binding either side to a different counterpart fails with
// graph.ErrConflict.
func (s *Store) AddNamespace(ctx context.Context, prefix, uri string) error {
	existing, err := s.LookupNamespaceByPrefix(ctx, prefix)
	if err != nil {
		return err
	}
	if existing != "" {
		if existing == uri {
			return nil
		}
		return fmt.Errorf("store: prefix %q already bound to %q: %w",
			prefix, existing, graph.ErrConflict)
	}
	boundPrefix, err := s.LookupNamespaceByURI(ctx, uri)
	if err != nil {
		return err
	}
	if boundPrefix != "" {
		return fmt.Errorf("store: uri %q already bound to prefix %q: %w",
			uri, boundPrefix, graph.ErrConflict)
	}

	_, err = s.DB.ExecContext(ctx, s.dialect.Rebind(
		`INSERT INTO namespace_lookup (prefix, uri) VALUES (?, ?)`), prefix, uri)
	if err != nil {
		return fmt.Errorf("store: add namespace %s: %w", prefix, err)
	}
	return nil
}

// LookupNamespaceByPrefix returns the URI bound to prefix, or "" when unbound.
func (s *Store) LookupNamespaceByPrefix(ctx context.Context, prefix string) (string, error) {
	var uri string
	err := s.DB.QueryRowContext(ctx, s.dialect.Rebind(
		`SELECT uri FROM namespace_lookup WHERE prefix = ?`), prefix).Scan(&uri)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("store: lookup namespace %s: %w", prefix, err)
	}
	return uri, nil
}

// LookupNamespaceByURI returns the prefix bound to uri, or "" when unbound.
func (s *Store) LookupNamespaceByURI(ctx context.Context, uri string) (string, error) {
	var prefix string
	err := s.DB.QueryRowContext(ctx, s.dialect.Rebind(
		`SELECT prefix FROM namespace_lookup WHERE uri = ?`), uri).Scan(&prefix)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("store: lookup namespace uri %s: %w", uri, err)
	}
	return prefix, nil
}

// DeleteNamespaceByPrefix removes the binding for prefix. Returns false when
// no binding existed.
func (s *Store) DeleteNamespaceByPrefix(ctx context.Context, prefix string) (bool, error) {
	res, err := s.DB.ExecContext(ctx, s.dialect.Rebind(
		`DELETE FROM namespace_lookup WHERE prefix = ?`), prefix)
	if err != nil {
		return false, fmt.Errorf("store: delete namespace %s: %w", prefix, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// DeleteNamespaceByURI removes the binding for uri. Returns false when no
// binding existed. Symmetric with DeleteNamespaceByPrefix.
func (s *Store) DeleteNamespaceByURI(ctx context.Context, uri string) (bool, error) {
	res, err := s.DB.ExecContext(ctx, s.dialect.Rebind(
		`DELETE FROM namespace_lookup WHERE uri = ?`), uri)
	if err != nil {
		return false, fmt.Errorf("store: delete namespace uri %s: %w", uri, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ListNamespaces returns all bindings ordered by prefix.
func (s *Store) ListNamespaces(ctx context.Context) ([]graph.Namespace, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT prefix, uri FROM namespace_lookup ORDER BY prefix`)
	if err != nil {
		return nil, fmt.Errorf("store: list namespaces: %w", err)
	}
	defer rows.Close()

	var out []graph.Namespace
	for rows.Next() {
		var ns graph.Namespace
		if err := rows.Scan(&ns.Prefix, &ns.URI); err != nil {
			return nil, err
		}
		out = append(out, ns)
	}
	return out, rows.Err()
}

// ExpandURI rewrites a prefixed URI ("x:persons/guy") into its full form
// using the current namespace snapshot. URIs without a known prefix are
// returned unchanged.
func (s *Store) ExpandURI(ctx context.Context, uri string) (string, error) {
	prefix, rest, ok := strings.Cut(uri, ":")
	if !ok || strings.HasPrefix(rest, "//") {
		return uri, nil
	}
	full, err := s.LookupNamespaceByPrefix(ctx, prefix)
	if err != nil {
		return "", err
	}
	if full == "" {
		return uri, nil
	}
	return full + rest, nil
}

// CompressURI rewrites a full URI into prefixed form when a namespace with a
// matching URI head is registered, longest match first.
func (s *Store) CompressURI(ctx context.Context, uri string) (string, error) {
	all, err := s.ListNamespaces(ctx)
	if err != nil {
		return "", err
	}
	best := graph.Namespace{}
	for _, ns := range all {
		if strings.HasPrefix(uri, ns.URI) && len(ns.URI) > len(best.URI) {
			best = ns
		}
	}
	if best.Prefix == "" {
		return uri, nil
	}
	return best.Prefix + ":" + uri[len(best.URI):], nil
}
