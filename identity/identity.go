// Package identity is the node/URI identity registry: it mints stable
// integer ids for URIs and resolves templated UIDs to unique, possibly
// suffixed URIs.
//
// Correctness under concurrent writers rests on the database's unique
// indexes (node.uri, uid_lookup.uri, uid_lookup(unsuffixed, scope)), not on
// in-process locks: every mint is an atomic insert-or-retry.
package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/scriptoria/semgraph/dbopen"
	"github.com/scriptoria/semgraph/graph"
	"github.com/scriptoria/semgraph/store"
)

// maxUIDAttempts bounds the suffix retry loop of AddUID. Past the cap the
// request fails with graph.ErrCollisionExhausted.
const maxUIDAttempts = 1000

// Registry mints and resolves node identities on top of a store.
type Registry struct {
	s *store.Store
}

// New creates a registry sharing the store's database.
func New(s *store.Store) *Registry { return &Registry{s: s} }

// EnsureURI returns the id of uri, minting a new node id when the URI was
// never seen. Ids are append-only: an existing URI keeps its id forever.
func (r *Registry) EnsureURI(ctx context.Context, uri string) (int64, error) {
	if uri == "" {
		return 0, fmt.Errorf("identity: empty uri")
	}
	d := r.s.Dialect()
	_, err := dbopen.Exec(ctx, r.s.DB, d.Rebind(
		`INSERT INTO node (uri) VALUES (?) ON CONFLICT (uri) DO NOTHING`), uri)
	if err != nil {
		return 0, fmt.Errorf("identity: ensure uri %s: %w", uri, err)
	}
	var id int64
	err = r.s.DB.QueryRowContext(ctx, d.Rebind(
		`SELECT id FROM node WHERE uri = ?`), uri).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("identity: resolve uri %s: %w", uri, err)
	}
	return id, nil
}

// AddUID resolves a rendered URI request to a unique URI, scoped by scope
// (typically the requesting source's sid). Three outcomes:
//
//   - the URI is free: used as-is, wasNew = true;
//   - the same (uri, scope) pair asked before: the previously assigned
//     (possibly suffixed) URI is returned again, wasNew = false;
//   - the URI clashes with a different scope's registration or an existing
//     node: a numeric suffix (#1, #2, ...) is appended until free,
//     wasNew = true.
//
// Template placeholders are resolved by the caller before the request; uri
// is the rendered form.
func (r *Registry) AddUID(ctx context.Context, uri, scope string) (string, bool, error) {
	if uri == "" {
		return "", false, fmt.Errorf("identity: empty uid request")
	}
	d := r.s.Dialect()

	// Idempotent reuse: the scoped pair may already own a URI.
	assigned, err := r.lookupUID(ctx, uri, scope)
	if err != nil {
		return "", false, err
	}
	if assigned != "" {
		return assigned, false, nil
	}

	for n := 0; n < maxUIDAttempts; n++ {
		candidate := uri
		if n > 0 {
			candidate = fmt.Sprintf("%s#%d", uri, n)
		}

		// A URI already registered as a node belongs to someone else.
		taken, err := r.uriExists(ctx, candidate)
		if err != nil {
			return "", false, err
		}
		if taken {
			continue
		}

		res, err := dbopen.Exec(ctx, r.s.DB, d.Rebind(`
			INSERT INTO uid_lookup (unsuffixed, scope, uri)
			VALUES (?,?,?) ON CONFLICT DO NOTHING`), uri, scope, candidate)
		if err != nil {
			return "", false, fmt.Errorf("identity: add uid %s: %w", candidate, err)
		}
		if rows, _ := res.RowsAffected(); rows > 0 {
			return candidate, true, nil
		}

		// Lost a race: either our scoped pair was inserted concurrently
		// (reuse it) or another scope grabbed the candidate (next suffix).
		assigned, err := r.lookupUID(ctx, uri, scope)
		if err != nil {
			return "", false, err
		}
		if assigned != "" {
			return assigned, false, nil
		}
	}
	return "", false, fmt.Errorf("identity: uid %s: %w", uri, graph.ErrCollisionExhausted)
}

func (r *Registry) lookupUID(ctx context.Context, unsuffixed, scope string) (string, error) {
	d := r.s.Dialect()
	var assigned string
	err := r.s.DB.QueryRowContext(ctx, d.Rebind(
		`SELECT uri FROM uid_lookup WHERE unsuffixed = ? AND scope = ?`),
		unsuffixed, scope).Scan(&assigned)
	if err != nil && !isNoRows(err) {
		return "", fmt.Errorf("identity: lookup uid %s: %w", unsuffixed, err)
	}
	return assigned, nil
}

func (r *Registry) uriExists(ctx context.Context, uri string) (bool, error) {
	d := r.s.Dialect()
	var one int
	err := r.s.DB.QueryRowContext(ctx, d.Rebind(
		`SELECT 1 FROM node WHERE uri = ?`), uri).Scan(&one)
	if err != nil {
		if isNoRows(err) {
			return false, nil
		}
		return false, fmt.Errorf("identity: check uri %s: %w", uri, err)
	}
	return true, nil
}

func isNoRows(err error) bool { return errors.Is(err, sql.ErrNoRows) }

// GetNode retrieves a node by id. Returns nil when not found.
func (r *Registry) GetNode(ctx context.Context, id int64) (*graph.Node, error) {
	return r.s.GetNode(ctx, id)
}

// GetNodeByURI retrieves a node by URI. Returns nil when not found.
func (r *Registry) GetNodeByURI(ctx context.Context, uri string) (*graph.Node, error) {
	return r.s.GetNodeByURI(ctx, uri)
}

// GetNodes retrieves several nodes by id. The result preserves positions:
// a missing id yields a nil entry, never a shorter list.
func (r *Registry) GetNodes(ctx context.Context, ids []int64) ([]*graph.Node, error) {
	out := make([]*graph.Node, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	d := r.s.Dialect()

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	rows, err := r.s.DB.QueryContext(ctx, d.Rebind(
		`SELECT id, uri, label, source_type, tag, sid, is_class FROM node
		 WHERE id IN (`+strings.Join(placeholders, ",")+`)`), args...)
	if err != nil {
		return nil, fmt.Errorf("identity: get nodes: %w", err)
	}
	defer rows.Close()

	byID := make(map[int64]*graph.Node, len(ids))
	for rows.Next() {
		var n graph.Node
		var isClass int
		var st string
		if err := rows.Scan(&n.ID, &n.URI, &n.Label, &st, &n.Tag, &n.Sid, &isClass); err != nil {
			return nil, fmt.Errorf("identity: scan node: %w", err)
		}
		n.SourceType = graph.SourceType(st)
		n.IsClass = isClass != 0
		byID[n.ID] = &n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, id := range ids {
		out[i] = byID[id]
	}
	return out, nil
}
