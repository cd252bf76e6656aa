package store

import (
	"database/sql"
	"fmt"
)

// postgresDialect backs the store with PostgreSQL through the pgx stdlib
// driver. Fuzzy matching uses the pg_trgm extension's similarity().
type postgresDialect struct{}

// Postgres returns the PostgreSQL dialect.
func Postgres() Dialect { return postgresDialect{} }

func (postgresDialect) Name() string { return "postgres" }

const postgresSchema = `
CREATE TABLE IF NOT EXISTS namespace_lookup (
	prefix TEXT PRIMARY KEY,
	uri    TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS node (
	id          BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
	uri         TEXT NOT NULL UNIQUE,
	label       TEXT NOT NULL DEFAULT '',
	source_type TEXT NOT NULL DEFAULT 'user',
	tag         TEXT NOT NULL DEFAULT '',
	sid         TEXT NOT NULL DEFAULT '',
	is_class    INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_node_sid ON node(sid);
CREATE INDEX IF NOT EXISTS idx_node_label ON node(label);

CREATE TABLE IF NOT EXISTS property (
	id             BIGINT PRIMARY KEY REFERENCES node(id) ON DELETE CASCADE,
	data_type      TEXT NOT NULL DEFAULT '',
	literal_editor TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS triple (
	id    BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
	s_id  BIGINT NOT NULL REFERENCES node(id) ON DELETE CASCADE,
	p_id  BIGINT NOT NULL REFERENCES node(id) ON DELETE CASCADE,
	o_id  BIGINT NOT NULL DEFAULT 0,
	o_lit TEXT NOT NULL DEFAULT '',
	sid   TEXT NOT NULL DEFAULT '',
	tag   TEXT NOT NULL DEFAULT '',
	UNIQUE (s_id, p_id, o_id, o_lit, sid)
);
CREATE INDEX IF NOT EXISTS idx_triple_sid ON triple(sid);
CREATE INDEX IF NOT EXISTS idx_triple_o_id ON triple(o_id);

CREATE TABLE IF NOT EXISTS uid_lookup (
	id         BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
	unsuffixed TEXT NOT NULL,
	scope      TEXT NOT NULL,
	uri        TEXT NOT NULL UNIQUE,
	UNIQUE (unsuffixed, scope)
);
`

func (postgresDialect) Schema() string { return postgresSchema }

func (postgresDialect) Setup(db *sql.DB) error {
	if _, err := db.Exec(`CREATE EXTENSION IF NOT EXISTS pg_trgm`); err != nil {
		return fmt.Errorf("store: create pg_trgm extension: %w", err)
	}
	return nil
}

func (postgresDialect) Rebind(query string) string { return dollarRebind(query) }

func (postgresDialect) RegexClause(col string) string {
	return col + " ~ ?"
}

func (postgresDialect) FuzzyClause(col string) string {
	return "similarity(" + col + ", ?) >= ?"
}

func (postgresDialect) NumericClause(col, op string) string {
	return "(" + col + " ~ '^[0-9]+$' AND (" + col + ")::bigint " + op + " ?)"
}

func (postgresDialect) PageClause(offset, limit int) string {
	return fmt.Sprintf(" OFFSET %d ROWS FETCH NEXT %d ROWS ONLY", offset, limit)
}
