package store

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"regexp"
	"strings"

	"modernc.org/sqlite"
)

// sqliteDialect backs the store with SQLite (modernc.org/sqlite driver).
// Regex matching and trigram-style similarity are not built into SQLite, so
// both are registered as Go scalar functions on the driver.
type sqliteDialect struct{}

// SQLite returns the SQLite dialect.
func SQLite() Dialect { return sqliteDialect{} }

func (sqliteDialect) Name() string { return "sqlite" }

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS namespace_lookup (
	prefix TEXT PRIMARY KEY,
	uri    TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS node (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
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
	id             INTEGER PRIMARY KEY REFERENCES node(id) ON DELETE CASCADE,
	data_type      TEXT NOT NULL DEFAULT '',
	literal_editor TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS triple (
	id    INTEGER PRIMARY KEY AUTOINCREMENT,
	s_id  INTEGER NOT NULL REFERENCES node(id) ON DELETE CASCADE,
	p_id  INTEGER NOT NULL REFERENCES node(id) ON DELETE CASCADE,
	o_id  INTEGER NOT NULL DEFAULT 0,
	o_lit TEXT NOT NULL DEFAULT '',
	sid   TEXT NOT NULL DEFAULT '',
	tag   TEXT NOT NULL DEFAULT '',
	UNIQUE (s_id, p_id, o_id, o_lit, sid)
);
CREATE INDEX IF NOT EXISTS idx_triple_sid ON triple(sid);
CREATE INDEX IF NOT EXISTS idx_triple_o_id ON triple(o_id);

CREATE TABLE IF NOT EXISTS uid_lookup (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	unsuffixed TEXT NOT NULL,
	scope      TEXT NOT NULL,
	uri        TEXT NOT NULL UNIQUE,
	UNIQUE (unsuffixed, scope)
);
`

func (sqliteDialect) Schema() string { return sqliteSchema }

func (sqliteDialect) Setup(db *sql.DB) error { return nil }

// The driver binds registered functions only to connections created after
// registration, and the pool's first connection is created when the database
// is opened. Registering at package init keeps REGEXP and SIMILARITY ahead
// of any open.
func init() {
	if err := registerScalarFuncs(); err != nil {
		panic(fmt.Errorf("store: register sqlite functions: %w", err))
	}
}

// registerScalarFuncs adds REGEXP and SIMILARITY to the sqlite driver.
// Registration is driver-global.
func registerScalarFuncs() error {
	// X REGEXP Y desugars to regexp(Y, X): pattern first, value second.
	err := sqlite.RegisterDeterministicScalarFunction("regexp", 2,
		func(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
			pattern, ok1 := args[0].(string)
			value, ok2 := args[1].(string)
			if !ok1 || !ok2 {
				return int64(0), nil
			}
			re, err := regexp.Compile(pattern)
			if err != nil {
				return nil, fmt.Errorf("regexp(%q): %w", pattern, err)
			}
			if re.MatchString(value) {
				return int64(1), nil
			}
			return int64(0), nil
		})
	if err != nil {
		return err
	}

	return sqlite.RegisterDeterministicScalarFunction("similarity", 2,
		func(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
			a, ok1 := args[0].(string)
			b, ok2 := args[1].(string)
			if !ok1 || !ok2 {
				return float64(0), nil
			}
			return diceBigram(a, b), nil
		})
}

// diceBigram is the Sørensen–Dice coefficient over character bigrams,
// case-insensitive. Returns 1 for identical strings, 0 for disjoint ones.
func diceBigram(a, b string) float64 {
	a = strings.ToLower(a)
	b = strings.ToLower(b)
	if a == b {
		return 1
	}
	ra := []rune(a)
	rb := []rune(b)
	if len(ra) < 2 || len(rb) < 2 {
		return 0
	}
	grams := make(map[string]int, len(ra)-1)
	for i := 0; i < len(ra)-1; i++ {
		grams[string(ra[i:i+2])]++
	}
	matches := 0
	for i := 0; i < len(rb)-1; i++ {
		g := string(rb[i : i+2])
		if grams[g] > 0 {
			grams[g]--
			matches++
		}
	}
	return 2 * float64(matches) / float64(len(ra)-1+len(rb)-1)
}

func (sqliteDialect) Rebind(query string) string { return questionRebind(query) }

func (sqliteDialect) RegexClause(col string) string {
	return col + " REGEXP ?"
}

func (sqliteDialect) FuzzyClause(col string) string {
	return "similarity(" + col + ", ?) >= ?"
}

func (sqliteDialect) NumericClause(col, op string) string {
	// GLOB filters to all-digits values so the CAST never sees garbage.
	return "(" + col + " <> '' AND " + col + " NOT GLOB '*[^0-9]*' AND CAST(" +
		col + " AS INTEGER) " + op + " ?)"
}

func (sqliteDialect) PageClause(offset, limit int) string {
	return fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)
}
