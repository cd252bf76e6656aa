package store

import (
	"database/sql"
	"fmt"
	"log/slog"
)

// Store is the triple store over one relational database. All methods are
// safe for concurrent use; writes rely on the schema's unique constraints
// rather than in-process locks.
type Store struct {
	// DB is the underlying database, exported for collaborating packages
	// (identity registry, codec) that share the same tables.
	DB *sql.DB

	dialect Dialect
	logger  *slog.Logger
}

// New wraps an opened database. It runs the dialect's one-time setup and
// applies the schema; both are idempotent.
func New(db *sql.DB, d Dialect, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := d.Setup(db); err != nil {
		return nil, err
	}
	if _, err := db.Exec(d.Schema()); err != nil {
		return nil, fmt.Errorf("store: apply %s schema: %w", d.Name(), err)
	}
	return &Store{DB: db, dialect: d, logger: logger}, nil
}

// Dialect returns the active backend dialect.
func (s *Store) Dialect() Dialect { return s.dialect }

// Close closes the underlying database.
func (s *Store) Close() error { return s.DB.Close() }
