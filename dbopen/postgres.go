package dbopen

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // "pgx" database/sql driver
)

// Backoff steps for transient connectivity failures when opening postgres.
// Schema work only starts once the server answered a ping.
var connectBackoff = []time.Duration{10 * time.Second, 30 * time.Second, 60 * time.Second}

// OpenPostgres opens a PostgreSQL database through the pgx stdlib driver,
// retrying the initial ping with stepped backoff on transient failures.
// Inline schemas queued with WithSchema are executed after the connection
// is verified; sqlite-only options (pragmas, mkdir) are ignored.
func OpenPostgres(ctx context.Context, dsn string, opts ...Option) (*sql.DB, error) {
	cfg := defaults()
	for _, o := range opts {
		o(&cfg)
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("dbopen: open postgres: %w", err)
	}

	if err := pingRetry(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	for _, s := range cfg.schemas {
		if _, err := db.ExecContext(ctx, s); err != nil {
			db.Close()
			return nil, fmt.Errorf("dbopen: exec schema: %w", err)
		}
	}

	return db, nil
}

// EnsureDatabase creates database name on the server addressed by adminDSN
// (a DSN for the maintenance database, usually "postgres") unless it already
// exists. Returns true when the database was created.
func EnsureDatabase(ctx context.Context, adminDSN, name string) (bool, error) {
	admin, err := sql.Open("pgx", adminDSN)
	if err != nil {
		return false, fmt.Errorf("dbopen: open admin: %w", err)
	}
	defer admin.Close()

	if err := pingRetry(ctx, admin); err != nil {
		return false, err
	}

	var one int
	err = admin.QueryRowContext(ctx,
		`SELECT 1 FROM pg_database WHERE datname = $1`, name).Scan(&one)
	if err == nil {
		return false, nil
	}
	if err != sql.ErrNoRows {
		return false, fmt.Errorf("dbopen: check database %s: %w", name, err)
	}

	// CREATE DATABASE cannot be parameterised; the name is an identifier.
	if strings.ContainsAny(name, `";`) {
		return false, fmt.Errorf("dbopen: invalid database name %q", name)
	}
	if _, err := admin.ExecContext(ctx, fmt.Sprintf(`CREATE DATABASE %q`, name)); err != nil {
		return false, fmt.Errorf("dbopen: create database %s: %w", name, err)
	}
	return true, nil
}

func pingRetry(ctx context.Context, db *sql.DB) error {
	var err error
	if err = db.PingContext(ctx); err == nil {
		return nil
	}
	for _, wait := range connectBackoff {
		if serr := sleepCtx(ctx, wait); serr != nil {
			return fmt.Errorf("dbopen: context cancelled during connect retry: %w", serr)
		}
		if err = db.PingContext(ctx); err == nil {
			return nil
		}
	}
	return fmt.Errorf("dbopen: ping: %w", err)
}
