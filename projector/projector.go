// Package projector is the orchestrator service tying the graph together:
// it owns the store, the identity registry and the mapping engine, projects
// sources into triples, and exposes the paged query surface over HTTP.
//
// Usage:
//
//	p, err := projector.New(cfg, logger)
//	defer p.Close()
//	p.RegisterHTTP(router)
//	res, err := p.Project(ctx, &graph.Source{Item: item})
package projector

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/scriptoria/semgraph/codec"
	"github.com/scriptoria/semgraph/dbopen"
	"github.com/scriptoria/semgraph/graph"
	"github.com/scriptoria/semgraph/idgen"
	"github.com/scriptoria/semgraph/identity"
	"github.com/scriptoria/semgraph/mapping"
	"github.com/scriptoria/semgraph/store"
)

// Config configures a projector instance.
type Config struct {
	// Backend selects the store dialect: "sqlite" (default) or "postgres".
	Backend string
	// DBPath is the sqlite database path.
	DBPath string
	// DSN is the postgres connection string; used when Backend is "postgres".
	DSN string
	// RulesPath points to the mapping rule document (.yaml/.yml or .json).
	RulesPath string
	// BatchSize is the import flush threshold.
	BatchSize int
}

func (c *Config) defaults() {
	if c.Backend == "" {
		c.Backend = "sqlite"
	}
	if c.DBPath == "" {
		c.DBPath = "db/graph.db"
	}
	if c.BatchSize <= 0 {
		c.BatchSize = codec.DefaultBatchSize
	}
}

// Projector is the main graph orchestrator.
type Projector struct {
	store   *store.Store
	ids     *identity.Registry
	engine  *mapping.Engine
	adapter mapping.Adapter
	logger  *slog.Logger
	config  *Config
	runID   idgen.Generator
}

// New creates a Projector: opens the database for the configured backend,
// applies the schema, and loads and validates the mapping rules. A rule
// document defect fails startup.
func New(ctx context.Context, cfg *Config, logger *slog.Logger) (*Projector, error) {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}

	var (
		s   *store.Store
		err error
	)
	switch cfg.Backend {
	case "sqlite":
		db, oerr := dbopen.Open(cfg.DBPath, dbopen.WithMkdirAll())
		if oerr != nil {
			return nil, oerr
		}
		s, err = store.New(db, store.SQLite(), logger)
	case "postgres":
		db, oerr := dbopen.OpenPostgres(ctx, cfg.DSN)
		if oerr != nil {
			return nil, oerr
		}
		s, err = store.New(db, store.Postgres(), logger)
	default:
		return nil, fmt.Errorf("projector: unknown backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	rules, err := loadRules(cfg.RulesPath)
	if err != nil {
		s.Close()
		return nil, err
	}

	ids := identity.New(s)
	return &Projector{
		store:   s,
		ids:     ids,
		engine:  mapping.NewEngine(rules, mapping.NewMacroSet(), s, ids, logger),
		adapter: mapping.ItemAdapter{},
		logger:  logger,
		config:  cfg,
		runID:   idgen.Prefixed("run_", idgen.UUIDv7()),
	}, nil
}

func loadRules(path string) (*mapping.RuleSet, error) {
	if path == "" {
		return mapping.Compile(&mapping.Document{})
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("projector: open rules: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return mapping.LoadYAML(f)
	case ".json":
		return mapping.LoadJSON(f)
	default:
		return nil, fmt.Errorf("projector: rules %s: unsupported format: %w",
			path, graph.ErrConfiguration)
	}
}

// Close shuts the projector down and closes the database.
func (p *Projector) Close() error { return p.store.Close() }

// Store returns the underlying store for direct access (admin, tests).
func (p *Projector) Store() *store.Store { return p.store }

// Identity returns the identity registry.
func (p *Projector) Identity() *identity.Registry { return p.ids }

// Project maps one source into the graph: adapt, select rules, render,
// assert, prune. The returned result carries per-run warnings.
func (p *Projector) Project(ctx context.Context, src *graph.Source) (*mapping.Result, error) {
	run := p.runID()
	meta, filter, err := p.adapter.Adapt(src)
	if err != nil {
		return nil, err
	}
	res, err := p.engine.Map(ctx, src, meta, filter)
	if err != nil {
		return nil, err
	}
	p.logger.Info("projector: source projected",
		"run", run, "sid", res.Sid, "inserted", res.Inserted,
		"pruned", res.Pruned, "warnings", len(res.Warnings))
	return res, nil
}

// DeleteSource removes every triple asserted from sid or any of its child
// sources (prefix cascade, e.g. deleting an item removes its parts' triples).
func (p *Projector) DeleteSource(ctx context.Context, sid string) (int64, error) {
	n, err := p.store.DeleteTriplesBySid(ctx, sid, true)
	if err != nil {
		return 0, err
	}
	p.logger.Info("projector: source deleted", "sid", sid, "triples", n)
	return n, nil
}
