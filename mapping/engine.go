package mapping

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/scriptoria/semgraph/graph"
	"github.com/scriptoria/semgraph/identity"
	"github.com/scriptoria/semgraph/store"
)

// Engine evaluates a rule set against sources and maintains the projected
// triples in the store. One engine is safe for concurrent use; each Map call
// is an independent evaluation.
type Engine struct {
	rules  *RuleSet
	macros *MacroSet
	store  *store.Store
	ids    *identity.Registry
	logger *slog.Logger
}

// NewEngine wires an engine. A nil macro set gets the built-ins.
func NewEngine(rs *RuleSet, macros *MacroSet, s *store.Store, ids *identity.Registry, logger *slog.Logger) *Engine {
	if macros == nil {
		macros = NewMacroSet()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{rules: rs, macros: macros, store: s, ids: ids, logger: logger}
}

// Result summarises one source evaluation.
type Result struct {
	Sid      string          `json:"sid"`
	Asserted int             `json:"asserted"` // assertions produced by templates
	Inserted int             `json:"inserted"` // net new triples
	Pruned   int             `json:"pruned"`   // stale triples removed
	Warnings []graph.Warning `json:"warnings,omitempty"`
}

// assertion is one rendered triple before id resolution.
type assertion struct {
	subject   string
	predicate string
	object    string
	literal   string
	ruleName  string
}

// Map runs the full evaluation for one source: select matching rules in
// declaration order, bind metadata, render templates, resolve ids, upsert
// triples, and prune triples of the same sid that were not re-asserted.
// Metadata and filter come from a source adapter.
func (e *Engine) Map(ctx context.Context, src *graph.Source, meta map[string]string, f Filter) (*Result, error) {
	sid := src.Sid()
	res := &Result{Sid: sid}

	// Metadata accumulates through the whole evaluation; keys are only
	// added or overwritten, last writer wins.
	mc := &MacroContext{Source: src, Meta: meta}
	if mc.Meta == nil {
		mc.Meta = map[string]string{}
	}

	var asserts []assertion
	for _, root := range e.rules.Roots() {
		if err := e.eval(ctx, root, mc, f, sid, &asserts, res); err != nil {
			return nil, err
		}
	}
	res.Asserted = len(asserts)

	// Snapshot what this sid asserted before, for pruning after upsert.
	before, err := e.store.GetTriples(ctx, graph.TripleFilter{Sid: sid})
	if err != nil {
		return nil, err
	}

	kept := make(map[graph.TripleKey]bool, len(asserts))
	for _, a := range asserts {
		t, err := e.resolve(ctx, &a, sid)
		if err != nil {
			return nil, err
		}
		inserted, err := e.store.AddTriple(ctx, t)
		if err != nil {
			return nil, err
		}
		if inserted {
			res.Inserted++
		}
		kept[t.Key()] = true
	}

	// Stale-triple pruning by exact sid: triples previously asserted by
	// this source and not re-asserted now are gone from it.
	for _, old := range before.Items {
		if kept[old.Key()] {
			continue
		}
		deleted, err := e.store.DeleteTriple(ctx, old.ID)
		if err != nil {
			return nil, err
		}
		if deleted {
			res.Pruned++
		}
	}

	e.logger.Debug("mapping: source mapped",
		"sid", sid, "asserted", res.Asserted, "inserted", res.Inserted,
		"pruned", res.Pruned, "warnings", len(res.Warnings))
	return res, nil
}

// eval runs one rule and, when it matches, its children, against the same
// source with the accumulated metadata.
func (e *Engine) eval(ctx context.Context, idx int, mc *MacroContext, f Filter, sid string, asserts *[]assertion, res *Result) error {
	rule := e.rules.Rule(idx)
	if !rule.Matches(f) {
		return nil
	}

	if err := e.bind(ctx, rule, mc, sid, res); err != nil {
		return err
	}

	for _, t := range rule.Templates {
		a, ok := e.renderTemplate(rule, &t, mc, res)
		if ok {
			*asserts = append(*asserts, a)
		}
	}

	for _, child := range rule.Children {
		if err := e.eval(ctx, child, mc, f, sid, asserts, res); err != nil {
			return err
		}
	}
	return nil
}

// bind renders the rule's bindings into the metadata, minting UIDs for the
// keys declared in uids. Binding keys are processed in lexical order so a
// run is deterministic.
func (e *Engine) bind(ctx context.Context, rule *Rule, mc *MacroContext, sid string, res *Result) error {
	if len(rule.Bindings) == 0 {
		return nil
	}
	keys := make([]string, 0, len(rule.Bindings))
	for k := range rule.Bindings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	uid := make(map[string]bool, len(rule.UIDKeys))
	for _, k := range rule.UIDKeys {
		uid[k] = true
	}

	for _, k := range keys {
		v, err := render(rule.Bindings[k], mc, e.macros)
		if err != nil {
			e.warn(rule, res, fmt.Sprintf("binding %q: %v", k, err))
			continue
		}
		if uid[k] {
			minted, _, err := e.ids.AddUID(ctx, v, sid)
			if err != nil {
				return err
			}
			v = minted
		}
		mc.Meta[k] = v
	}
	return nil
}

// renderTemplate renders one triple template. Any macro failure or an empty
// subject/predicate degrades this one assertion to a warning.
func (e *Engine) renderTemplate(rule *Rule, t *TripleTemplate, mc *MacroContext, res *Result) (assertion, bool) {
	a := assertion{ruleName: rule.Name}
	var err error

	if a.subject, err = render(t.Subject, mc, e.macros); err != nil {
		e.warn(rule, res, fmt.Sprintf("subject: %v", err))
		return a, false
	}
	if a.predicate, err = render(t.Predicate, mc, e.macros); err != nil {
		e.warn(rule, res, fmt.Sprintf("predicate: %v", err))
		return a, false
	}
	if a.object, err = render(t.Object, mc, e.macros); err != nil {
		e.warn(rule, res, fmt.Sprintf("object: %v", err))
		return a, false
	}
	if a.literal, err = render(t.Literal, mc, e.macros); err != nil {
		e.warn(rule, res, fmt.Sprintf("literal: %v", err))
		return a, false
	}

	if a.subject == "" || a.predicate == "" {
		e.warn(rule, res, "empty subject or predicate after rendering")
		return a, false
	}
	if t.Object != "" && a.object == "" {
		e.warn(rule, res, "object rendered empty")
		return a, false
	}
	return a, true
}

// resolve turns an assertion's URIs into ids through the identity registry.
func (e *Engine) resolve(ctx context.Context, a *assertion, sid string) (*graph.Triple, error) {
	t := &graph.Triple{Sid: sid, Tag: a.ruleName, ObjectLiteral: a.literal}
	var err error
	if t.SubjectID, err = e.ids.EnsureURI(ctx, a.subject); err != nil {
		return nil, err
	}
	if t.PredicateID, err = e.ids.EnsureURI(ctx, a.predicate); err != nil {
		return nil, err
	}
	if a.object != "" {
		if t.ObjectID, err = e.ids.EnsureURI(ctx, a.object); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (e *Engine) warn(rule *Rule, res *Result, msg string) {
	res.Warnings = append(res.Warnings, graph.Warning{RuleName: rule.Name, Message: msg})
	e.logger.Warn("mapping: assertion skipped", "rule", rule.Name, "reason", msg)
}
