// Package codec streams the graph to and from its interchange form: UTF-8
// text, one JSON object per line, all nodes first, then all triples.
//
// Triples travel by URI, never by internal id; an import resolves every URI
// through the identity registry of the receiving store, so two stores can
// exchange graphs whose numeric ids differ completely.
package codec

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/scriptoria/semgraph/graph"
	"github.com/scriptoria/semgraph/identity"
	"github.com/scriptoria/semgraph/store"
)

// DefaultBatchSize is how many decoded objects an import buffers before a
// synchronous flush to the store.
const DefaultBatchSize = 100

// nodeLine is a node's interchange form. ID is informational on export and
// ignored on import.
type nodeLine struct {
	ID         int64  `json:"id,omitempty"`
	URI        string `json:"uri"`
	Label      string `json:"label,omitempty"`
	SourceType string `json:"sourceType,omitempty"`
	Tag        string `json:"tag,omitempty"`
	IsClass    bool   `json:"isClass,omitempty"`
}

// Exporter streams a store's nodes and triples to line-delimited JSON.
type Exporter struct {
	s *store.Store
}

// NewExporter creates an exporter over the store.
func NewExporter(s *store.Store) *Exporter { return &Exporter{s: s} }

// Export writes every node, then every triple, one JSON object per line.
func (e *Exporter) Export(ctx context.Context, w io.Writer) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)

	nodes, err := e.s.GetNodes(ctx, graph.NodeFilter{})
	if err != nil {
		return fmt.Errorf("codec: export nodes: %w", err)
	}
	uriByID := make(map[int64]string, len(nodes.Items))
	for _, n := range nodes.Items {
		uriByID[n.ID] = n.URI
		line := nodeLine{
			ID: n.ID, URI: n.URI, Label: n.Label,
			SourceType: string(n.SourceType), Tag: n.Tag, IsClass: n.IsClass,
		}
		if err := enc.Encode(line); err != nil {
			return fmt.Errorf("codec: encode node %s: %w", n.URI, err)
		}
	}

	triples, err := e.s.GetTriples(ctx, graph.TripleFilter{})
	if err != nil {
		return fmt.Errorf("codec: export triples: %w", err)
	}
	for _, t := range triples.Items {
		line := graph.UriTriple{
			SubjectURI:    uriByID[t.SubjectID],
			PredicateURI:  uriByID[t.PredicateID],
			ObjectLiteral: t.ObjectLiteral,
			Sid:           t.Sid,
			Tag:           t.Tag,
		}
		if t.ObjectID != 0 {
			line.ObjectURI = uriByID[t.ObjectID]
		}
		if err := enc.Encode(line); err != nil {
			return fmt.Errorf("codec: encode triple %d: %w", t.ID, err)
		}
	}
	return bw.Flush()
}

// Stats summarises one import.
type Stats struct {
	Nodes   int `json:"nodes"`
	Triples int `json:"triples"`
}

// Importer streams line-delimited JSON into a store through a bounded
// buffer: every BatchSize objects are flushed synchronously, never dropped.
type Importer struct {
	s      *store.Store
	ids    *identity.Registry
	batch  int
	logger *slog.Logger
}

// NewImporter creates an importer. batchSize <= 0 uses DefaultBatchSize.
func NewImporter(s *store.Store, ids *identity.Registry, batchSize int, logger *slog.Logger) *Importer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{s: s, ids: ids, batch: batchSize, logger: logger}
}

// Import reads one JSON object per line, nodes before triples (triples may
// reference node URIs that must already exist in the stream or the store).
// Ids in the input are ignored; every URI is resolved by the identity
// registry of the receiving store.
func (im *Importer) Import(ctx context.Context, r io.Reader) (*Stats, error) {
	stats := &Stats{}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	buf := make([]json.RawMessage, 0, im.batch)
	flush := func() error {
		for _, raw := range buf {
			if err := im.applyLine(ctx, raw, stats); err != nil {
				return err
			}
		}
		buf = buf[:0]
		return nil
	}

	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		raw := make(json.RawMessage, len(line))
		copy(raw, line)
		buf = append(buf, raw)
		if len(buf) >= im.batch {
			if err := flush(); err != nil {
				return stats, fmt.Errorf("codec: line %d: %w", lineNo, err)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return stats, fmt.Errorf("codec: read: %w", err)
	}
	if err := flush(); err != nil {
		return stats, fmt.Errorf("codec: final flush: %w", err)
	}

	im.logger.Info("codec: import done", "nodes", stats.Nodes, "triples", stats.Triples)
	return stats, nil
}

// applyLine decodes one object, telling nodes and triples apart by shape.
func (im *Importer) applyLine(ctx context.Context, raw json.RawMessage, stats *Stats) error {
	var probe struct {
		URI        string `json:"uri"`
		SubjectURI string `json:"subjectUri"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return fmt.Errorf("decode: %w", err)
	}

	switch {
	case probe.SubjectURI != "":
		var ut graph.UriTriple
		if err := json.Unmarshal(raw, &ut); err != nil {
			return fmt.Errorf("decode triple: %w", err)
		}
		return im.importTriple(ctx, &ut, stats)
	case probe.URI != "":
		var nl nodeLine
		if err := json.Unmarshal(raw, &nl); err != nil {
			return fmt.Errorf("decode node: %w", err)
		}
		st := graph.SourceType(nl.SourceType)
		if st == "" {
			st = graph.SourceUser
		}
		n := graph.Node{
			URI: nl.URI, Label: nl.Label, SourceType: st,
			Tag: nl.Tag, IsClass: nl.IsClass,
		}
		if err := im.s.AddNode(ctx, &n); err != nil {
			return err
		}
		stats.Nodes++
		return nil
	default:
		return fmt.Errorf("object is neither node nor triple")
	}
}

func (im *Importer) importTriple(ctx context.Context, ut *graph.UriTriple, stats *Stats) error {
	t := graph.Triple{ObjectLiteral: ut.ObjectLiteral, Sid: ut.Sid, Tag: ut.Tag}
	var err error
	if t.SubjectID, err = im.ids.EnsureURI(ctx, ut.SubjectURI); err != nil {
		return err
	}
	if t.PredicateID, err = im.ids.EnsureURI(ctx, ut.PredicateURI); err != nil {
		return err
	}
	if ut.ObjectURI != "" {
		if t.ObjectID, err = im.ids.EnsureURI(ctx, ut.ObjectURI); err != nil {
			return err
		}
	}
	if _, err := im.s.AddTriple(ctx, &t); err != nil {
		return err
	}
	stats.Triples++
	return nil
}
