// Package graph defines the domain types of the semantic graph: nodes,
// triples, namespaces, sources and the filter/paging surface shared by the
// store and the HTTP layer.
//
// A Node is a uniquely identified vertex (entity, class or property); a
// Triple is a subject–predicate–object edge where the object is either
// another node or a literal value. Every triple may carry a Sid, the
// provenance tag of the record that asserted it; mapping re-runs and cascade
// deletes key off that tag.
package graph

import "encoding/json"

// SourceType classifies where a node originated from.
type SourceType string

const (
	// SourceUser marks nodes created manually.
	SourceUser SourceType = "user"
	// SourceItem marks nodes projected from an item.
	SourceItem SourceType = "item"
	// SourcePart marks nodes projected from an item's part.
	SourcePart SourceType = "part"
	// SourceClass marks nodes representing an ontology class.
	SourceClass SourceType = "class"
	// SourceProperty marks nodes representing a predicate.
	SourceProperty SourceType = "property"
	// SourceThesaurus marks nodes projected from a thesaurus entry.
	SourceThesaurus SourceType = "thesaurus"
)

// IsValid reports whether st is one of the defined source types.
func (st SourceType) IsValid() bool {
	switch st {
	case SourceUser, SourceItem, SourcePart, SourceClass, SourceProperty, SourceThesaurus:
		return true
	default:
		return false
	}
}

// Node is an identified vertex in the graph. ID is assigned once by the
// identity registry and never reassigned; URI is unique across all nodes.
type Node struct {
	ID         int64      `json:"id"`
	URI        string     `json:"uri"`
	Label      string     `json:"label,omitempty"`
	SourceType SourceType `json:"sourceType"`
	Tag        string     `json:"tag,omitempty"`
	Sid        string     `json:"sid,omitempty"`
	IsClass    bool       `json:"isClass"`
}

// Property is a node subtype carrying datatype hints for literal objects.
type Property struct {
	Node
	DataType      string `json:"dataType,omitempty"`
	LiteralEditor string `json:"literalEditor,omitempty"`
}

// Triple is a subject–predicate–object edge. Exactly one of ObjectID and
// ObjectLiteral is meaningful: ObjectID == 0 means the object is a literal.
type Triple struct {
	ID            int64  `json:"id"`
	SubjectID     int64  `json:"subjectId"`
	PredicateID   int64  `json:"predicateId"`
	ObjectID      int64  `json:"objectId,omitempty"`
	ObjectLiteral string `json:"objectLiteral,omitempty"`
	Sid           string `json:"sid,omitempty"`
	Tag           string `json:"tag,omitempty"`
}

// HasLiteral reports whether the triple's object is a literal value.
func (t *Triple) HasLiteral() bool { return t.ObjectID == 0 }

// Key returns the identity of the triple's content, ignoring its row id:
// two triples with equal keys are the same assertion.
type TripleKey struct {
	SubjectID     int64
	PredicateID   int64
	ObjectID      int64
	ObjectLiteral string
}

// Key returns the content identity of the triple.
func (t *Triple) Key() TripleKey {
	return TripleKey{
		SubjectID:     t.SubjectID,
		PredicateID:   t.PredicateID,
		ObjectID:      t.ObjectID,
		ObjectLiteral: t.ObjectLiteral,
	}
}

// UriTriple is a triple expressed by URIs rather than internal ids, used by
// the interchange codec where numeric ids must not leak across stores.
type UriTriple struct {
	SubjectURI    string `json:"subjectUri"`
	PredicateURI  string `json:"predicateUri"`
	ObjectURI     string `json:"objectUri,omitempty"`
	ObjectLiteral string `json:"objectLiteral,omitempty"`
	Sid           string `json:"sid,omitempty"`
	Tag           string `json:"tag,omitempty"`
}

// Namespace binds a short prefix to a full URI; both sides are unique.
type Namespace struct {
	Prefix string `json:"prefix"`
	URI    string `json:"uri"`
}

// Item is the record-side view of an item, as delivered by a source adapter.
// The full item domain model lives outside this module; only the fields the
// mapping engine reads are carried here.
type Item struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	FacetID string `json:"facetId"`
	GroupID string `json:"groupId"`
	Flags   int    `json:"flags"`
}

// Part is the record-side view of an item part. Content is the part's raw
// JSON payload, passed through to macros that need it.
type Part struct {
	ID      string          `json:"id"`
	ItemID  string          `json:"itemId"`
	TypeID  string          `json:"typeId"`
	RoleID  string          `json:"roleId,omitempty"`
	Content json.RawMessage `json:"content,omitempty"`
}

// Source is the unit of input to the mapping engine: an item, optionally
// scoped to one of its parts. A nil Part means the item itself is mapped.
type Source struct {
	Item *Item
	Part *Part
}

// Sid returns the provenance tag for triples asserted from this source:
// the item id, or "itemID/partID" when a part is the source.
func (s *Source) Sid() string {
	if s.Part != nil {
		return s.Item.ID + "/" + s.Part.ID
	}
	return s.Item.ID
}
