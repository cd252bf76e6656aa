package graph

// Paging selects a window of a result set. Limit == 0 means "everything":
// the store must skip pagination SQL entirely rather than apply a huge limit.
type Paging struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// All reports whether paging is disabled (the whole result set is wanted).
func (p Paging) All() bool { return p.Limit == 0 }

// DataPage is one page of results plus the total across all pages.
type DataPage[T any] struct {
	Items      []T `json:"items"`
	Total      int `json:"total"`
	PageNumber int `json:"pageNumber"`
	PageSize   int `json:"pageSize"`
}

// NewDataPage shapes a page from the paging that produced it. With paging
// disabled the page number is 1 and the page size equals the total.
func NewDataPage[T any](p Paging, total int, items []T) DataPage[T] {
	if items == nil {
		items = []T{}
	}
	if p.All() {
		return DataPage[T]{Items: items, Total: total, PageNumber: 1, PageSize: total}
	}
	return DataPage[T]{
		Items:      items,
		Total:      total,
		PageNumber: p.Offset/p.Limit + 1,
		PageSize:   p.Limit,
	}
}

// NodeFilter selects nodes. Zero-valued fields do not constrain.
type NodeFilter struct {
	Paging
	UID         string     `json:"uid,omitempty"`         // URI substring
	Label       string     `json:"label,omitempty"`       // label substring
	SourceType  SourceType `json:"sourceType,omitempty"`  // exact
	IsClass     *bool      `json:"isClass,omitempty"`     // class nodes only / non-class only
	Tag         *string    `json:"tag,omitempty"`         // exact; empty string matches untagged
	Sid         string     `json:"sid,omitempty"`         // exact unless IsSidPrefix
	IsSidPrefix bool       `json:"isSidPrefix,omitempty"` // Sid is a prefix
	ClassIDs    []int64    `json:"classIds,omitempty"`    // nodes that are instances of any of these classes
}

// LinkedNodeFilter selects nodes linked to a given node, optionally through
// a given predicate. IsObject chooses the role the *other* node plays: true
// means OtherNodeID is the object, so linked nodes are subjects.
type LinkedNodeFilter struct {
	Paging
	OtherNodeID int64 `json:"otherNodeId"`
	PredicateID int64 `json:"predicateId,omitempty"`
	IsObject    bool  `json:"isObject,omitempty"`
}

// TripleFilter selects triples. Zero-valued fields do not constrain.
type TripleFilter struct {
	Paging
	SubjectID     int64   `json:"subjectId,omitempty"`
	PredicateIDs  []int64 `json:"predicateIds,omitempty"`
	ObjectID      int64   `json:"objectId,omitempty"`
	// ObjectLiteral is matched as a substring, unless LiteralFuzzy is set,
	// in which case it is the similarity comparand.
	ObjectLiteral string  `json:"objectLiteral,omitempty"`
	LiteralMin    string  `json:"literalMin,omitempty"`   // numeric lower bound (inclusive)
	LiteralMax    string  `json:"literalMax,omitempty"`   // numeric upper bound (inclusive)
	LiteralFuzzy  float64 `json:"literalFuzzy,omitempty"` // similarity threshold in (0,1]
	LiteralRegex  string  `json:"literalRegex,omitempty"` // regex over the literal
	Sid           string  `json:"sid,omitempty"`
	IsSidPrefix   bool    `json:"isSidPrefix,omitempty"`
	Tag           *string `json:"tag,omitempty"`
}

// TripleGroup is one bucket of GetTripleGroups: every triple in the bucket
// shares the same predicate for the filtered subject set.
type TripleGroup struct {
	PredicateID  int64  `json:"predicateId"`
	PredicateURI string `json:"predicateUri"`
	Count        int    `json:"count"`
}
