package projector

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/scriptoria/semgraph/codec"
	"github.com/scriptoria/semgraph/graph"
)

// RegisterHTTP registers the graph query surface on a chi router.
//
// Routes:
//
//	GET    /graph/nodes                paged node filter
//	GET    /graph/nodes/{id}           single node
//	GET    /graph/nodes/{id}/linked    nodes linked to a node
//	GET    /graph/triples              paged triple filter
//	GET    /graph/triple-groups        predicate groups for a triple filter
//	GET    /graph/namespaces           namespace bindings
//	GET    /graph/export               line-JSON dump
//	POST   /graph/import               line-JSON load
//	POST   /graph/sources              project one source
//	DELETE /graph/sources/{sid}        cascade-delete a source's triples
func (p *Projector) RegisterHTTP(r chi.Router) {
	r.Get("/graph/nodes", p.handleGetNodes)
	r.Get("/graph/nodes/{id}", p.handleGetNode)
	r.Get("/graph/nodes/{id}/linked", p.handleGetLinkedNodes)
	r.Get("/graph/triples", p.handleGetTriples)
	r.Get("/graph/triple-groups", p.handleGetTripleGroups)
	r.Get("/graph/namespaces", p.handleGetNamespaces)
	r.Get("/graph/export", p.handleExport)
	r.Post("/graph/import", p.handleImport)
	r.Post("/graph/sources", p.handleProject)
	r.Delete("/graph/sources/{sid}", p.handleDeleteSource)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, graph.ErrTranslation) || errors.Is(err, graph.ErrConfiguration) {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func pagingFrom(r *http.Request) graph.Paging {
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = 0
	}
	return graph.Paging{Offset: offset, Limit: limit}
}

func (p *Projector) handleGetNodes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := graph.NodeFilter{
		Paging:      pagingFrom(r),
		UID:         q.Get("uid"),
		Label:       q.Get("label"),
		SourceType:  graph.SourceType(q.Get("type")),
		Sid:         q.Get("sid"),
		IsSidPrefix: q.Get("sidPrefix") == "true",
	}
	if v := q.Get("class"); v != "" {
		b := v == "true"
		f.IsClass = &b
	}
	if q.Has("tag") {
		tag := q.Get("tag")
		f.Tag = &tag
	}
	page, err := p.store.GetNodes(r.Context(), f)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (p *Projector) handleGetNode(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad node id"})
		return
	}
	n, err := p.store.GetNode(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if n == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "node not found"})
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (p *Projector) handleGetLinkedNodes(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad node id"})
		return
	}
	q := r.URL.Query()
	f := graph.LinkedNodeFilter{
		Paging:      pagingFrom(r),
		OtherNodeID: id,
		IsObject:    q.Get("role") == "object",
	}
	if v := q.Get("predicate"); v != "" {
		f.PredicateID, _ = strconv.ParseInt(v, 10, 64)
	}
	page, err := p.store.GetLinkedNodes(r.Context(), f)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func tripleFilterFrom(r *http.Request) graph.TripleFilter {
	q := r.URL.Query()
	f := graph.TripleFilter{
		Paging:        pagingFrom(r),
		ObjectLiteral: q.Get("literal"),
		LiteralRegex:  q.Get("literalRegex"),
		LiteralMin:    q.Get("literalMin"),
		LiteralMax:    q.Get("literalMax"),
		Sid:           q.Get("sid"),
		IsSidPrefix:   q.Get("sidPrefix") == "true",
	}
	f.SubjectID, _ = strconv.ParseInt(q.Get("subject"), 10, 64)
	f.ObjectID, _ = strconv.ParseInt(q.Get("object"), 10, 64)
	if v := q.Get("predicate"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			f.PredicateIDs = []int64{id}
		}
	}
	if v := q.Get("literalFuzzy"); v != "" {
		f.LiteralFuzzy, _ = strconv.ParseFloat(v, 64)
	}
	if q.Has("tag") {
		tag := q.Get("tag")
		f.Tag = &tag
	}
	return f
}

func (p *Projector) handleGetTriples(w http.ResponseWriter, r *http.Request) {
	page, err := p.store.GetTriples(r.Context(), tripleFilterFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (p *Projector) handleGetTripleGroups(w http.ResponseWriter, r *http.Request) {
	page, err := p.store.GetTripleGroups(r.Context(), tripleFilterFrom(r), r.URL.Query().Get("sort"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (p *Projector) handleGetNamespaces(w http.ResponseWriter, r *http.Request) {
	ns, err := p.store.ListNamespaces(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if ns == nil {
		ns = []graph.Namespace{}
	}
	writeJSON(w, http.StatusOK, ns)
}

func (p *Projector) handleExport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/x-ndjson")
	if err := codec.NewExporter(p.store).Export(r.Context(), w); err != nil {
		p.logger.Error("projector: export failed", "error", err)
	}
}

func (p *Projector) handleImport(w http.ResponseWriter, r *http.Request) {
	im := codec.NewImporter(p.store, p.ids, p.config.BatchSize, p.logger)
	stats, err := im.Import(r.Context(), r.Body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (p *Projector) handleProject(w http.ResponseWriter, r *http.Request) {
	var src graph.Source
	if err := json.NewDecoder(r.Body).Decode(&src); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "decode: " + err.Error()})
		return
	}
	res, err := p.Project(r.Context(), &src)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (p *Projector) handleDeleteSource(w http.ResponseWriter, r *http.Request) {
	n, err := p.DeleteSource(r.Context(), chi.URLParam(r, "sid"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}
