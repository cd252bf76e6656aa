package mapping

import (
	"fmt"
	"strings"

	"github.com/scriptoria/semgraph/graph"
)

// Adapter converts a domain source into the flat metadata dictionary and the
// coarse filter the engine selects rules with. Adapter implementations are
// thin; only this output contract matters to the engine.
type Adapter interface {
	Adapt(src *graph.Source) (map[string]string, Filter, error)
}

// ItemAdapter is the default adapter for items and their parts.
type ItemAdapter struct{}

// Adapt seeds the metadata dictionary: item id/title/facet/group (the group
// additionally split on "/" into group-id@1, group-id@2, ... for
// hierarchical grouping) and, for a part source, part id/type/role.
func (ItemAdapter) Adapt(src *graph.Source) (map[string]string, Filter, error) {
	if src == nil || src.Item == nil {
		return nil, Filter{}, fmt.Errorf("mapping: source without item")
	}
	item := src.Item

	meta := map[string]string{
		"item-id":    item.ID,
		"item-title": item.Title,
		"item-facet": item.FacetID,
		"group-id":   item.GroupID,
	}
	if item.GroupID != "" {
		for i, part := range strings.Split(item.GroupID, "/") {
			meta[fmt.Sprintf("group-id@%d", i+1)] = part
		}
	}

	f := Filter{
		SourceType: graph.SourceItem,
		Facet:      item.FacetID,
		Group:      item.GroupID,
		Flags:      item.Flags,
		Title:      item.Title,
	}

	if src.Part != nil {
		meta["part-id"] = src.Part.ID
		meta["part-type"] = src.Part.TypeID
		meta["part-role"] = src.Part.RoleID
		f.SourceType = graph.SourcePart
		f.PartType = src.Part.TypeID
		f.PartRole = src.Part.RoleID
	}
	return meta, f, nil
}
