package history

import (
	"fmt"

	"colsync/internal/collection"
)

var roleTags = map[VersionRole]string{
	RoleOriginal:     collection.TagOriginalVersion,
	RoleIntermediate: collection.TagIntermediateVersion,
	RoleCurrent:      collection.TagCurrentVersion,
}

// Resolver turns stored history descriptions into derived-from relations
// and tags the resulting graphs.
type Resolver struct {
	logger collection.Logger
}

// NewResolver creates a history resolver.
func NewResolver(logger collection.Logger) *Resolver {
	return &Resolver{logger: logger}
}

// ResolveHistory links id to the items its history references, by history
// uuid first and content identity second. The resolving marker stays on
// the item while any reference is still unknown. It returns the ids whose
// graph needs tagging.
func (r *Resolver) ResolveHistory(c collection.Catalog, id int64) ([]int64, error) {
	h, err := c.GetItemHistory(id)
	if err != nil {
		return nil, fmt.Errorf("reading history of item %d: %w", id, err)
	}
	if h == nil {
		return nil, c.RemoveItemTag(id, collection.TagNeedResolvingHistory)
	}

	desc, err := ParseDescription([]byte(h.History))
	if err != nil {
		r.logger.Warn("dropping unreadable history", "id", id, "error", err)
		return nil, c.RemoveItemTag(id, collection.TagNeedResolvingHistory)
	}

	linked := 0
	unresolved := 0
	for _, ref := range desc.DerivedFrom {
		ids, err := r.lookup(c, ref)
		if err != nil {
			return nil, err
		}
		found := false
		for _, other := range ids {
			if other == id {
				continue
			}
			if err := c.AddRelation(id, other, collection.RelationDerivedFrom); err != nil {
				return nil, fmt.Errorf("relating %d to %d: %w", id, other, err)
			}
			found = true
			linked++
		}
		if !found {
			unresolved++
		}
	}

	if unresolved == 0 {
		if err := c.RemoveItemTag(id, collection.TagNeedResolvingHistory); err != nil {
			return nil, fmt.Errorf("clearing resolving marker: %w", err)
		}
	} else {
		r.logger.Debug("history references not yet in catalog", "id", id, "unresolved", unresolved)
	}

	if linked == 0 {
		return nil, nil
	}
	if err := c.AddItemTag(id, collection.TagNeedTaggingHistoryGraph); err != nil {
		return nil, fmt.Errorf("setting tagging marker: %w", err)
	}
	return []int64{id}, nil
}

func (r *Resolver) lookup(c collection.Catalog, ref Reference) ([]int64, error) {
	if ref.UUID != "" {
		ids, err := c.GetItemIDsByUUID(ref.UUID)
		if err != nil {
			return nil, fmt.Errorf("looking up history uuid %s: %w", ref.UUID, err)
		}
		if len(ids) > 0 {
			return ids, nil
		}
	}
	if ref.UniqueHash != "" {
		ids, err := c.GetItemIDsByHash(ref.UniqueHash, ref.FileSize)
		if err != nil {
			return nil, fmt.Errorf("looking up history hash: %w", err)
		}
		return ids, nil
	}
	return nil, nil
}

// TagHistoryGraph sets the version role tags on every item in the graph
// of id and clears the tagging marker from them.
func (r *Resolver) TagHistoryGraph(c collection.Catalog, id int64) error {
	edges, err := c.GetRelationCloud(id, collection.RelationDerivedFrom)
	if err != nil {
		return fmt.Errorf("reading history graph of item %d: %w", id, err)
	}
	g := NewGraph(edges)

	vertices := g.Vertices()
	if len(vertices) == 0 {
		return c.RemoveItemTag(id, collection.TagNeedTaggingHistoryGraph)
	}
	for _, v := range vertices {
		role := g.Role(v)
		for other, tag := range roleTags {
			if other == role {
				continue
			}
			if err := c.RemoveItemTag(v, tag); err != nil {
				return fmt.Errorf("clearing version tag of %d: %w", v, err)
			}
		}
		if tag, ok := roleTags[role]; ok {
			if err := c.AddItemTag(v, tag); err != nil {
				return fmt.Errorf("tagging item %d as %s: %w", v, role, err)
			}
		}
		if err := c.RemoveItemTag(v, collection.TagNeedTaggingHistoryGraph); err != nil {
			return fmt.Errorf("clearing tagging marker of %d: %w", v, err)
		}
	}
	return nil
}

var _ collection.HistoryResolver = (*Resolver)(nil)
