package history

import "sort"

// VersionRole is the place of an item in its history graph.
type VersionRole int

const (
	RoleNone VersionRole = iota
	RoleOriginal
	RoleIntermediate
	RoleCurrent
)

func (r VersionRole) String() string {
	switch r {
	case RoleOriginal:
		return "original"
	case RoleIntermediate:
		return "intermediate"
	case RoleCurrent:
		return "current"
	default:
		return "none"
	}
}

// Graph is a derived-from graph. An edge (subject, object) says subject
// was derived from object.
type Graph struct {
	parents  map[int64][]int64
	children map[int64][]int64
}

// NewGraph builds a graph from derived-from edges.
func NewGraph(edges [][2]int64) *Graph {
	g := &Graph{
		parents:  make(map[int64][]int64),
		children: make(map[int64][]int64),
	}
	for _, e := range edges {
		subject, object := e[0], e[1]
		if subject == object {
			continue
		}
		g.parents[subject] = append(g.parents[subject], object)
		g.children[object] = append(g.children[object], subject)
	}
	return g
}

// Vertices returns all ids in the graph in ascending order.
func (g *Graph) Vertices() []int64 {
	seen := make(map[int64]struct{})
	for id := range g.parents {
		seen[id] = struct{}{}
	}
	for id := range g.children {
		seen[id] = struct{}{}
	}
	ids := make([]int64, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Role classifies a vertex: roots are originals, leaves are current
// versions, everything in between is intermediate. Ids outside the graph
// have no role.
func (g *Graph) Role(id int64) VersionRole {
	_, hasParents := g.parents[id]
	_, hasChildren := g.children[id]
	switch {
	case !hasParents && !hasChildren:
		return RoleNone
	case !hasParents:
		return RoleOriginal
	case !hasChildren:
		return RoleCurrent
	default:
		return RoleIntermediate
	}
}
