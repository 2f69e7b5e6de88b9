package graph

import (
	"sort"
	"sync"
)

// DependencyGraph is a deduplicated set of edges with adjacency indexes.
//
// Edges are keyed by (source, target, kind); adding the same triple twice
// keeps one edge and remembers the earliest line it was seen on.
type DependencyGraph struct {
	mu    sync.RWMutex
	edges map[string]*Edge

	// Secondary indexes, kept in sync by AddEdge.
	outgoing map[string]map[string]*Edge
	incoming map[string]map[string]*Edge
}

// NewDependencyGraph creates an empty graph.
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		edges:    make(map[string]*Edge),
		outgoing: make(map[string]map[string]*Edge),
		incoming: make(map[string]map[string]*Edge),
	}
}

// FromEdges builds a graph from a slice of edges.
func FromEdges(edges []Edge) *DependencyGraph {
	g := NewDependencyGraph()
	for _, e := range edges {
		g.AddEdge(e)
	}
	return g
}

// AddEdge inserts e, collapsing duplicates.
func (g *DependencyGraph) AddEdge(e Edge) {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := e.Key()
	if existing, ok := g.edges[key]; ok {
		if e.Line > 0 && (existing.Line == 0 || e.Line < existing.Line) {
			existing.Line = e.Line
		}
		existing.Resolved = existing.Resolved || e.Resolved
		return
	}

	edge := e
	g.edges[key] = &edge

	if g.outgoing[e.Source] == nil {
		g.outgoing[e.Source] = make(map[string]*Edge)
	}
	g.outgoing[e.Source][key] = &edge

	if g.incoming[e.Target] == nil {
		g.incoming[e.Target] = make(map[string]*Edge)
	}
	g.incoming[e.Target][key] = &edge
}

// EdgeCount returns the number of distinct edges.
func (g *DependencyGraph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.edges)
}

// Edges returns every edge sorted by source, then target, then kind.
func (g *DependencyGraph) Edges() []Edge {
	g.mu.RLock()
	out := make([]Edge, 0, len(g.edges))
	for _, e := range g.edges {
		out = append(out, *e)
	}
	g.mu.RUnlock()

	SortEdges(out)
	return out
}

// Outgoing returns the edges leaving node, sorted.
func (g *DependencyGraph) Outgoing(node string) []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return collect(g.outgoing[node])
}

// Incoming returns the edges pointing at node, sorted.
func (g *DependencyGraph) Incoming(node string) []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return collect(g.incoming[node])
}

// Unresolved returns import edges whose target is not a repo file.
func (g *DependencyGraph) Unresolved() []Edge {
	var out []Edge
	for _, e := range g.Edges() {
		if e.Kind == KindImport && !e.Resolved {
			out = append(out, e)
		}
	}
	return out
}

// Degree returns, for every node, the number of edges touching it.
func (g *DependencyGraph) Degree() map[string]int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	degree := make(map[string]int, len(g.outgoing)+len(g.incoming))
	for node, edges := range g.outgoing {
		degree[node] += len(edges)
	}
	for node, edges := range g.incoming {
		degree[node] += len(edges)
	}
	return degree
}

// SortEdges orders edges by source, then target, then kind.
func SortEdges(edges []Edge) {
	sort.Slice(edges, func(i, j int) bool {
		a, b := edges[i], edges[j]
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		if a.Target != b.Target {
			return a.Target < b.Target
		}
		return a.Kind < b.Kind
	})
}

func collect(m map[string]*Edge) []Edge {
	out := make([]Edge, 0, len(m))
	for _, e := range m {
		out = append(out, *e)
	}
	SortEdges(out)
	return out
}
