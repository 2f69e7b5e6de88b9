// Package storage provides the storage backend for the hub graph.
//
// It defines the Backend interface that every implementation satisfies,
// along with the node and traversal types shared across backends.
package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Benny93/contexter-go/internal/graph"
)

// MaxDepth caps traversal depth.
const MaxDepth = 10

// Node is an endpoint of a hub edge. Hub node IDs are qualified as
// "<repo>:<name>".
type Node struct {
	// ID is the qualified node identifier.
	ID string `json:"id"`

	// Repo is the linked repository the node belongs to.
	Repo string `json:"repo"`

	// Name is the node within its repository: a path or an external target.
	Name string `json:"name"`

	// External is true when the node is not a file of its repository.
	External bool `json:"external,omitempty"`
}

// Direction selects which edges a traversal follows.
type Direction string

const (
	DirectionOut  Direction = "out"
	DirectionIn   Direction = "in"
	DirectionBoth Direction = "both"
)

// ParseDirection converts a string into a Direction.
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(strings.ToLower(strings.TrimSpace(s))); d {
	case DirectionOut, DirectionIn, DirectionBoth:
		return d, nil
	case "":
		return DirectionOut, nil
	default:
		return "", fmt.Errorf("unknown direction %q (want out, in or both)", s)
	}
}

// Hop is one node reached by a traversal.
type Hop struct {
	// Node is the ID of the reached node.
	Node string

	// Depth is the number of edges from the start node.
	Depth int

	// Via is the edge the node was first reached through.
	Via graph.Edge
}

// Backend defines the interface for storage implementations.
//
// Implementations must be safe for concurrent use.
type Backend interface {
	// Initialize opens or creates the backend at the given path.
	// If readOnly is true, the backend is opened in read-only mode.
	Initialize(path string, readOnly bool) error

	// Close releases all resources held by the backend.
	Close() error

	// BulkLoad replaces the entire store with the edges of g.
	BulkLoad(ctx context.Context, g *graph.DependencyGraph) error

	// GetNode returns a single node by ID, or nil if not found.
	GetNode(ctx context.Context, nodeID string) (*Node, error)

	// Outgoing returns the edges leaving nodeID, sorted.
	Outgoing(ctx context.Context, nodeID string) ([]graph.Edge, error)

	// Incoming returns the edges pointing at nodeID, sorted.
	Incoming(ctx context.Context, nodeID string) ([]graph.Edge, error)

	// Traverse performs a breadth-first walk from startID up to depth
	// edges away. The start node is not part of the result.
	Traverse(ctx context.Context, startID string, depth int, direction Direction) ([]Hop, error)

	NodeCount() int
	EdgeCount() int
}

// SplitID splits a qualified node ID into repository and name.
func SplitID(id string) (repo, name string) {
	repo, name, ok := strings.Cut(id, ":")
	if !ok {
		return "", id
	}
	return repo, name
}

// nodesOf derives the node set of a graph. A node is external when it is
// only ever reached through an external or unresolved edge.
func nodesOf(g *graph.DependencyGraph) map[string]*Node {
	nodes := make(map[string]*Node)
	add := func(id string, external bool) {
		if n, ok := nodes[id]; ok {
			n.External = n.External && external
			return
		}
		repo, name := SplitID(id)
		nodes[id] = &Node{ID: id, Repo: repo, Name: name, External: external}
	}
	for _, e := range g.Edges() {
		add(e.Source, false)
		add(e.Target, e.Kind.External() || !e.Resolved)
	}
	return nodes
}

// traverse runs the breadth-first walk shared by the backends. Neighbours
// are visited in sorted edge order so results are deterministic.
func traverse(ctx context.Context, startID string, depth int, direction Direction,
	out, in func(string) ([]graph.Edge, error)) ([]Hop, error) {
	if depth > MaxDepth {
		depth = MaxDepth
	}

	type item struct {
		id    string
		depth int
	}

	visited := map[string]bool{startID: true}
	queue := []item{{id: startID}}
	var result []Hop

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		current := queue[0]
		queue = queue[1:]
		if current.depth >= depth {
			continue
		}

		var edges []graph.Edge
		if direction == DirectionOut || direction == DirectionBoth {
			es, err := out(current.id)
			if err != nil {
				return nil, err
			}
			edges = append(edges, es...)
		}
		if direction == DirectionIn || direction == DirectionBoth {
			es, err := in(current.id)
			if err != nil {
				return nil, err
			}
			edges = append(edges, es...)
		}

		for _, e := range edges {
			next := e.Target
			if next == current.id {
				next = e.Source
			}
			if visited[next] {
				continue
			}
			visited[next] = true
			result = append(result, Hop{Node: next, Depth: current.depth + 1, Via: e})
			queue = append(queue, item{id: next, depth: current.depth + 1})
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Depth != result[j].Depth {
			return result[i].Depth < result[j].Depth
		}
		return result[i].Node < result[j].Node
	})
	return result, nil
}
