package storage

import (
	"context"
	"sync"

	"github.com/Benny93/contexter-go/internal/graph"
)

// MemoryBackend is an in-memory implementation of Backend for tests and
// one-shot queries.
type MemoryBackend struct {
	mu    sync.RWMutex
	graph *graph.DependencyGraph
	nodes map[string]*Node
}

// NewMemoryBackend creates a new in-memory storage backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		graph: graph.NewDependencyGraph(),
		nodes: make(map[string]*Node),
	}
}

// Initialize implements Backend.
func (m *MemoryBackend) Initialize(path string, readOnly bool) error {
	return nil
}

// Close implements Backend.
func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.graph = graph.NewDependencyGraph()
	m.nodes = make(map[string]*Node)
	return nil
}

// BulkLoad implements Backend.
func (m *MemoryBackend) BulkLoad(ctx context.Context, g *graph.DependencyGraph) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.graph = graph.FromEdges(g.Edges())
	m.nodes = nodesOf(g)
	return nil
}

// GetNode implements Backend.
func (m *MemoryBackend) GetNode(ctx context.Context, nodeID string) (*Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n, ok := m.nodes[nodeID]
	if !ok {
		return nil, nil
	}
	out := *n
	return &out, nil
}

// Outgoing implements Backend.
func (m *MemoryBackend) Outgoing(ctx context.Context, nodeID string) ([]graph.Edge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.graph.Outgoing(nodeID), nil
}

// Incoming implements Backend.
func (m *MemoryBackend) Incoming(ctx context.Context, nodeID string) ([]graph.Edge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.graph.Incoming(nodeID), nil
}

// Traverse implements Backend.
func (m *MemoryBackend) Traverse(ctx context.Context, startID string, depth int, direction Direction) ([]Hop, error) {
	return traverse(ctx, startID, depth, direction,
		func(id string) ([]graph.Edge, error) { return m.Outgoing(ctx, id) },
		func(id string) ([]graph.Edge, error) { return m.Incoming(ctx, id) })
}

// NodeCount implements Backend.
func (m *MemoryBackend) NodeCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.nodes)
}

// EdgeCount implements Backend.
func (m *MemoryBackend) EdgeCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.graph.EdgeCount()
}
