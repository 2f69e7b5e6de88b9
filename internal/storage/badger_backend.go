package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/Benny93/contexter-go/internal/graph"
)

// Key prefixes for different data types. Index keys end in
// "<node>\x00<edge key>" because node IDs contain colons.
const (
	prefixNode     = "n:"     // node data
	prefixEdge     = "e:"     // edge data
	prefixOutgoing = "i:out:" // outgoing edges
	prefixIncoming = "i:in:"  // incoming edges
)

// ErrNotInitialized is returned when the backend is used before Initialize.
var ErrNotInitialized = errors.New("storage: backend not initialized")

// storedEdge is the JSON form of a graph edge.
type storedEdge struct {
	Source   string `json:"source"`
	Target   string `json:"target"`
	Kind     string `json:"kind"`
	Resolved bool   `json:"resolved,omitempty"`
}

// BadgerBackend is a BadgerDB-backed storage implementation.
type BadgerBackend struct {
	db        *badger.DB
	mu        sync.RWMutex
	nodeCount int
	edgeCount int
}

// NewBadgerBackend creates a new BadgerDB backend.
func NewBadgerBackend() *BadgerBackend {
	return &BadgerBackend{}
}

// Initialize opens or creates the BadgerDB database at the given path.
func (b *BadgerBackend) Initialize(path string, readOnly bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	opts := badger.DefaultOptions(path).
		WithNumCompactors(2).
		WithNumMemtables(5).
		WithLoggingLevel(badger.ERROR) // Suppress INFO/WARNING logs

	if readOnly {
		opts = opts.WithReadOnly(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return fmt.Errorf("opening badger DB: %w", err)
	}
	b.db = db

	return b.recount()
}

// recount refreshes the cached counts from the database.
func (b *BadgerBackend) recount() error {
	return b.db.View(func(txn *badger.Txn) error {
		b.nodeCount = countPrefix(txn, prefixNode)
		b.edgeCount = countPrefix(txn, prefixEdge)
		return nil
	})
}

func countPrefix(txn *badger.Txn, prefix string) int {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	n := 0
	for it.Rewind(); it.Valid(); it.Next() {
		n++
	}
	return n
}

// Close releases all resources held by the backend.
func (b *BadgerBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.db == nil {
		return nil
	}
	err := b.db.Close()
	b.db = nil
	return err
}

// BulkLoad replaces the entire store with the edges of g.
func (b *BadgerBackend) BulkLoad(ctx context.Context, g *graph.DependencyGraph) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.db == nil {
		return ErrNotInitialized
	}
	if err := b.db.DropAll(); err != nil {
		return fmt.Errorf("clearing store: %w", err)
	}
	b.nodeCount = 0
	b.edgeCount = 0

	wb := b.db.NewWriteBatch()
	defer wb.Cancel()

	for _, node := range nodesOf(g) {
		data, err := json.Marshal(node)
		if err != nil {
			return fmt.Errorf("marshaling node: %w", err)
		}
		if err := wb.Set(nodeKey(node.ID), data); err != nil {
			return fmt.Errorf("setting node: %w", err)
		}
		b.nodeCount++
	}

	for _, e := range g.Edges() {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := json.Marshal(storedEdge{Source: e.Source, Target: e.Target, Kind: string(e.Kind), Resolved: e.Resolved})
		if err != nil {
			return fmt.Errorf("marshaling edge: %w", err)
		}
		key := e.Key()
		if err := wb.Set(edgeKey(key), data); err != nil {
			return fmt.Errorf("setting edge: %w", err)
		}
		if err := wb.Set(indexKey(prefixOutgoing, e.Source, key), []byte(key)); err != nil {
			return fmt.Errorf("setting outgoing index: %w", err)
		}
		if err := wb.Set(indexKey(prefixIncoming, e.Target, key), []byte(key)); err != nil {
			return fmt.Errorf("setting incoming index: %w", err)
		}
		b.edgeCount++
	}

	return wb.Flush()
}

// GetNode returns a single node by ID, or nil if not found.
func (b *BadgerBackend) GetNode(ctx context.Context, nodeID string) (*Node, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.db == nil {
		return nil, ErrNotInitialized
	}

	var node *Node
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(nodeKey(nodeID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("getting node: %w", err)
		}
		node = &Node{}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, node)
		})
	})
	if err != nil {
		return nil, err
	}
	return node, nil
}

// Outgoing returns the edges leaving nodeID.
func (b *BadgerBackend) Outgoing(ctx context.Context, nodeID string) ([]graph.Edge, error) {
	return b.adjacent(prefixOutgoing, nodeID)
}

// Incoming returns the edges pointing at nodeID.
func (b *BadgerBackend) Incoming(ctx context.Context, nodeID string) ([]graph.Edge, error) {
	return b.adjacent(prefixIncoming, nodeID)
}

// adjacent resolves the index entries of nodeID into edges.
func (b *BadgerBackend) adjacent(prefix, nodeID string) ([]graph.Edge, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.db == nil {
		return nil, ErrNotInitialized
	}

	var edges []graph.Edge
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix + nodeID + "\x00")
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var key string
			if err := it.Item().Value(func(val []byte) error {
				key = string(val)
				return nil
			}); err != nil {
				return fmt.Errorf("reading edge key: %w", err)
			}

			item, err := txn.Get(edgeKey(key))
			if err != nil {
				continue // Skip dangling index entries
			}
			var se storedEdge
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &se)
			}); err != nil {
				return fmt.Errorf("unmarshaling edge: %w", err)
			}
			edges = append(edges, graph.Edge{
				Source:   se.Source,
				Target:   se.Target,
				Kind:     graph.EdgeKind(se.Kind),
				Resolved: se.Resolved,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	graph.SortEdges(edges)
	return edges, nil
}

// Traverse performs a breadth-first walk from startID.
func (b *BadgerBackend) Traverse(ctx context.Context, startID string, depth int, direction Direction) ([]Hop, error) {
	return traverse(ctx, startID, depth, direction,
		func(id string) ([]graph.Edge, error) { return b.Outgoing(ctx, id) },
		func(id string) ([]graph.Edge, error) { return b.Incoming(ctx, id) })
}

// NodeCount returns the number of stored nodes.
func (b *BadgerBackend) NodeCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.nodeCount
}

// EdgeCount returns the number of stored edges.
func (b *BadgerBackend) EdgeCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.edgeCount
}

func nodeKey(nodeID string) []byte {
	return []byte(prefixNode + nodeID)
}

func edgeKey(key string) []byte {
	return []byte(prefixEdge + key)
}

func indexKey(prefix, nodeID, key string) []byte {
	return []byte(prefix + nodeID + "\x00" + key)
}
