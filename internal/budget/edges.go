package budget

import (
	"sort"

	"github.com/Benny93/contexter-go/internal/graph"
)

// TruncateEdges keeps the longest prefix of edges whose cost fits budget,
// applying the file policy to graph lines. cost must be monotonic in the
// number of edges. It returns the kept edges and how many were dropped.
func TruncateEdges(edges []graph.Edge, budget int, cost func([]graph.Edge) int) ([]graph.Edge, int) {
	if cost(edges) <= budget {
		return edges, 0
	}
	// Smallest n whose prefix no longer fits; n-1 is the answer.
	n := sort.Search(len(edges)+1, func(n int) bool {
		return cost(edges[:n]) > budget
	})
	keep := n - 1
	if keep < 0 {
		keep = 0
	}
	return edges[:keep], len(edges) - keep
}
